package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pump-controller/internal/logic"
)

// Telemetry is the JSON device contract. The flat field names (soil_raw,
// soil_pct, ultrasonic_cm, pump_on, auto_mode, soil_threshold_raw, ...)
// are what the farm web application polls and must not change.
type Telemetry struct {
	Event  string `json:"event,omitempty"`
	Reason string `json:"reason,omitempty"`

	SoilRaw      *int     `json:"soil_raw"`
	SoilPct      *int     `json:"soil_pct"`
	SoilSmoothed *float64 `json:"soil_smoothed,omitempty"`

	// UltrasonicCm is null when the tank sensor produced no valid reading.
	UltrasonicCm *float64 `json:"ultrasonic_cm"`
	TankEmpty    bool     `json:"tank_empty"`

	PumpOn   bool   `json:"pump_on"`
	AutoMode bool   `json:"auto_mode"`
	Mode     string `json:"mode"`

	SoilThresholdRaw int `json:"soil_threshold_raw"`

	TempC       *float64 `json:"temp_c,omitempty"`
	HumidityPct *float64 `json:"humidity_pct,omitempty"`

	IP       string `json:"ip,omitempty"`
	WifiSSID string `json:"wifi_ssid,omitempty"`

	UptimeS   int64  `json:"uptime_s"`
	StartTime string `json:"start_time"`
	Timestamp string `json:"timestamp"`

	MQTT   MQTTStatus `json:"mqtt"`
	Counts CountsJSON `json:"event_counts"`
	Config ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	PumpOn   int `json:"pump_on"`
	PumpOff  int `json:"pump_off"`
	Lockouts int `json:"lockouts"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64   `json:"tick_ms"`
	DryHoldMs   int64   `json:"dry_hold_ms"`
	MinOnMs     int64   `json:"min_on_ms"`
	MinOffMs    int64   `json:"min_off_ms"`
	OnPercent   int     `json:"on_percent"`
	OffPercent  int     `json:"off_percent"`
	TankEmptyCm float64 `json:"tank_empty_cm"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
}

func buildTelemetry(snap Snapshot) Telemetry {
	t := Telemetry{
		TankEmpty:        snap.Lockout,
		PumpOn:           snap.Pump.On,
		AutoMode:         snap.Mode == logic.ModeAuto,
		Mode:             string(snap.Mode),
		SoilThresholdRaw: snap.LegacyThresholdRaw,
		UptimeS:          int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			PumpOn:   snap.Counts.PumpOn,
			PumpOff:  snap.Counts.PumpOff,
			Lockouts: snap.Counts.Lockouts,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DryHoldMs:   snap.Config.DryHoldMs,
			MinOnMs:     snap.Config.MinOnMs,
			MinOffMs:    snap.Config.MinOffMs,
			OnPercent:   snap.Config.OnPercent,
			OffPercent:  snap.Config.OffPercent,
			TankEmptyCm: snap.Config.TankEmptyCm,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.SoilValid {
		raw, pct, smoothed := snap.Soil.Raw, snap.Soil.Percent, snap.Soil.Smoothed
		t.SoilRaw = &raw
		t.SoilPct = &pct
		t.SoilSmoothed = &smoothed
	}
	if snap.Tank.Valid {
		cm := snap.Tank.DistanceCm
		t.UltrasonicCm = &cm
	}
	if snap.Climate != nil {
		temp, hum := snap.Climate.TempC, snap.Climate.HumidityPct
		t.TempC = &temp
		t.HumidityPct = &hum
	}
	if snap.Network != nil {
		t.IP = snap.Network.IP
		t.WifiSSID = snap.Network.SSID
	}

	return t
}

// FormatJSON returns the telemetry payload for the web /data endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(buildTelemetry(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the telemetry payload for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	t := buildTelemetry(snap)
	t.Event = event
	t.Reason = reason
	data, _ := json.Marshal(t)
	return data
}
