// Command pump-controller runs the irrigation pump control loop and
// publishes state changes and telemetry to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/pump-controller/internal/config"
	"github.com/sweeney/pump-controller/internal/hw"
	"github.com/sweeney/pump-controller/internal/logic"
	"github.com/sweeney/pump-controller/internal/metrics"
	"github.com/sweeney/pump-controller/internal/mqtt"
	"github.com/sweeney/pump-controller/internal/sensor"
	"github.com/sweeney/pump-controller/internal/status"
	"github.com/sweeney/pump-controller/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/pump-controller/config.yaml", "Path to YAML configuration")
	printState := flag.Bool("print-state", false, "Read the sensors once, print the values and exit")
	flag.Parse()

	if err := run(*configPath, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, printState bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, w := range cfg.Warnings() {
		log.Printf("config warning: %s", w)
	}

	adc, err := hw.NewIIOADC(cfg.Hardware.ADCPath)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer adc.Close()

	filter := logic.NewSoilFilter(cfg.Soil.Alpha, cfg.Soil.DryRaw, cfg.Soil.WetRaw)
	soil := sensor.NewSoilReader(adc, filter, cfg.Soil.Samples, cfg.Soil.SampleDelay())

	var tank *sensor.TankMonitor
	if cfg.Tank.Enabled {
		ranger, err := hw.NewHCSR04(cfg.Hardware.Chip, cfg.Hardware.PinTrigger, cfg.Hardware.PinEcho, cfg.Tank.EchoTimeout())
		if err != nil {
			return fmt.Errorf("init ultrasonic sensor: %w", err)
		}
		defer ranger.Close()
		tank = sensor.NewTankMonitor(ranger, cfg.Tank.Pulses, cfg.Tank.PulseSpacing(),
			cfg.Tank.EchoTimeout(), cfg.Tank.EmptyDistanceCm, cfg.Tank.Policy())
	}

	// Print state mode: one acquisition, no actuation.
	if printState {
		sample, err := soil.Read()
		if err != nil {
			return fmt.Errorf("read soil: %w", err)
		}
		fmt.Printf("soil: raw=%d pct=%d%%\n", sample.Raw, sample.Percent)
		if tank != nil {
			reading, lockout := tank.Read()
			if reading.Valid {
				fmt.Printf("tank: distance=%.1fcm lockout=%v\n", reading.DistanceCm, lockout)
			} else {
				fmt.Printf("tank: no echo, lockout=%v\n", lockout)
			}
		}
		return nil
	}

	relay, err := hw.NewRelayLine(cfg.Hardware.Chip, cfg.Hardware.PinPump)
	if err != nil {
		return fmt.Errorf("init pump relay: %w", err)
	}
	defer relay.Close()

	// Known-safe state before anything else runs.
	if err := relay.Set(false); err != nil {
		return fmt.Errorf("drive pump relay off: %w", err)
	}

	var climate hw.Climate
	if cfg.Climate.Enabled {
		c := hw.NewIIOClimate(cfg.Climate.TempPath, cfg.Climate.HumidityPath)
		defer c.Close()
		climate = c
	}

	var publisher mqtt.Publisher = discardPublisher{}
	var mqttConn mqtt.ConnectionStatus
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = pub
		mqttConn = pub
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      int64(cfg.Control.TickMs),
		DryHoldMs:   int64(cfg.Control.DryHoldMs),
		MinOnMs:     int64(cfg.Control.MinOnMs),
		MinOffMs:    int64(cfg.Control.MinOffMs),
		OnPercent:   cfg.Control.OnPercent,
		OffPercent:  cfg.Control.OffPercent,
		TankEmptyCm: cfg.Tank.EmptyDistanceCm,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	mets := metrics.New()
	cmds := make(chan web.Command)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, cmds, mets.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: tick=%v band=[%d%%, %d%%] min_on=%v min_off=%v dry_hold=%v broker=%s",
		cfg.Control.Tick(), cfg.Control.OnPercent, cfg.Control.OffPercent,
		time.Duration(cfg.Control.MinOnMs)*time.Millisecond,
		time.Duration(cfg.Control.MinOffMs)*time.Millisecond,
		time.Duration(cfg.Control.DryHoldMs)*time.Millisecond,
		cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Control.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	c := &controller{
		soil:      soil,
		tank:      tank,
		climate:   climate,
		relay:     relay,
		publisher: publisher,
		mqttConn:  mqttConn,
		tracker:   tracker,
		metrics:   mets,
		cmds:      cmds,
		windows:   cfg.Control.Windows(),
		legacyRaw: cfg.Control.LegacyThresholdRaw,
		heartbeat: cfg.MQTT.Heartbeat(),
	}
	return runLoop(c, time.Now, ticker.C, sigCh)
}

// controller bundles the control loop dependencies. Everything behind an
// interface has a fake, so runLoop is testable without hardware.
type controller struct {
	soil      *sensor.SoilReader
	tank      *sensor.TankMonitor // nil when tank protection is disabled
	climate   hw.Climate          // nil when no climate probe
	relay     hw.Relay
	publisher mqtt.Publisher
	mqttConn  mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	cmds      <-chan web.Command
	windows   logic.Windows
	legacyRaw int
	heartbeat time.Duration
}

// runLoop is the single writer of controller state. Sensor ticks and
// operator commands are serialized through its select; HTTP handlers only
// ever talk to it through the command channel.
func runLoop(c *controller, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	arb := logic.NewArbiter(c.windows, startTime)
	arb.SetLegacyThreshold(c.legacyRaw)

	var lastSoil logic.SoilSample
	soilValid := false
	var lastTank logic.TankReading
	lockout := false
	lastHeartbeat := startTime

	updateTracker := func() {
		c.tracker.Update(arb.Mode(), arb.PumpState(), lastSoil, soilValid, lastTank, lockout, arb.LegacyThreshold(), arb.Counts())
		if c.mqttConn != nil {
			c.tracker.SetMQTTConnected(c.mqttConn.IsConnected())
			c.metrics.SetMQTTConnected(c.mqttConn.IsConnected())
		}
	}

	applyTransition := func(tr *logic.Transition) {
		if tr == nil {
			return
		}
		log.Printf("pump %s (%s, soil=%d%% lockout=%v)", stateString(tr.On), tr.Reason, lastSoil.Percent, lockout)
		if err := c.relay.Set(tr.On); err != nil {
			// Keep going: the state machine will retry the relay on the
			// next transition and the operator sees the error in the log.
			log.Printf("relay error: %v", err)
		}
		c.metrics.RecordTransition(tr.Reason)
		c.metrics.SetPumpOn(tr.On)
		event := mqtt.PumpEvent{
			Timestamp: tr.Timestamp,
			On:        tr.On,
			Reason:    tr.Reason,
			Mode:      arb.Mode(),
			SoilPct:   lastSoil.Percent,
			TankEmpty: lockout,
		}
		if err := c.publisher.PublishPump(event); err != nil {
			log.Printf("publish error: %v", err)
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			// Pump off before we go away.
			if arb.PumpState().On {
				if err := c.relay.Set(false); err != nil {
					log.Printf("relay error on shutdown: %v", err)
				}
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			updateTracker()
			snap := c.tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			if err := c.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-c.cmds:
			t := now()
			switch cmd.Kind {
			case web.CommandPump:
				if err := c.relay.Set(cmd.On); err != nil {
					cmd.Reply <- fmt.Errorf("relay: %w", err)
					continue
				}
				tr := arb.SetManual(cmd.On, t)
				log.Printf("manual: pump %s", stateString(cmd.On))
				c.metrics.RecordTransition(tr.Reason)
				c.metrics.SetPumpOn(tr.On)
				event := mqtt.PumpEvent{
					Timestamp: t,
					On:        tr.On,
					Reason:    tr.Reason,
					Mode:      arb.Mode(),
					SoilPct:   lastSoil.Percent,
					TankEmpty: lockout,
				}
				if err := c.publisher.PublishPump(event); err != nil {
					log.Printf("publish error: %v", err)
				}
			case web.CommandMode:
				arb.SetMode(cmd.Mode)
				log.Printf("mode: %s", cmd.Mode)
			case web.CommandThreshold:
				arb.SetLegacyThreshold(cmd.Raw)
				log.Printf("legacy threshold: %d", cmd.Raw)
			}
			updateTracker()
			cmd.Reply <- nil

		case <-tick:
			t := now()
			tickStart := time.Now()

			sample, err := c.soil.Read()
			if err != nil {
				// Carry the previous sample; a transient ADC fault must not
				// flap the pump.
				log.Printf("soil read error: %v", err)
			} else {
				lastSoil = sample
				soilValid = true
				c.metrics.ObserveSoil(sample)
			}

			if c.tank != nil {
				lastTank, lockout = c.tank.Read()
				c.metrics.ObserveTank(lastTank)
			}
			c.metrics.SetLockout(lockout)

			// Until the first soil sample lands, AUTO only acts on the
			// lockout (a percent of zero must not start a dry-hold).
			if soilValid || (lockout && arb.PumpState().On) {
				tr := arb.Tick(logic.Input{
					Percent: lastSoil.Percent,
					Lockout: lockout,
					Time:    t,
				})
				applyTransition(tr)
			}
			c.metrics.SetPumpOn(arb.PumpState().On)

			if c.heartbeat > 0 && t.Sub(lastHeartbeat) >= c.heartbeat {
				lastHeartbeat = t
				if c.climate != nil {
					if temp, hum, err := c.climate.Read(); err == nil {
						c.tracker.SetClimate(status.Climate{TempC: temp, HumidityPct: hum})
					} else {
						log.Printf("climate read error: %v", err)
					}
				}
				// Refresh network info for the heartbeat
				if net := readNetworkInfo(); net != nil {
					c.tracker.SetNetwork(net)
				}
				updateTracker()
				snap := c.tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v soil=%d%% pump=%s lockout=%v",
					snap.Uptime().Truncate(time.Second), lastSoil.Percent, stateString(arb.PumpState().On), lockout)
				if err := c.publisher.PublishTelemetry(status.FormatStatusEvent(snap, "", "")); err != nil {
					log.Printf("telemetry publish error: %v", err)
				}
				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := c.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			updateTracker()
			c.metrics.ObserveTickDuration(time.Since(tickStart).Seconds())
		}
	}
}

// discardPublisher is the Publisher used when MQTT is disabled.
type discardPublisher struct{}

func (discardPublisher) PublishPump(mqtt.PumpEvent) error     { return nil }
func (discardPublisher) PublishTelemetry([]byte) error        { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                         { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
