// Package metrics exposes controller state as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/pump-controller/internal/logic"
)

// Metrics holds the Prometheus collectors for the controller. All
// collectors are registered on a private registry so tests can create
// independent instances without collision.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	soilPercent  prometheus.Gauge
	soilRaw      prometheus.Gauge
	tankDistance prometheus.Gauge
	lockout      prometheus.Gauge
	pumpOn       prometheus.Gauge
	mqttUp       prometheus.Gauge
	tickDuration prometheus.Histogram
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pump_transitions_total",
		Help: "Number of pump state transitions, by reason.",
	}, []string{"reason"})

	m.soilPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soil_moisture_percent",
		Help: "Smoothed soil moisture as a percentage (0 dry, 100 wet).",
	})
	m.soilRaw = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soil_moisture_raw",
		Help: "Last raw ADC soil moisture reading.",
	})
	m.tankDistance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tank_distance_cm",
		Help: "Measured distance from the ultrasonic sensor to the water surface.",
	})
	m.lockout = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tank_lockout",
		Help: "1 when the tank-empty lockout is active, 0 otherwise.",
	})
	m.pumpOn = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pump_on",
		Help: "1 when the pump relay is energized, 0 otherwise.",
	})
	m.mqttUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connected",
		Help: "1 when the MQTT broker connection is open, 0 otherwise.",
	})
	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "control_tick_duration_seconds",
		Help:    "Time spent in one control loop tick, sensor reads included.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	m.registry.MustRegister(
		m.transitions,
		m.soilPercent,
		m.soilRaw,
		m.tankDistance,
		m.lockout,
		m.pumpOn,
		m.mqttUp,
		m.tickDuration,
	)
	return m
}

// RecordTransition counts a pump transition under its reason label.
func (m *Metrics) RecordTransition(reason logic.Reason) {
	m.transitions.WithLabelValues(string(reason)).Inc()
}

// ObserveSoil updates the soil gauges from a sample.
func (m *Metrics) ObserveSoil(sample logic.SoilSample) {
	m.soilRaw.Set(float64(sample.Raw))
	m.soilPercent.Set(float64(sample.Percent))
}

// ObserveTank updates the tank distance gauge. Invalid readings leave
// the last value in place so the gauge reflects the last known level.
func (m *Metrics) ObserveTank(r logic.TankReading) {
	if r.Valid {
		m.tankDistance.Set(r.DistanceCm)
	}
}

// SetLockout updates the lockout gauge.
func (m *Metrics) SetLockout(active bool) {
	m.lockout.Set(boolToFloat(active))
}

// SetPumpOn updates the pump gauge.
func (m *Metrics) SetPumpOn(on bool) {
	m.pumpOn.Set(boolToFloat(on))
}

// SetMQTTConnected updates the broker connection gauge.
func (m *Metrics) SetMQTTConnected(connected bool) {
	m.mqttUp.Set(boolToFloat(connected))
}

// ObserveTickDuration records how long a control tick took.
func (m *Metrics) ObserveTickDuration(seconds float64) {
	m.tickDuration.Observe(seconds)
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
