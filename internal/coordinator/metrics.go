package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

const namespace = "devialet"

// Metrics are the Prometheus instruments for one coordinator. A nil
// *Metrics records nothing.
type Metrics struct {
	polls               *prometheus.CounterVec
	pollDuration        prometheus.Histogram
	consecutiveFailures prometheus.Gauge
	phase               prometheus.Gauge
}

// NewMetrics creates the poll instruments labelled with deviceID and
// registers them with reg.
func NewMetrics(reg prometheus.Registerer, deviceID string) (*Metrics, error) {
	labels := prometheus.Labels{"device_id": deviceID}
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "polls_total",
			Help:        "Device polls by result (ok, error).",
			ConstLabels: labels,
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "poll_duration_seconds",
			Help:        "Time taken by one full device poll.",
			ConstLabels: labels,
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "poll_consecutive_failures",
			Help:        "Polls failed in a row since the last success.",
			ConstLabels: labels,
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "coordinator_phase",
			Help:        "Coordinator phase (0=idle, 1=polling, 2=backoff).",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{m.polls, m.pollDuration, m.consecutiveFailures, m.phase} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observePoll(ok bool, elapsed time.Duration, failures int64) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(elapsed.Seconds())
	m.consecutiveFailures.Set(float64(failures))
}

func (m *Metrics) setPhase(p Phase) {
	if m == nil {
		return
	}
	m.phase.Set(float64(p))
}

var (
	stateLabels = []string{"device_id"}

	upDesc        = prometheus.NewDesc("devialet_up", "Whether the last poll reached the speaker (1=up, 0=down).", stateLabels, nil)
	volumeDesc    = prometheus.NewDesc("devialet_volume_percent", "Current volume percentage.", stateLabels, nil)
	mutedDesc     = prometheus.NewDesc("devialet_muted", "Whether the speaker is muted (1=muted, 0=not).", stateLabels, nil)
	playingDesc   = prometheus.NewDesc("devialet_playing", "Whether the current source is playing (1=playing, 0=not).", stateLabels, nil)
	powerDesc     = prometheus.NewDesc("devialet_power_on", "Whether the speaker is powered on (1=on, 0=off).", stateLabels, nil)
	eqGainDesc    = prometheus.NewDesc("devialet_eq_gain_db", "Custom equalizer gain per band.", []string{"device_id", "band"}, nil)
	nightModeDesc = prometheus.NewDesc("devialet_night_mode", "Whether night mode is on (1=on, 0=off). Absent when unsupported.", stateLabels, nil)
	sourceDesc    = prometheus.NewDesc("devialet_source_info", "Current source as a labelled metric.", []string{"device_id", "source", "eq_preset"}, nil)
)

// stateCollector exposes the coordinator's current DeviceState at scrape
// time.
type stateCollector struct {
	coord    *Coordinator
	deviceID string
}

// NewStateCollector returns a collector that reports c's latest state.
func NewStateCollector(c *Coordinator, deviceID string) prometheus.Collector {
	return &stateCollector{coord: c, deviceID: deviceID}
}

func (s *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- volumeDesc
	ch <- mutedDesc
	ch <- playingDesc
	ch <- powerDesc
	ch <- eqGainDesc
	ch <- nightModeDesc
	ch <- sourceDesc
}

func (s *stateCollector) Collect(ch chan<- prometheus.Metric) {
	id := s.deviceID
	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, boolToFloat(s.coord.Available()), id)

	state, ok := s.coord.State()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(powerDesc, prometheus.GaugeValue, boolToFloat(state.PowerState == devialet.PowerOn), id)
	ch <- prometheus.MustNewConstMetric(volumeDesc, prometheus.GaugeValue, float64(state.Volume), id)
	ch <- prometheus.MustNewConstMetric(mutedDesc, prometheus.GaugeValue, boolToFloat(state.Muted), id)
	ch <- prometheus.MustNewConstMetric(playingDesc, prometheus.GaugeValue, boolToFloat(state.PlaybackState == devialet.PlaybackPlaying), id)
	ch <- prometheus.MustNewConstMetric(eqGainDesc, prometheus.GaugeValue, state.EqLow, id, "low")
	ch <- prometheus.MustNewConstMetric(eqGainDesc, prometheus.GaugeValue, state.EqHigh, id, "high")
	ch <- prometheus.MustNewConstMetric(sourceDesc, prometheus.GaugeValue, 1, id, state.CurrentSource, string(state.EqPreset))
	if state.NightMode != nil {
		ch <- prometheus.MustNewConstMetric(nightModeDesc, prometheus.GaugeValue, boolToFloat(*state.NightMode), id)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
