package perf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "cascade"
	gridSubsystem    = "grid"
)

// Metrics — счётчики таблицы и гистограмма задержки правка → кадр
type Metrics struct {
	// InputLatencySeconds — измерения Probe
	InputLatencySeconds prometheus.Histogram
	// EditsTotal — правки по результату: ok, invalid_reference, option_unavailable, option_taken
	EditsTotal *prometheus.CounterVec
	// RedrawCells — сколько ячеек попало в уведомление о перерисовке
	RedrawCells prometheus.Histogram
	// Rows — текущий размер таблицы
	Rows prometheus.Gauge
	// FirstRenderSeconds — одноразовый замер первой отрисовки
	FirstRenderSeconds prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg. Для тестов — отдельный prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InputLatencySeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: gridSubsystem,
			Name:      "input_latency_seconds",
			Help:      "Time from edit start to the next frame after the redraw was scheduled",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1, 0.2, 0.5},
		}),
		EditsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gridSubsystem,
			Name:      "edits_total",
			Help:      "Field edits by result",
		}, []string{"result"}),
		RedrawCells: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: gridSubsystem,
			Name:      "redraw_cells",
			Help:      "Cells listed in a change notification",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
		Rows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: gridSubsystem,
			Name:      "rows",
			Help:      "Current number of grid rows",
		}),
		FirstRenderSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: gridSubsystem,
			Name:      "first_render_seconds",
			Help:      "Time from startup to the first complete grid",
		}),
	}
}
