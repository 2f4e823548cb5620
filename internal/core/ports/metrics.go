package ports

// Counter is a monotonically increasing metric.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge is a metric that can move in both directions.
type Gauge interface {
	Inc()
	Dec()
	Set(value float64)
}

// MetricsRegistry hands out named instruments. Labels are constant per
// instrument (typically just the origin name).
type MetricsRegistry interface {
	Counter(name string, labels map[string]string) Counter
	Gauge(name string, labels map[string]string) Gauge
}
