package metrics

import "net/http"

// Load results recorded by ObserveLoad.
const (
	LoadOK    = "ok"
	LoadError = "error"
)

// Metrics holds the mock server's metrics in its own Registry.
type Metrics struct {
	registry *Registry
	requests *Counter
	loads    *Counter
}

// New creates the mock server metrics. modules and handlers are read at
// scrape time.
func New(modules, handlers func() float64) *Metrics {
	r := NewRegistry()
	m := &Metrics{
		registry: r,
		requests: r.NewCounter("devmock_requests_total",
			"In-scope requests handled by the mock dispatcher, by outcome.", "outcome"),
		loads: r.NewCounter("devmock_module_loads_total",
			"Mock module load attempts, by result.", "result"),
	}
	r.NewGaugeFunc("devmock_modules", "Mock modules currently registered.", modules)
	r.NewGaugeFunc("devmock_handlers", "Mock handlers currently registered.", handlers)
	return m
}

// ObserveRequest counts one dispatched request.
func (m *Metrics) ObserveRequest(outcome string) {
	if vec, err := m.requests.WithLabels(outcome); err == nil {
		_ = vec.Inc()
	}
}

// ObserveLoad counts one module load.
func (m *Metrics) ObserveLoad(err error) {
	result := LoadOK
	if err != nil {
		result = LoadError
	}
	if vec, verr := m.loads.WithLabels(result); verr == nil {
		_ = vec.Inc()
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *Registry { return m.registry }

// Handler serves the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler { return m.registry.Handler() }
