// Package metrics provides Prometheus-compatible metrics for the mock server.
//
// It implements the Prometheus text exposition format (text/plain;
// version=0.0.4) with two metric kinds: labelled counters and gauges whose
// value is read from a function at scrape time.
//
// The server exposes:
//
//   - devmock_requests_total: in-scope requests (label: outcome = matched, not_found, fallthrough)
//   - devmock_module_loads_total: module load attempts (label: result = ok, error)
//   - devmock_modules: registered modules
//   - devmock_handlers: registered handlers
//
// Custom metrics can also be created:
//
//	registry := metrics.NewRegistry()
//	counter := registry.NewCounter("my_counter", "Description of counter", "label1")
//	vec, _ := counter.WithLabels("value1")
//	_ = vec.Inc()
//	http.Handle("/metrics", registry.Handler())
package metrics
