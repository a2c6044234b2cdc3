package attendance

import "github.com/prometheus/client_golang/prometheus"

// scanOutcomes counts scan/confirm results by kind so operators can watch
// conflict and rejection rates during a placement drive.
var scanOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_scan_outcomes_total",
	Help: "Scan and confirm outcomes by kind.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(scanOutcomes)
}
