package rserver

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// metrics bundles the Prometheus collectors the server exposes. Each
// Server builds its own set in newMetrics, registers it once on the
// given registerer, and updates it from the connection/accept paths.
type metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	connectionsMax    prometheus.Gauge
	acceptErrors      prometheus.Counter
	commandsTotal     *prometheus.CounterVec
	unknownCommands   prometheus.Counter
	publishes         prometheus.Counter
	subscribers       prometheus.Gauge

	cpuPercent     prometheus.Gauge
	hostCPUPercent prometheus.Gauge
	rssBytes       prometheus.Gauge
	goroutines     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, maxConnections int) *metrics {
	m := &metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniredis_connections_total",
			Help: "Total accepted connections.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_connections_active",
			Help: "Currently active connections.",
		}),
		connectionsMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_connections_max",
			Help: "Configured connection permit pool size.",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniredis_accept_errors_total",
			Help: "Total accept() errors observed by the acceptor.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniredis_commands_total",
			Help: "Commands applied, by kind.",
		}, []string{"kind"}),
		unknownCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniredis_unknown_commands_total",
			Help: "Commands rejected as unrecognized.",
		}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniredis_publishes_total",
			Help: "Total PUBLISH commands applied.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_subscribers_active",
			Help: "Sum of channel subscriptions currently held across sessions.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_process_cpu_percent",
			Help: "Observational process CPU percentage; never gates admission.",
		}),
		hostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_host_cpu_percent",
			Help: "Observational whole-host CPU percentage, for comparison against the process gauge.",
		}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_process_rss_bytes",
			Help: "Observational process resident set size in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniredis_goroutines",
			Help: "Current goroutine count.",
		}),
	}

	reg.MustRegister(
		m.connectionsTotal, m.connectionsActive, m.connectionsMax, m.acceptErrors,
		m.commandsTotal, m.unknownCommands, m.publishes, m.subscribers,
		m.cpuPercent, m.hostCPUPercent, m.rssBytes, m.goroutines,
	)
	m.connectionsMax.Set(float64(maxConnections))
	return m
}

// sampleProcess refreshes the observational gauges from gopsutil. It
// is invoked periodically by the server; failures are ignored since
// these gauges are observational only and never gate admission.
func (m *metrics) sampleProcess(proc *process.Process) {
	m.goroutines.Set(float64(runtime.NumGoroutine()))

	if proc == nil {
		return
	}
	if pct, err := proc.CPUPercent(); err == nil {
		m.cpuPercent.Set(pct)
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		m.rssBytes.Set(float64(info.RSS))
	}

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		m.hostCPUPercent.Set(pcts[0])
	}
}
