package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/network/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	conf     config.Monitoring
	server   *httpx.Server
	registry *prometheus.Registry
	log      *logger.Logger
}

// New creates new monitoring service.
// The metrics of the client go into Registry.
func New(conf config.Monitoring, log *logger.Logger) (*Monitoring, error) {
	log = log.Module("monitoring")
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	serv, err := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) httpx.Handler {
			h := httpx.NewServeMux(conf.URLPrefix)
			if conf.ProfilingEnabled {
				prefix := "/debug/pprof"
				log.Info().Msgf("Profiling is enabled at %v", serv.Addr+conf.URLPrefix+prefix)
				h.HandleFunc(prefix+"/", pprof.Index)
				h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
				h.HandleFunc(prefix+"/profile", pprof.Profile)
				h.HandleFunc(prefix+"/symbol", pprof.Symbol)
				h.HandleFunc(prefix+"/trace", pprof.Trace)
				// named profiles under a custom prefix are not reachable through Index
				for _, p := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
					h.Handle(prefix+"/"+p, pprof.Handler(p))
				}
			}
			if conf.MetricEnabled {
				log.Info().Msgf("Prometheus metric is enabled at %v", serv.Addr+conf.URLPrefix+"/metrics")
				h.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			}
			return h
		},
		httpx.WithPortRoll(true),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return &Monitoring{conf: conf, server: serv, registry: reg, log: log}, nil
}

// Registry is where the client metrics are registered.
func (m *Monitoring) Registry() *prometheus.Registry { return m.registry }

func (m *Monitoring) Addr() string { return m.server.Addr }

func (m *Monitoring) Run() {
	m.log.Info().Msgf("Starting monitoring server at %v", m.server.Addr)
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
