package metrics

import (
	"net/http"

	"github.com/nspcc-dev/chainjson/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a new service for gathering prometheus metrics
// from the given gatherer (prometheus.DefaultGatherer if nil).
func NewPrometheusService(cfg config.BasicService, g prometheus.Gatherer, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:    addr,
			Handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{}), // share metrics between multiple prometheus handlers
		}
	}
	return NewService("Prometheus", srvs, cfg, log)
}
