package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/nspcc-dev/chainjson/pkg/config"
	"go.uber.org/zap"
)

// Service serves metrics.
type Service struct {
	http        []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	wg          sync.WaitGroup
}

// NewService configures logger and returns a new service instance.
func NewService(name string, httpServers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	return &Service{
		http:        httpServers,
		config:      cfg,
		serviceType: name,
		log:         log.With(zap.String("service", name)),
	}
}

// Start runs http service with the exposed endpoint on the configured port.
// Listeners are bound synchronously, so binding errors are returned. If any
// of them fails, already started servers are stopped.
func (ms *Service) Start() error {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return nil
	}
	for i, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			ms.stop(ms.http[:i])
			return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
		}
		srv.Addr = ln.Addr().String() // Fixes the actual address for :0 ports.
		ms.log.Info("starting service", zap.String("endpoint", srv.Addr))
		ms.wg.Add(1)
		go func(s *http.Server) {
			defer ms.wg.Done()
			err := s.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to serve", zap.String("endpoint", s.Addr), zap.Error(err))
			}
		}(srv)
	}
	return nil
}

// Addresses returns the actual listen addresses (valid after Start).
func (ms *Service) Addresses() []string {
	res := make([]string, len(ms.http))
	for i, srv := range ms.http {
		res[i] = srv.Addr
	}
	return res
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	ms.stop(ms.http)
}

func (ms *Service) stop(servers []*http.Server) {
	for _, srv := range servers {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	ms.wg.Wait()
}
