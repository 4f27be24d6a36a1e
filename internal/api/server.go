package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-devialet/internal/coordinator"
	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds a single REST command, including the device round trip.
const commandTimeout = 10 * time.Second

// Coordinator is the view of the speaker the API serves.
// It is satisfied by *coordinator.Coordinator.
type Coordinator interface {
	State() (devialet.DeviceState, bool)
	Info(ctx context.Context) (devialet.DeviceInfo, error)
	Execute(ctx context.Context, command string, params devialet.Params) (devialet.Result, error)
	Subscribe(fn func(devialet.DeviceState)) (unsubscribe func())
	OnAvailability(fn func(available bool, err error)) (unsubscribe func())
	Available() bool
	Phase() coordinator.Phase
	ConsecutiveFailures() int
	LastError() error
}

// ConnectionChecker reports broker connectivity for the health endpoint.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Coordinator Coordinator
	DeviceID    string

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// MQTT is optional; when set its connectivity appears in /health.
	MQTT ConnectionChecker

	Version string
}

// Server is the HTTP API server for the Devialet bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	coord       Coordinator
	deviceID    string
	gatherer    prometheus.Gatherer
	mqtt        ConnectionChecker
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	unsubscribe []func()
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		coord:     deps.Coordinator,
		deviceID:  deps.DeviceID,
		gatherer:  deps.Gatherer,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays coordinator state changes to it, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.relayState()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayState forwards coordinator notifications to WebSocket subscribers.
func (s *Server) relayState() {
	s.unsubscribe = append(s.unsubscribe,
		s.coord.Subscribe(func(state devialet.DeviceState) {
			s.hub.Broadcast(ChannelState, s.stateResponse(state))
		}),
		s.coord.OnAvailability(func(available bool, err error) {
			payload := AvailabilityEvent{DeviceID: s.deviceID, Available: available}
			if err != nil {
				payload.Error = err.Error()
			}
			s.hub.Broadcast(ChannelAvailability, payload)
		}),
	)
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.unsubscribe = nil

	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
