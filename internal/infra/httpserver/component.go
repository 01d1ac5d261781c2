package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/metrics"
)

type HTTPServerComponent struct {
	*core.BaseComponent
	Metrics *metrics.Component `infra:"dep:prometheus?"`

	cfg       *HTTPServerConfig
	container *core.Container
	router    chi.Router
	server    *http.Server
	extras    []RouteRegisterFunc

	mu   sync.Mutex
	addr string
}

func NewHTTPServerComponent(cfg *HTTPServerConfig, c *core.Container) *HTTPServerComponent {
	return &HTTPServerComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_HTTP_SERVER, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		container:     c,
	}
}

// AddRouteRegistrar adds a registrar that runs after the global ones. Must precede Start.
func (hc *HTTPServerComponent) AddRouteRegistrar(fn RouteRegisterFunc) error {
	if fn == nil {
		return nil
	}
	if hc.IsActive() {
		return fmt.Errorf("cannot register route: http_server already started")
	}
	hc.extras = append(hc.extras, fn)
	return nil
}

// Handler builds the router without listening. Start calls it; tests can use it with httptest.
func (hc *HTTPServerComponent) Handler() (http.Handler, error) {
	hc.cfg.applyDefaults()
	hc.router = chi.NewRouter()
	hc.setupMiddlewares()
	if hc.cfg.EnableHealth {
		hc.router.Get("/healthz", hc.healthHandler)
	}
	if hc.Metrics != nil {
		hc.router.Method(http.MethodGet, hc.Metrics.Path(), hc.Metrics.Handler())
	}
	for _, fn := range append(snapshot(), hc.extras...) {
		if err := fn(hc.router, hc.container); err != nil {
			return nil, fmt.Errorf("route register failed: %w", err)
		}
	}
	return hc.router, nil
}

func (hc *HTTPServerComponent) Start(ctx context.Context) error {
	if hc.cfg == nil || !hc.cfg.Enabled {
		return errors.New("http_server disabled or missing config")
	}
	handler, err := hc.Handler()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", hc.cfg.Address)
	if err != nil {
		return fmt.Errorf("http_server listen %s: %w", hc.cfg.Address, err)
	}
	hc.mu.Lock()
	hc.addr = ln.Addr().String()
	hc.mu.Unlock()

	hc.server = &http.Server{
		ReadTimeout:  hc.cfg.ReadTimeout,
		WriteTimeout: hc.cfg.WriteTimeout,
		IdleTimeout:  hc.cfg.IdleTimeout,
		Handler:      handler,
	}
	go func() {
		logging.Infof(ctx, "http_server listening on %s", ln.Addr())
		if err := hc.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf(ctx, "http_server server error: %v", err)
		}
	}()
	return hc.BaseComponent.Start(ctx)
}

func (hc *HTTPServerComponent) Stop(ctx context.Context) error {
	defer func() { _ = hc.BaseComponent.Stop(ctx) }()
	if hc.server == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, hc.cfg.GracefulTimeout)
	defer cancel()
	if err := hc.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("http_server graceful shutdown failed: %w", err)
	}
	logging.Infof(ctx, "http_server server stopped")
	return nil
}

// Addr returns the bound address once started (useful with ":0").
func (hc *HTTPServerComponent) Addr() string {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.addr
}

func (hc *HTTPServerComponent) healthHandler(w http.ResponseWriter, _ *http.Request) {
	for name, comp := range hc.container.ListRegistered() {
		if !comp.IsActive() || name == consts.COMPONENT_HTTP_SERVER {
			continue
		}
		if err := comp.HealthCheck(); err != nil {
			http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (hc *HTTPServerComponent) setupMiddlewares() {
	hc.router.Use(middleware.RequestID)
	hc.router.Use(middleware.RealIP)
	hc.router.Use(middleware.Recoverer)
	// extracts W3C traceparent and starts a server span
	hc.router.Use(otelchi.Middleware(hc.cfg.ServiceName))
	hc.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				ww.Header().Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID().String(), sc.SpanID().String()))
			}
			next.ServeHTTP(ww, r.WithContext(ctx))
			logging.Info(ctx, "http_access",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
			)
		})
	})
}

// RequestTimeout is the per-request bound controllers apply to read endpoints.
func (hc *HTTPServerComponent) RequestTimeout() time.Duration {
	return hc.cfg.RequestTimeout
}
