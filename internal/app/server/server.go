// Package server wires storage, services, and transports into the Teamspace
// process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	authservice "github.com/louisbranch/teamspace/internal/auth/service"
	authsqlite "github.com/louisbranch/teamspace/internal/auth/storage/sqlite"
	"github.com/louisbranch/teamspace/internal/auth/sysadmin"
	"github.com/louisbranch/teamspace/internal/platform/otel"
	"github.com/louisbranch/teamspace/internal/tenant/invite"
	tenantservice "github.com/louisbranch/teamspace/internal/tenant/service"
	tenantsqlite "github.com/louisbranch/teamspace/internal/tenant/storage/sqlite"
	"github.com/louisbranch/teamspace/internal/web"
)

// sweepInterval drives periodic expiry cleanup for ceremonies and sessions.
const sweepInterval = 5 * time.Minute

// Server hosts the Teamspace HTTP API and the gRPC health endpoint.
type Server struct {
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server

	authStore   *authsqlite.Store
	tenantStore *tenantsqlite.Store
	auth        *authservice.AuthService

	otelShutdown func(context.Context) error
}

// New creates a configured server listening on the provided addresses.
func New(ctx context.Context, httpAddr string, grpcPort int) (*Server, error) {
	otelShutdown, err := otel.Setup(ctx, "teamspace")
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	authStore, err := openStore("TEAMSPACE_AUTH_DB_PATH", filepath.Join("data", "auth.db"), authsqlite.Open)
	if err != nil {
		return nil, err
	}
	tenantStore, err := openStore("TEAMSPACE_TENANT_DB_PATH", filepath.Join("data", "tenant.db"), tenantsqlite.Open)
	if err != nil {
		_ = authStore.Close()
		return nil, err
	}

	grantConfig, err := invite.LoadConfigFromEnv(time.Now)
	if err != nil {
		_ = authStore.Close()
		_ = tenantStore.Close()
		return nil, fmt.Errorf("load invite grant config: %w", err)
	}

	auth := authservice.NewAuthService(authStore, authStore, authStore, authStore)
	gate := sysadmin.LoadGateFromEnv()
	tenants := tenantservice.NewTenantService(tenantStore, tenantStore, authStore, gate, grantConfig)

	mux := http.NewServeMux()
	webServer := web.NewServer(auth, tenants, web.LoadConfigFromEnv())
	webServer.RegisterRoutes(mux)

	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = authStore.Close()
		_ = tenantStore.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", httpAddr, err)
	}

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		_ = httpListener.Close()
		_ = authStore.Close()
		_ = tenantStore.Close()
		return nil, fmt.Errorf("listen on grpc port %d: %w", grpcPort, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		httpListener: httpListener,
		httpServer:   &http.Server{Handler: web.WithSpan(mux)},
		grpcListener: grpcListener,
		grpcServer:   grpcServer,
		health:       healthServer,
		authStore:    authStore,
		tenantStore:  tenantStore,
		auth:         auth,
		otelShutdown: otelShutdown,
	}, nil
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, httpAddr string, grpcPort int) error {
	server, err := New(ctx, httpAddr, grpcPort)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStores()
	defer s.shutdownTelemetry()

	s.startSweeper(serveCtx)

	log.Printf("http server listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	log.Printf("grpc health server listening at %v", s.grpcListener.Addr())
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()

	shutdown := func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		shutdown()
		<-httpErr
		<-grpcErr
		return nil
	case err := <-httpErr:
		shutdown()
		<-grpcErr
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-grpcErr:
		shutdown()
		<-httpErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve grpc: %w", err)
	}
}

// startSweeper runs periodic expiry cleanup so spent challenges, sessions,
// and magic links do not accumulate.
func (s *Server) startSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.auth.SweepExpiredCeremonies(ctx); err != nil {
					log.Printf("sweep ceremonies: %v", err)
				}
				if err := s.auth.SweepExpiredSessions(ctx); err != nil {
					log.Printf("sweep sessions: %v", err)
				}
			}
		}
	}()
}

func openStore[T interface{ Close() error }](envKey, fallback string, open func(string) (T, error)) (T, error) {
	var zero T
	path := strings.TrimSpace(os.Getenv(envKey))
	if path == "" {
		path = fallback
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zero, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := open(path)
	if err != nil {
		return zero, fmt.Errorf("open sqlite store %s: %w", path, err)
	}
	return store, nil
}

func (s *Server) closeStores() {
	if s.authStore != nil {
		if err := s.authStore.Close(); err != nil {
			log.Printf("close auth store: %v", err)
		}
	}
	if s.tenantStore != nil {
		if err := s.tenantStore.Close(); err != nil {
			log.Printf("close tenant store: %v", err)
		}
	}
}

func (s *Server) shutdownTelemetry() {
	if s.otelShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.otelShutdown(ctx); err != nil {
		log.Printf("shutdown telemetry: %v", err)
	}
}
