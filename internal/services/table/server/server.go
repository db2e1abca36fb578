// Package server wires the map authority: store, hub, grant verifier, and the
// HTTP listener. It sits above app and the api packages so neither has to know
// how the binary assembles them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/seralith/wartable/internal/grant"
	"github.com/seralith/wartable/internal/platform/config"
	"github.com/seralith/wartable/internal/services/table/api/rest"
	"github.com/seralith/wartable/internal/services/table/api/ws"
	"github.com/seralith/wartable/internal/services/table/app"
	tablesqlite "github.com/seralith/wartable/internal/services/table/storage/sqlite"
)

// serverEnv holds env-parsed configuration for the table server.
type serverEnv struct {
	DBPath string `env:"WARTABLE_TABLE_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "table.db")
	}
	return cfg
}

// Server hosts the map authority service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *tablesqlite.Store
}

// New creates a configured table server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured table server listening on the provided address.
func NewWithAddr(addr string) (*Server, error) {
	srvEnv := loadServerEnv()

	verifier, err := grant.LoadVerifierFromEnv(nil)
	if err != nil {
		return nil, fmt.Errorf("load grant verifier: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := tablesqlite.Open(srvEnv.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("open table store: %w", err)
	}

	hub := ws.NewHub()
	service := app.NewService(store, hub)
	api := rest.New(service, hub, verifier)

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		store: store,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks serving HTTP until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()
	log.Printf("table server listening on %s", s.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("table server shutdown: %v", err)
		}
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = s.store.Close()
			return fmt.Errorf("serve http: %w", err)
		}
	}
	return s.store.Close()
}

// Run starts the table server on the given port and blocks until ctx ends.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// RunWithAddr starts the table server on the given address and blocks until ctx ends.
func RunWithAddr(ctx context.Context, addr string) error {
	server, err := NewWithAddr(addr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}
