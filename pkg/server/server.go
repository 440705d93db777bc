// Package server exposes the health-check backend over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/asadm"
	"github.com/clusterops/aerohealth/pkg/constants"
	"github.com/clusterops/aerohealth/pkg/extract"
	"github.com/clusterops/aerohealth/pkg/store"
)

// defaultOrigins covers the local frontend dev servers.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:5173",
}

type Options struct {
	Addr        string
	Store       store.Store
	Runner      *asadm.Runner
	Oracle      extract.Generator
	ScratchRoot string
	LogsDir     string
	Workers     int
	Origins     []string
}

type Server struct {
	addr        string
	store       store.Store
	runner      *asadm.Runner
	oracle      extract.Generator
	scratchRoot string
	logsDir     string
	workers     int
	engine      *gin.Engine
}

func New(opts Options) *Server {
	if opts.Workers <= 0 {
		opts.Workers = constants.DEFAULT_WORKERS
	}
	if opts.LogsDir == "" {
		opts.LogsDir = constants.LogsDirName
	}
	if len(opts.Origins) == 0 {
		opts.Origins = defaultOrigins
	}

	s := &Server{
		addr:        opts.Addr,
		store:       opts.Store,
		runner:      opts.Runner,
		oracle:      opts.Oracle,
		scratchRoot: opts.ScratchRoot,
		logsDir:     opts.LogsDir,
		workers:     opts.Workers,
	}

	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(cors.New(cors.Config{
		AllowOrigins:     opts.Origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	g.POST("/upload", s.uploadSingle)
	g.GET("/health", s.health)
	g.GET("/debug/files", s.debugFiles)
	g.DELETE("/clear-logs", s.clearLogs)

	g.GET("/health-checks", s.listHealthChecks)
	g.POST("/health-checks/create", s.createHealthCheck)
	g.POST("/health-checks/:id/upload", s.uploadToHealthCheck)
	g.GET("/health-checks/:id", s.getHealthCheck)
	g.GET("/health-checks/:id/cluster/:key", s.getClusterResult)
	g.DELETE("/health-checks/:id", s.deleteHealthCheck)

	s.engine = g
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve blocks until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
