package exporter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rxtx-hosting/stationlens/pkg/reconciler"
	"github.com/rxtx-hosting/stationlens/pkg/scheduler"
)

type StatusSource interface {
	Status() scheduler.Status
}

// APIServer is a read-only JSON view of what the metrics endpoint exports.
type APIServer struct {
	registry *Registry
	status   StatusSource
	srv      *http.Server
}

type serversResponse struct {
	Servers   []reconciler.Series `json:"servers"`
	UpdatedAt string              `json:"updated_at,omitempty"`
}

func NewAPIServer(addr string, registry *Registry, status StatusSource) *APIServer {
	a := &APIServer{
		registry: registry,
		status:   status,
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

func (a *APIServer) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/servers", a.handleGetAllServers)
	r.GET("/api/servers/:name", a.handleGetServer)
	r.GET("/api/status", a.handleGetStatus)

	return r
}

func (a *APIServer) StartServer() error {
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *APIServer) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

func (a *APIServer) handleGetAllServers(c *gin.Context) {
	series, updatedAt := a.registry.Snapshot()

	response := serversResponse{Servers: series}
	if !updatedAt.IsZero() {
		response.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, response)
}

func (a *APIServer) handleGetServer(c *gin.Context) {
	name := c.Param("name")

	series, exists := a.registry.Lookup(name)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
		return
	}

	c.JSON(http.StatusOK, series)
}

func (a *APIServer) handleGetStatus(c *gin.Context) {
	if a.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status unavailable"})
		return
	}

	c.JSON(http.StatusOK, a.status.Status())
}
