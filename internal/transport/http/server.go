// Package httpapi serves the read-only status API. No mutation
// endpoints: the loop is driven by configuration, not by HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cryptoden/internal/director"
	"cryptoden/internal/grid"
	"cryptoden/internal/logger"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

// Source is the slice of orchestrator state the API reads.
type Source interface {
	AuthorityView() director.AuthorityView
	RiskReading() director.RiskReading
	Controlling() bool
	ActiveTrades() []trade.Trade
	ClosedTrades(limit int) []trade.Trade
	GridLevels(symbol string) []grid.Level
	GridStats() grid.Stats
	SignalsToday() []signal.Record
}

type Server struct {
	addr   string
	source Source
	router *gin.Engine
}

func NewServer(addr string, source Source) *Server {
	if addr == "" {
		addr = ":8642"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{addr: addr, source: source, router: router}
	api := router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/trades", s.handleTrades)
	api.GET("/grid/:symbol", s.handleGrid)
	api.GET("/signals/today", s.handleSignalsToday)
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authority":   s.source.AuthorityView(),
		"risk":        s.source.RiskReading(),
		"controlling": s.source.Controlling(),
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active": s.source.ActiveTrades(),
		"closed": s.source.ClosedTrades(50),
	})
}

func (s *Server) handleGrid(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"levels": s.source.GridLevels(symbol),
		"stats":  s.source.GridStats(),
	})
}

func (s *Server) handleSignalsToday(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"signals": s.source.SignalsToday()})
}
