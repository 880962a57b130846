// Package gatewayhttp is the HTTP Surface (spec §4.H): it wires the
// session pool, file cache, client selector, chunk fetcher, prefetch
// pipeline, stream registry, and token/quota manager into three routes.
// Route registration and the server lifecycle follow the teacher's own
// internal/server/server.go (Response envelope, logging middleware,
// Start/Stop with a write-timeout-free http.Server); the routing itself
// uses gin, the framework the teacher already depends on for its other
// JSON surfaces and the one the Telegram-streaming sibling examples use
// for this exact kind of route.
package gatewayhttp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tgstream/gateway/internal/config"
	"github.com/tgstream/gateway/internal/idcodec"
	"github.com/tgstream/gateway/internal/mtproto"
	"github.com/tgstream/gateway/internal/quota"
	"github.com/tgstream/gateway/internal/registry"
)

// Response is the envelope used for every non-streaming JSON reply,
// carried over verbatim from the teacher's server.Response.
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Server owns every collaborator the HTTP surface dispatches to.
type Server struct {
	log *zap.Logger
	cfg *config.Config

	pool     *mtproto.SessionPool
	cache    *mtproto.FileCache
	upstream mtproto.Upstream
	fetcher  *mtproto.Fetcher
	codec    *idcodec.Codec
	reg      *registry.Registry
	store    quota.Store
	tracker  *quota.Tracker

	engine *gin.Engine
	srv    *http.Server
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	pool *mtproto.SessionPool,
	cache *mtproto.FileCache,
	upstream mtproto.Upstream,
	fetcher *mtproto.Fetcher,
	codec *idcodec.Codec,
	reg *registry.Registry,
	store quota.Store,
	tracker *quota.Tracker,
) *Server {
	return &Server{
		log:      log,
		cfg:      cfg,
		pool:     pool,
		cache:    cache,
		upstream: upstream,
		fetcher:  fetcher,
		codec:    codec,
		reg:      reg,
		store:    store,
		tracker:  tracker,
	}
}

// Start builds the route table and begins serving. It blocks until the
// listener stops, mirroring the teacher's Server.Start.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(s.loggingMiddleware(), gin.Recovery())

	engine.GET("/dl/:token/:id/:name", s.handleDownload)
	engine.HEAD("/dl/:token/:id/:name", s.handleDownload)
	engine.GET("/stream/stats", s.handleStats)
	engine.GET("/stream/stats/:stream_id", s.handleStreamDetail)

	s.engine = engine
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams run arbitrarily long
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("starting gateway", zap.Int("port", s.cfg.Port))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down, letting in-flight streams drain
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func writeJSON(c *gin.Context, status int, resp Response) {
	resp.Code = status
	c.JSON(status, resp)
}

func writeError(c *gin.Context, status int, message string) {
	writeJSON(c, status, Response{Data: nil, Message: message})
}
