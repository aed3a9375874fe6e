package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"scc-link-go/internal/platform/config"
	"scc-link-go/internal/platform/logging"
)

const shutdownTimeout = 5 * time.Second

// Server bundles the REST auth API and the websocket gateway behind one
// HTTP listener.
type Server struct {
	cfg     config.ServerConfig
	engine  *gin.Engine
	gateway *Gateway
	logger  *logging.Logger
	httpSrv *http.Server
}

// New assembles the reference backend.
func New(cfg config.ServerConfig, store SessionStore, users *UserRepository, tokens *TokenService, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	gateway := NewGateway(store, users, tokens, cfg.SessionTTL, logger)

	api := engine.Group("/api")
	newAuthAPI(users, tokens, logger).register(api)

	wsPath := cfg.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	engine.GET(wsPath, func(c *gin.Context) {
		gateway.Handle(c.Writer, c.Request)
	})

	return &Server{
		cfg:     cfg,
		engine:  engine,
		gateway: gateway,
		logger:  logger,
	}
}

// Handler exposes the assembled routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start boots the HTTP listener and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.httpSrv != nil {
		return nil
	}

	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.engine,
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = s.httpSrv.Shutdown(shutdownCtx)
		}()
	}

	s.logger.Info("scc-linkd listening on %s", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP listener.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return err
	}
	s.httpSrv = nil
	return nil
}
