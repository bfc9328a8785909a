package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mborders/logmatic"
	"github.com/rs/cors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/filiksyos/ghostmrr/internal/config"
	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/infra/feed"
	"github.com/filiksyos/ghostmrr/internal/infra/ratelimit"
	"github.com/filiksyos/ghostmrr/internal/logging"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log *logmatic.Logger

	submitUC  *usecase.SubmitBadge
	replaceUC *usecase.ReplaceBadge
	verifyUC  *usecase.VerifyBadge
	queryUC   *usecase.QueryBadges
	feed      *feed.Hub

	storageMode string
	accessLog   io.Closer

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Submit      *usecase.SubmitBadge
	Replace     *usecase.ReplaceBadge
	Verify      *usecase.VerifyBadge
	Query       *usecase.QueryBadges
	Feed        *feed.Hub
	RateLimiter domain.RateLimiter
	StorageMode string
	Log         *logmatic.Logger
	// AccessLog overrides where request lines are written. When nil, lines go
	// to stdout and, if ACCESS_LOG_FILE is set, a rotating file.
	AccessLog io.Writer
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	// DIDs may contain "/" and "+", so clients send them escaped and the
	// handlers unescape the raw segment themselves.
	r.UseRawPath = true
	r.UnescapePathValues = false

	s := &Server{
		cfg:         cfg,
		r:           r,
		log:         logging.Or(deps.Log),
		submitUC:    deps.Submit,
		replaceUC:   deps.Replace,
		verifyUC:    deps.Verify,
		queryUC:     deps.Query,
		feed:        deps.Feed,
		storageMode: deps.StorageMode,
	}
	if s.verifyUC == nil {
		s.verifyUC = &usecase.VerifyBadge{}
	}
	r.Use(gin.LoggerWithWriter(s.accessLogWriter(deps.AccessLog)), gin.Recovery())
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) accessLogWriter(override io.Writer) io.Writer {
	if override != nil {
		return override
	}
	if s.cfg.AccessLogFile == "" {
		return os.Stdout
	}
	rotating := &lumberjack.Logger{
		Filename:   s.cfg.AccessLogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	s.accessLog = rotating
	return io.MultiWriter(os.Stdout, rotating)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
			MaxKeys: s.cfg.RateLimitMaxKeys,
		})
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := s.storageMode
		if mode == "" {
			mode = s.cfg.StorageDriver
		}
		subscribers := 0
		if s.feed != nil {
			subscribers = s.feed.Len()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode, "feedSubscribers": subscribers})
	})

	for _, prefix := range []string{"/badges", "/api/badges"} {
		g := s.r.Group(prefix)
		g.POST("", s.rateLimited(routeBadgesSubmit), s.handleSubmit)
		g.GET("", s.handleList)
		g.POST("/verify", s.handleVerify)
		g.GET("/feed", s.handleFeed)
		g.GET("/:did", s.handleGet)
		g.PUT("/:did", s.rateLimited(routeBadgesReplace), s.handleReplace)
	}

	s.r.NoRoute(s.handleNoRoute)
}

// Handler is the gin engine wrapped with CORS for the configured front-end
// origins. Without configured origins the engine is returned as is.
func (s *Server) Handler() http.Handler {
	if len(s.cfg.CORSAllowedOrigins) == 0 {
		return s.r
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
	}).Handler(s.r)
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer s.closeAccessLog()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s (storage=%s)", s.cfg.HTTPAddr, s.cfg.StorageDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) closeAccessLog() {
	if s.accessLog != nil {
		_ = s.accessLog.Close()
	}
}
