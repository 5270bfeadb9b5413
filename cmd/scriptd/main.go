package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/scriptd/internal/config"
	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/http/handler"
	mw "github.com/edirooss/scriptd/internal/http/middleware"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
	"github.com/edirooss/scriptd/internal/redis"
	"github.com/edirooss/scriptd/internal/service"
)

func main() {
	var (
		showVersion bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "v", false, "print version and exit")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&configPath, "config", "", "path to config file (default "+config.DefaultPath+")")
	flag.Parse()

	if showVersion {
		fmt.Printf("scriptd %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}

	// Read env
	isDev := os.Getenv("ENV") == "dev"

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := buildLogger(isDev)
	defer log.Sync()

	if err := run(log.Named("main"), cfg, isDev); err != nil {
		log.Fatal("scriptd failed", zap.Error(err))
	}
}

func run(log *zap.Logger, cfg config.Config, isDev bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Exit history: Redis when configured, memory otherwise
	var exitRepo *redis.ExitRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(cfg.RedisAddr, cfg.RedisDB, log)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup; exit records may not persist", zap.Error(err))
		}
		exitRepo = redis.NewExitRepository(log, rdb, cfg.ExitHistory, cfg.ExitTTL)
	}

	var rec host.Recorder
	if exitRepo != nil {
		rec = exitRepo
	}
	sys := host.NewSystem(log, rec)
	defer sys.Close()

	sched := processmgr.New(log, sys, processmgr.Config{
		CyclesPerRun: cfg.CyclesPerRun,
		MaxProcs:     cfg.MaxProcs,
	})
	interp := service.NewInterpService(log, sched, sys.Outputs(), cfg.TimeBudgetMS)
	summary := service.NewSummaryService(log, interp, service.SummaryOptions{TTL: cfg.SummaryTTL})
	exits := service.NewExitService(log, exitRepo, sys)

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer()
	r := gin.New()
	{
		r.Use(gin.Recovery())
		r.Use(mw.RequestID())
		r.Use(mw.AccessLog(log))

		if isDev { // Enable CORS for local UI dev
			r.Use(cors.New(cors.Config{
				AllowOrigins:  []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders: []string{"X-Request-ID", "X-Total-Count", "X-Cache", "X-Summary-Generated-At", "X-Exit-Source", "Location"},
				MaxAge:        12 * time.Hour,
			}))
		} else { // Behind a TLS-terminating proxy
			if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
				return fmt.Errorf("trusted proxies: %w", err)
			}
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
				ContentTypeNosniff: true,
				FrameDeny:          true,
			}))
		}

		r.Use(mw.LimitConcurrentRequests(log, cfg.MaxConcurrentRequests))
		r.Use(func(c *gin.Context) {
			// Hard cap on request bodies; program sources are small.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2<<20)
			c.Next()
		})
	}

	api := r.Group("/api")
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	handler.NewProcsHandler(log, interp, summary).Mount(api)
	handler.NewLimitsHandler(interp).Mount(api)
	api.GET("/exits", handler.NewExitsHandler(exits).Recent)

	httpsrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := interp.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpsrv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	log.Info("server closed")
	return err
}

func buildLogger(isDev bool) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	if isDev {
		logConfig.Level.SetLevel(zap.DebugLevel)
	} else {
		logConfig.Level.SetLevel(zap.InfoLevel)
	}
	return zap.Must(logConfig.Build())
}
