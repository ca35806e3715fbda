package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grainco/texture-analyzer/internal/api"
	"github.com/grainco/texture-analyzer/internal/config"
	"github.com/grainco/texture-analyzer/internal/logging"
	"github.com/grainco/texture-analyzer/internal/materialapi"
	"github.com/grainco/texture-analyzer/internal/session"
	"github.com/grainco/texture-analyzer/internal/storage"
	"github.com/grainco/texture-analyzer/internal/web"
	"github.com/grainco/texture-analyzer/internal/workflow"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const defaultConfigPath = "texture-analyzer.yaml"

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if err := run(cfg, configPath); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.AppConfig, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Preview blobs live only in memory
	var images storage.Store = storage.NewMemoryStore(cfg.Sessions.MaxImageBytes)

	client := materialapi.NewClient(materialapi.ClientOpts{
		BaseURL: cfg.Backend.APIURL,
		Timeout: cfg.Backend.RequestTimeout,
		Debug:   cfg.Backend.Debug,
	})

	sessionMgr := session.NewManager(func(id string) *workflow.Workflow {
		return workflow.New(id, client, images)
	}, images, cfg.Sessions.MaxSessions)

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	var requestLogger echo.MiddlewareFunc
	if cfg.Logging.RequestLogging {
		requestLogger = logging.RequestLogger()
	}
	api.SetupMiddleware(e, api.MiddlewareOptions{
		AllowOrigins: cfg.Server.AllowOrigins,
		BodyLimit:    cfg.Server.BodyLimit,
		EnableGzip:   cfg.Server.EnableGzip,
		Logger:       requestLogger,
	})

	if err := web.RegisterStaticRoutes(e); err != nil {
		return err
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Images:        images,
		Sessions:      sessionMgr,
		MaxImageBytes: cfg.Sessions.MaxImageBytes,
		BackendURL:    client.BaseURL(),
		Version:       Version,
	})
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	printBanner(cfg, configPath)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Background session cleanup
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sessions.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(cfg.Sessions.Timeout); n > 0 {
					log.Info().Int("removed", n).Int("active", sessionMgr.Count()).Int("images", images.Count()).Msg("expired sessions cleaned up")
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Material & Texture Analyzer                     ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Backend:   %-46s║\n", cfg.Backend.APIURL)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
