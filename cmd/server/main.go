package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kiliankoe/promptparty/internal/cards"
	"github.com/kiliankoe/promptparty/internal/config"
	"github.com/kiliankoe/promptparty/internal/game"
	"github.com/kiliankoe/promptparty/internal/ws"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Prompt Party - Real-time fill-in-the-blank card game

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  LOG_LEVEL           trace, debug, info, warn, error (default: info)
  LOG_FORMAT          console or json (default: console)
  CARDS_DIR           Directory with prompts.json and answers.json (default: built-in cards)
  MIN_PLAYERS         Players needed to start (default: 3)
  MAX_PLAYERS         Seats per session (default: 8)
  HAND_SIZE           Cards per hand (default: 5)
  WIN_POINTS          Points needed to win (default: 5)
  JUDGE_PICK_TIME     Time for the judge to pick a prompt (default: 20s)
  PLAYERS_PICK_TIME   Time for players to answer (default: 60s)
  JUDGE_SELECT_TIME   Time for the judge to pick a winner (default: 60s)
  ROUND_OVER_TIME     Pause before the next round, 0 waits for the host (default: 0)
  ANONYMOUS_JUDGING   Hide and shuffle answer authors while judging (default: false)
  SWEEP_INTERVAL      How often finished sessions are dropped (default: 5m)
  ACTION_RATE         Actions per second per connection (default: 10)
  ACTION_BURST        Action burst per connection (default: 20)
  EXPORT_ENABLED      Export round results to file (default: false)
  EXPORT_FILE         Path to export results (default: ./promptparty-results.txt)
  CORS_ORIGIN         Allowed origin for Socket.IO polling (default: *)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Prompt Party %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	// zerolog setup (human-friendly console unless json is asked for)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.LogFormat == "console" {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = log.Output(cw)
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var provider cards.Provider = cards.Embedded()
	if cfg.CardsDir != "" {
		provider = cards.Dir(cfg.CardsDir)
	}
	// fail at boot rather than on the first create
	catalog, err := provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}
	log.Info().Int("prompts", len(catalog.Prompts)).Int("answers", len(catalog.Answers)).Msg("cards loaded")

	rm := game.NewRoomManager(cfg.Rules(), provider, game.WithLogger(log.Logger))
	sock := ws.New(rm, cfg)

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		log.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	io := sock.Mount(r)
	defer io.Close()
	routes(r, rm)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if removed := rm.Sweep(); len(removed) > 0 {
					log.Info().Strs("codes", removed).Int("live", rm.Len()).Msg("swept finished sessions")
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func routes(r *gin.Engine, rm *game.RoomManager) {
	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC(), "sessions": rm.Len()})
	})

	// Lets a client check a code before joining
	r.GET("/api/sessions/:code", func(c *gin.Context) {
		sess, err := rm.Get(strings.ToUpper(c.Param("code")))
		switch {
		case errors.Is(err, game.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code"})
		case err != nil:
			c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		default:
			c.JSON(http.StatusOK, sess.Info())
		}
	})
}
