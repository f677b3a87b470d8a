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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	router "github.com/dkeye/Colla/internal/adapters/http"
	wssignal "github.com/dkeye/Colla/internal/adapters/signal"
	"github.com/dkeye/Colla/internal/app"
	"github.com/dkeye/Colla/internal/app/orch"
	"github.com/dkeye/Colla/internal/config"
	"github.com/dkeye/Colla/internal/identity"
	"github.com/dkeye/Colla/internal/metrics"
	"github.com/dkeye/Colla/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "colla",
	Short: "Realtime coordinator for collaborative editing, chat and video signaling",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd, migrateCmd)
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	setupLogger(cfg)
	return cfg, nil
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Storage.Driver != "postgres" {
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.Storage.DSN, cfg.Storage.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := pg.RunMigrations(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return errors.New("migrate needs storage.driver=postgres")
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	st.Close()
	log.Info().Msg("migrations applied")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	action, err := app.ParseBackpressureAction(cfg.Backpressure)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	rooms := app.NewRoomManager()
	m.RegisterRooms(func() int { return len(rooms.List()) })
	o := orch.New(app.NewRegistry(), rooms, app.SimplePolicy{Action: action}, m)

	tokens := identity.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	ctl := wssignal.NewSignalWSController(o, m, wssignal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.CORSOrigins,
	})

	h := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:     o,
		Signal:   ctl,
		Identity: identity.NewService(st, tokens),
		Tokens:   tokens,
		Store:    st,
		Metrics:  m,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		log.Info().Str("addr", addr).Msg("Colla server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
	return nil
}
