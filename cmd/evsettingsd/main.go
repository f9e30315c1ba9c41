package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evervolv/evsettings/internal/api"
	"github.com/evervolv/evsettings/internal/config"
	"github.com/evervolv/evsettings/internal/engine"
	"github.com/evervolv/evsettings/internal/logging"
	"github.com/evervolv/evsettings/internal/server"
	"github.com/evervolv/evsettings/internal/vault"
	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/schema"
)

var (
	cfgFile string
	envFile string
	version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "evsettingsd",
		Short:        "settings provider daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{ConfigFile: cfgFile, EnvFile: envFile})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yml or /etc/evsettings/config.yml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment is read")
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, "evsettingsd")
	log.Info().Str("version", version).Msg("starting settings daemon")

	// 1. Storage
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store := engine.NewProvider(engine.Options{
		DataDir:   cfg.DataDir,
		Resources: cfg.Resources,
		Logger:    log,
	})
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("closing databases")
		}
	}()

	// The primary database is opened up front so that a pending schema
	// upgrade happens at startup rather than on the first request.
	if _, err := store.Database(ctx, schema.UserSystem); err != nil {
		return err
	}

	// 2. Hardware
	var hw hardware.Remote
	if cfg.Hardware.Configured() {
		svc, err := hardware.NewSysfsService(cfg.Hardware.Nodes, log, cfg.Hardware.ServiceOptions()...)
		if err != nil {
			return err
		}
		hw = svc
	}

	// 3. TCP router
	tokens := make(map[string][]server.Permission, len(cfg.Auth.Tokens))
	for token, names := range cfg.Auth.Tokens {
		perms, err := server.ParsePermissions(names)
		if err != nil {
			return fmt.Errorf("auth.tokens: %w", err)
		}
		tokens[token] = perms
	}
	router := server.NewRouter(store, server.Options{
		Tokens:   tokens,
		Hardware: hw,
		MaxConns: cfg.Server.MaxConns,
		Logger:   log,
	})

	if cfg.Server.TLS {
		host, _, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("server.addr: %w", err)
		}
		cert, err := vault.GenerateSelfSignedCert(host)
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		router.SetCertificate(cert)
		log.Info().Msg("TLS encryption enabled")
	} else {
		log.Warn().Msg("TLS encryption disabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	// 4. Management API
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery(), api.CORS())
		h := &api.Handler{
			Store:    store,
			Hardware: hardware.NewManager(hw, log),
			Log:      log,
		}
		h.Register(r)

		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("management API listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("settings provider listening")
		return router.Listen(cfg.Server.Addr)
	})

	// 5. Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		var errs *multierror.Error
		if err := router.Stop(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		return errs.ErrorOrNil()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
