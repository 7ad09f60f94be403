package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/events"
	"github.com/diewo77/go-crm/internal/logger"
	"github.com/diewo77/go-crm/internal/mailer"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	appName = "crm-api"
	Version = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "CRM backend API",
		Long:          "CRM backend serving accounts, contacts, leads, deals, activities and real-time notifications.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve)

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(_ *config.Config, log *logrus.Logger, conn *gorm.DB) error {
				if err := db.Migrate(conn); err != nil {
					return err
				}
				log.Info("migrations completed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create the default administrator and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(cfg *config.Config, log *logrus.Logger, conn *gorm.DB) error {
				return seed(cmd.Context(), cfg, log, conn)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// bootstrap loads .env and the environment, then builds the logger.
func bootstrap() (*config.Config, *logrus.Logger, io.Closer, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.SetDefault(log)
	return cfg, log, closer, nil
}

func withDB(fn func(*config.Config, *logrus.Logger, *gorm.DB) error) error {
	cfg, log, closer, err := bootstrap()
	if err != nil {
		return err
	}
	defer closer.Close()

	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	return fn(cfg, log, conn)
}

func seed(ctx context.Context, cfg *config.Config, log *logrus.Logger, conn *gorm.DB) error {
	created, err := db.SeedAdmin(ctx, conn, auth.BcryptHasher{}, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.WithField("email", cfg.Admin.Email).Info("default admin created")
	}
	return nil
}

func newPublisher(cfg config.BrokerConfig, log *logrus.Logger) events.Publisher {
	if cfg.URL == "" {
		return events.Nop{}
	}
	p, err := events.NewAMQP(cfg.URL, cfg.Exchange)
	if err != nil {
		log.WithError(err).Warn("event broker unavailable, domain events disabled")
		return events.Nop{}
	}
	return p
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return withDB(func(cfg *config.Config, log *logrus.Logger, conn *gorm.DB) error {
		if cfg.App.Migrations {
			if err := db.Migrate(conn); err != nil {
				return err
			}
			log.Info("migrations completed")
			if err := seed(ctx, cfg, log, conn); err != nil {
				return err
			}
		}

		m := metrics.New()
		hub := realtime.NewHub(log.WithField("component", "hub"), m)
		pub := newPublisher(cfg.Broker, log)
		defer pub.Close()

		routerCfg, err := policy.NewRouterConfig(policy.Deps{
			DB:      conn,
			Config:  cfg,
			Hub:     hub,
			Mailer:  mailer.New(cfg.Mail, log),
			Events:  pub,
			Metrics: m,
			Log:     log,
			Version: Version,
		})
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      NewApp(routerCfg, m, cfg.CORSOrigins),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			return fmt.Errorf("server: %w", err)
		case <-quit:
			log.Info("shutdown signal received")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown.
		hub.CloseAll(1001, "server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("error during shutdown")
		}
		log.Info("server stopped gracefully")
		return nil
	})
}
