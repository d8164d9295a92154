package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/compliance"
	"github.com/darmiel/insurelink/internal/config"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/registry"
	"github.com/darmiel/insurelink/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the insurelink server",
	Long: `Registers the providers of the config file and serves the HTTP API.
The config file is watched: providers that are added, changed or removed are
reconciled without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		watch, _ := cmd.Flags().GetBool("watch")

		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		auditor, audits, err := buildAuditor(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close auditor")
			}
		}()

		rules, err := cfg.ComplianceRules()
		if err != nil {
			return fmt.Errorf("compiling compliance rules: %w", err)
		}
		monitor := compliance.NewMonitor(rules)

		taskManager := tasks.NewManager()
		defer taskManager.Close()

		reg := registry.New(registry.Options{
			Auditor:       auditor,
			Compliance:    monitor,
			Tasks:         taskManager,
			RetryPolicy:   cfg.Retry.Policy,
			RetryInterval: cfg.Retry.Interval,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info().Msgf("Registering %d providers...", len(cfg.Providers))
		if err := reg.Reconcile(ctx, cfg.Providers); err != nil {
			return fmt.Errorf("registering providers: %w", err)
		}

		if watch {
			path := f.configPath()
			go func() {
				err := config.Watch(ctx, path, func(next *config.Config) {
					log.Info().Msg("Config changed, reconciling providers...")
					if err := reg.Reconcile(ctx, next.Providers); err != nil {
						log.Error().Err(err).Msg("failed to reconcile providers")
					}
					if rules, err := next.ComplianceRules(); err != nil {
						log.Error().Err(err).Msg("keeping previous compliance rules")
					} else {
						monitor.SetRules(rules)
					}
				})
				if err != nil {
					log.Error().Err(err).Msg("config watcher stopped")
				}
			}()
		}

		secret := cfg.Admin.Secret()
		if secret == nil {
			log.Warn().Msg("No admin secret configured, admin routes are disabled")
		}

		srv := api.NewServer(reg, taskManager, audits)
		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(secret),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("server crashed: %w", err)
		}
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := reg.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to close some providers")
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindConfigFlag(serveCmd.Flags())
	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	serveCmd.Flags().Bool("watch", true, "reconcile providers when the config file changes")
}

// buildAuditor returns the configured auditor and, if it can be queried, a reader for
// the admin API.
func buildAuditor(cfg config.AuditConfig) (core.Auditor, audit.Reader, error) {
	if !cfg.Enabled {
		return audit.NewNoopAuditor(), nil, nil
	}

	var (
		auditor core.Auditor
		reader  audit.Reader
	)
	switch cfg.Type {
	case "", "memory":
		mem := audit.NewInMemoryAuditorWithCapacity(cfg.Capacity)
		auditor, reader = mem, mem
	case "file":
		file, err := audit.NewFileAuditor(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		auditor, reader = file, file
	default:
		return nil, nil, fmt.Errorf("unknown audit type '%s'", cfg.Type)
	}

	if cfg.Buffer > 0 {
		auditor = audit.NewAsyncAuditor(auditor, cfg.Buffer)
	}
	return auditor, reader, nil
}
