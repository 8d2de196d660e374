package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/auth"
	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/buildinfo"
	"github.com/tellerline/teller/internal/config"
	"github.com/tellerline/teller/internal/logging"
	"github.com/tellerline/teller/internal/store"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:     "teller",
		Short:   "Core banking ledger and API for the customer and admin portals",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.FileName, "path to teller.yaml")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional file of TELLER_* environment overrides")

	rootCmd.AddCommand(
		newInitCommand(),
		newMigrateCommand(opts),
		newServeCommand(opts),
		newAdminCommand(opts),
		newImportCommand(opts),
		newLedgerCommand(opts),
		newAuditCommand(opts),
	)

	return rootCmd
}

// loadConfig reads the config file, then .env, then the process environment.
// A missing config file falls back to defaults so the environment alone can
// configure a deployment.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// app is an opened database plus the service on top of it.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	svc   *bank.Service
}

// openApp loads config, migrates when configured to, and builds the bank
// service. Server mode requires a JWT secret; maintenance commands do not.
func (o *rootOptions) openApp(ctx context.Context, server bool, obs bank.Observer) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	validate := cfg.ValidateOffline
	if server {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		version, err := store.Migrate(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		log.Debug("schema ready", zap.Uint("version", version))
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	var tokens *auth.Issuer
	if cfg.Auth.JWTSecret != "" {
		if tokens, err = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL); err != nil {
			st.Close()
			return nil, err
		}
	}

	bopts := bank.OptionsFromConfig(cfg)
	bopts.Observer = obs
	svc := bank.New(st, tokens, log, bopts)
	if err := svc.Bootstrap(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("creating system accounts: %w", err)
	}
	return &app{cfg: cfg, log: log, store: st, svc: svc}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
	a.store.Close()
}

// commandContext bounds maintenance commands so a locked database cannot
// hang them forever.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 10*time.Minute)
}
