// Package cli provides the command-line interface for gatekeeper.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/checks"
	"github.com/safedep/gatekeeper/config"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/internal/version"
	"github.com/safedep/gatekeeper/storage"
	"github.com/safedep/gatekeeper/tui"
	"github.com/spf13/cobra"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Store     storage.Store
	Registry  *gatekeeper.Registry
	Presenter tui.Presenter
	Paths     *config.Paths

	closers []func() error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	return &App{
		Config:    cfg,
		Registry:  checks.DefaultRegistry(),
		Presenter: tui.NewPresenter(tui.FormatTable, presenterOptions(cfg, os.Stdout)),
		Paths:     config.ResolvePaths(),
	}
}

func presenterOptions(cfg *config.Config, w io.Writer) tui.PresenterOptions {
	return tui.PresenterOptions{
		Writer:    w,
		UseColors: cfg.ShouldUseColors(),
		Verbose:   globalFlags.Verbose,
		Location:  cfg.Location(),
	}
}

// UsePresenter switches the presenter to the given format and writer.
func (a *App) UsePresenter(format string, w io.Writer) error {
	f, ok := tui.ParseFormat(format)
	if !ok {
		return NewCLIError(ExitGeneral, fmt.Sprintf("unknown output format: %s", format))
	}
	a.Presenter = tui.NewPresenter(f, presenterOptions(a.Config, w))
	return nil
}

// InitStore initializes the database store. With the redis policy backend
// policies are read and written in redis while audit records stay local.
func (a *App) InitStore(ctx context.Context) error {
	dbPath := a.Config.GetDatabasePath()
	sqlite, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return ErrDatabase("failed to open database", err)
	}
	if err := sqlite.Init(ctx); err != nil {
		_ = sqlite.Close()
		return ErrDatabase("failed to initialize database", err)
	}

	var store storage.Store = sqlite
	if a.Config.Storage.PolicyBackend == config.PolicyBackendRedis {
		client, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			URL:       a.Config.Redis.URL,
			KeyPrefix: a.Config.Redis.KeyPrefix,
			PoolSize:  a.Config.Redis.PoolSize,
		})
		if err != nil {
			_ = sqlite.Close()
			return ErrDatabase("failed to connect to redis", err)
		}
		store = storage.WithPolicyStore(sqlite, storage.NewRedisPolicyStore(client, a.Config.Redis.KeyPrefix))
		a.closers = append(a.closers, client.Close)
		log.Debugf("using redis policy backend at %s", a.Config.Redis.URL)
	}

	a.Store = store
	return nil
}

// NewEngine builds an engine over the application store.
func (a *App) NewEngine(observer gatekeeper.Observer) *gatekeeper.Engine {
	return gatekeeper.New(a.Registry, a.Store, &gatekeeper.Config{
		Timeout:  a.Config.Engine.Timeout,
		Observer: observer,
	})
}

// Close closes the application resources.
func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	for _, closeFn := range a.closers {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// GlobalFlags holds the global command flags.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	NoColor    bool
}

var globalFlags GlobalFlags

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Admission policy engine for guild joins",
		Long: `Gatekeeper evaluates every member join against the guild's policy
and kicks, reports or admits the member accordingly.

Policies are ordered lists of checks written in YAML. The first check
that blocks decides the verdict.`,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("NO_COLOR") != "" || os.Getenv("GATEKEEPER_NO_COLOR") != "" {
				globalFlags.NoColor = true
			}

			setupInternalLogger(cmd.Name() == "serve")

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "increase output verbosity")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		NewServeCmd(),
		NewCheckCmd(),
		NewPolicyCmd(),
		NewEvaluateCmd(),
		NewAuditCmd(),
		NewStreamCmd(),
		NewStatusCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupInternalLogger sets up the DRY logger. Only the server logs to
// stdout; other commands own the terminal.
func setupInternalLogger(server bool) {
	if !server {
		_ = os.Setenv("APP_LOG_SKIP_STDOUT_LOGGER", "true")
	}

	log.Init("gatekeeper", "cli")
}

// loadApp loads the application with configuration. A missing config file
// means defaults; an unreadable or invalid one is an error.
func loadApp() (*App, error) {
	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return nil, ErrConfig("failed to load config", err)
	}

	if globalFlags.NoColor {
		cfg.Display.Colors = config.ColorNever
	}

	return NewApp(cfg), nil
}

// withStore loads the app, opens the store and runs fn.
func withStore(ctx context.Context, fn func(app *App) error) error {
	app, err := loadApp()
	if err != nil {
		return err
	}

	if err := app.InitStore(ctx); err != nil {
		return err
	}

	defer func() {
		if err := app.Close(); err != nil {
			log.Errorf("failed to close app: %v", err)
		}
	}()

	return fn(app)
}
