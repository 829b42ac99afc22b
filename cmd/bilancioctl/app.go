package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/ident"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

// CLIApp wires the operator commands to the ledger services.
type CLIApp struct {
	rootCmd *cobra.Command

	cfg       *config.Config
	logger    *log.Logger
	store     *backend.BackendResult
	events    *amqp.Client
	months    *services.MonthService
	recurring *services.RecurringService
}

func NewCLIApp() *CLIApp {
	app := &CLIApp{}

	rootCmd := &cobra.Command{
		Use:               "bilancioctl",
		Short:             "Operator tool for the bilancio ledger",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Log service activity to stdout")

	rootCmd.AddCommand(app.migrateCommand(), app.monthsCommand(), app.recurringCommand(), app.overviewCommand())
	app.rootCmd = rootCmd
	return app
}

// Execute runs the selected command and releases what setup opened.
func (app *CLIApp) Execute() error {
	err := app.rootCmd.ExecuteContext(context.Background())
	if cerr := app.teardown(); err == nil {
		err = cerr
	}
	return err
}

// setup loads configuration and opens the configured store. Month writes
// are announced on the event exchange when AMQP is configured so running
// servers refresh their insights.
func (app *CLIApp) setup(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	logCfg := log.DefaultConfig()
	logCfg.Level = slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.Level = slog.LevelDebug
	}
	app.logger = log.New(logCfg)

	app.cfg = config.Load()
	if err := app.cfg.Validate(); err != nil {
		return err
	}

	store, err := cli.OpenStore(cmd.Context(), app.cfg, app.logger)
	if err != nil {
		return err
	}
	app.store = store

	ids := ident.New()
	notifiers := services.NewNotifiers(app.logger)
	if app.cfg.AMQPURL != "" {
		events, err := amqp.NewClient(app.cfg.AMQPURL, app.cfg.AMQPExchange, "", ids.NewID("ctl"), app.logger)
		if err != nil {
			pterm.Warning.Printfln("Change events disabled: %v", err)
		} else {
			app.events = events
			notifiers.Add(events)
		}
	}

	app.months = services.NewMonthService(store.Store,
		services.WithNotifier(notifiers),
		services.WithMaxRetries(app.cfg.WriteMaxRetries),
		services.WithIDGenerator(ids),
		services.WithLogger(app.logger),
	)
	app.recurring = services.NewRecurringService(store.Store, ids, app.logger)
	return nil
}

func (app *CLIApp) teardown() error {
	if app.events != nil {
		_ = app.events.Close()
	}
	if app.store != nil {
		return app.store.Cleanup()
	}
	return nil
}

func (app *CLIApp) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the configured SQL backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch app.cfg.DataBackend {
			case config.BackendSQLite:
				pterm.Success.Printfln("SQLite schema up to date (%s)", app.cfg.SQLiteDBPath)
			case config.BackendPostgres:
				pterm.Success.Println("Postgres schema up to date")
			default:
				pterm.Info.Printfln("Backend %q has no schema to migrate", app.cfg.DataBackend)
			}
			return nil
		},
	}
}

// requireUser reads the mandatory --user flag.
func requireUser(cmd *cobra.Command) (string, error) {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return "", fmt.Errorf("--user is required")
	}
	return userID, nil
}

func renderTable(data pterm.TableData) error {
	return pterm.DefaultTable.
		WithHasHeader().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Render()
}
