package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ryanbastic/go-cellgrid/internal/auth"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/client"
	"github.com/spf13/cobra"
)

// app carries the resolved settings into every subcommand.
type app struct {
	cfg        settings
	configFile string
	logger     *slog.Logger
	client     *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	v := newViper()

	root := &cobra.Command{
		Use:   "cellctl",
		Short: "Operator CLI for the warehouse cell grid",
		Long: `cellctl renders warehouse cell grids and changes cell roles.

Settings come from flags, then CELLCTL_* environment variables, then an
optional cellctl.yaml in the working directory or ~/.config/cellctl.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(v, cmd.Root().PersistentFlags(), a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			a.client = client.New(client.Config{
				BaseURL: cfg.Server,
				Token:   cfg.Token,
				Timeout: cfg.Timeout,
				Retries: cfg.Retries,
				Logger:  a.logger,
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default: ./cellctl.yaml)")
	pf.String("server", "http://localhost:8080", "Cell grid server URL")
	pf.String("token", "", "Bearer token for administrator operations")
	pf.Duration("timeout", client.DefaultTimeout, "Per-request timeout")
	pf.Int("retries", client.DefaultRetries, "Retries for read requests (negative disables)")
	pf.StringP("output", "o", "table", "Output format: table, json, yaml")
	pf.BoolP("verbose", "v", false, "Log requests to stderr")

	root.AddCommand(
		newGridCmd(a),
		newByRoleCmd(a),
		newRolesCmd(a),
		newHistoryCmd(a),
		newSetRoleCmd(a),
		newBulkSetRoleCmd(a),
		newTokenCmd(),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// principal decodes the configured token for display and local checks.
// The server verifies the signature on every change.
func (a *app) principal() (auth.Principal, error) {
	if a.cfg.Token == "" {
		return auth.Principal{}, fmt.Errorf("no token configured (use --token or CELLCTL_TOKEN)")
	}
	p, err := auth.PeekPrincipal(a.cfg.Token)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("decode token: %w", err)
	}
	return p, nil
}

func (a *app) structured() bool {
	return a.cfg.Output == "json" || a.cfg.Output == "yaml"
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Overall bound for multi-request commands; each request also has the
	// client timeout.
	return context.WithTimeout(cmd.Context(), 10*time.Minute)
}

// catalog returns the backend catalog, or the built-in one when the
// backend cannot serve it.
func (a *app) catalog(cmd *cobra.Command) []cell.RoleCatalogEntry {
	ctx, cancel := a.context(cmd)
	defer cancel()
	catalog, err := a.client.FetchRoleCatalog(ctx)
	if err != nil {
		a.logger.Warn("role catalog unavailable, using built-in catalog", "error", err)
		return cell.DefaultCatalog()
	}
	return catalog
}
