// Package cli wires the client packages into the trueque command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/trueque/internal/api"
	"github.com/user/trueque/internal/config"
	"github.com/user/trueque/internal/logging"
	"github.com/user/trueque/internal/realtime"
	"github.com/user/trueque/internal/session"
	"github.com/user/trueque/internal/store/sqlstore"
)

// app holds the long-lived pieces every command shares.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *sqlstore.SQLStore
	session *session.Manager
	api     *api.Client
}

var current *app

var rootCmd = &cobra.Command{
	Use:           "trueque",
	Short:         "Client for the trueque book and study-notes exchange marketplace",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.close()
		}
	},
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := sqlstore.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	auth := api.NewAuthClient(cfg.APIBaseURL, cfg.HTTPTimeout, log)
	sess := session.NewManager(auth, st, log)
	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, sess, log)

	return &app{cfg: cfg, log: log, store: st, session: sess, api: client}, nil
}

func (a *app) close() {
	a.store.Close()
	a.log.Sync()
}

// newChannel builds the realtime channel for commands that stream events.
func (a *app) newChannel() *realtime.Channel {
	return realtime.NewChannel(realtime.WebsocketDialer(a.cfg.WSURL), a.cfg.ReconnectDelay, a.log)
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
