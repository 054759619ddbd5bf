package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/keyedcache"
	"github.com/unkn0wn-root/keyedcache/codec"
	asynchook "github.com/unkn0wn-root/keyedcache/hooks/async"
	"github.com/unkn0wn-root/keyedcache/internal/backend"
	"github.com/unkn0wn-root/keyedcache/internal/config"
	zapadapter "github.com/unkn0wn-root/keyedcache/log/zap"
	"github.com/unkn0wn-root/keyedcache/sloghooks"
)

// errMiss makes the command exit non-zero without printing an error.
var errMiss = errors.New("miss")

type app struct {
	cfg     config.Config
	log     *zap.Logger
	backend backend.Backend
	hooks   *asynchook.Hooks
	cache   keyedcache.Cache[string]
}

// newRootCmd returns the command tree and the app it opens. The caller
// closes the app after Execute, whether or not the command failed.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "kcache",
		Short:         "Inspect and operate a keyedcache backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().String("log-level", "", "log level (overrides KCACHE_LOG_LEVEL)")
	root.PersistentFlags().String("backend", "", "backend (overrides KCACHE_BACKEND)")

	root.AddCommand(
		newKeyCmd(a),
		newGetCmd(a),
		newMGetCmd(a),
		newExistsCmd(a),
		newSetCmd(a, false),
		newSetCmd(a, true),
		newDelCmd(a),
		newFlushCmd(a),
		newInvalidateCmd(a),
		newPurgeCmd(a),
	)
	return root, a
}

func (a *app) open(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := cfg.Level()
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = "console"
	a.log, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	a.backend, err = backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	a.log.Debug("backend opened", zap.String("backend", cfg.Backend), zap.String("prefix", cfg.Prefix))

	events := sloghooks.New(slog.New(slog.NewTextHandler(os.Stderr, nil)), sloghooks.Options{})
	a.hooks = asynchook.New(events, 1, 256)

	a.cache, err = keyedcache.New[string](keyedcache.Options[string]{
		Provider:   a.backend.Provider,
		Codec:      codec.String{},
		KeyPrefix:  cfg.Prefix,
		DefaultTTL: cfg.DefaultTTL,
		GenStore:   a.backend.Gens,
		Logger:     zapadapter.New(a.log),
		Hooks:      a.hooks,
	})
	if err != nil {
		_ = a.backend.Provider.Close(ctx)
		return err
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	var err error
	if a.cache != nil {
		err = a.cache.Close(ctx)
		a.cache = nil
	}
	if a.hooks != nil {
		a.hooks.Close()
		a.hooks = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}
