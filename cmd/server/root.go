package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tazhibayda/identity-service/internal/config"
	"github.com/tazhibayda/identity-service/internal/log"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:          "identity-service",
		Short:        "Sign-in and account linking service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("CONFIG_FILE"), "optional config file (yaml, json, toml)")

	load := func() (config.Config, *zap.Logger, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return config.Config{}, nil, err
		}
		l, err := log.Init(!cfg.Production())
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			if cfg.Production() {
				return config.Config{}, nil, err
			}
			l.Warn("configuration incomplete", zap.Error(err))
		}
		return cfg, l, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newIndexesCmd(load),
		newAuditCmd(load),
	)
	return root
}

type loader func() (config.Config, *zap.Logger, error)

func dialTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 10*time.Second)
}
