package main

import (
	"github.com/spf13/cobra"
	"github.com/tazhibayda/identity-service/internal/repo"
	"go.uber.org/zap"
)

func newIndexesCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := dialTimeout(cmd.Context())
			defer cancel()

			st, err := repo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return err
			}
			defer st.Close(ctx)
			if err := st.EnsureIndexes(ctx); err != nil {
				return err
			}
			l.Info("indexes ensured", zap.String("db", cfg.MongoDB))
			return nil
		},
	}
}
