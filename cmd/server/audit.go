package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tazhibayda/identity-service/internal/queue"
	"github.com/tazhibayda/identity-service/internal/repo"
	"go.uber.org/zap"
)

func newAuditCmd(load loader) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Consume auth events and store them in MongoDB",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := load()
			if err != nil {
				return err
			}
			if cfg.RabbitURL == "" {
				return errors.New("RABBIT_URL is required for audit")
			}

			dctx, cancel := dialTimeout(cmd.Context())
			defer cancel()
			st, err := repo.NewStore(dctx, cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())
			if err := st.EnsureIndexes(dctx); err != nil {
				return err
			}

			cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.EventsExchange, queue.AuditQueue, queue.AuditBinding)
			if err != nil {
				return err
			}
			defer cons.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l.Info("audit consumer up",
				zap.String("exchange", cfg.EventsExchange),
				zap.String("queue", queue.AuditQueue),
				zap.Int("workers", workers))

			handle := queue.AuditHandler(st)
			return cons.Consume(ctx, workers, func(ctx context.Context, m queue.Message) error {
				if err := handle(ctx, m); err != nil {
					l.Warn("audit store failed, requeueing", zap.String("message_id", m.ID), zap.Error(err))
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent handlers")
	return cmd
}
