package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tazhibayda/identity-service/internal/config"
	"github.com/tazhibayda/identity-service/internal/domain"
	api "github.com/tazhibayda/identity-service/internal/http"
	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/metrics"
	"github.com/tazhibayda/identity-service/internal/oauth"
	"github.com/tazhibayda/identity-service/internal/queue"
	"github.com/tazhibayda/identity-service/internal/repo"
	"github.com/tazhibayda/identity-service/internal/repo/memory"
	"github.com/tazhibayda/identity-service/internal/security"
	"github.com/tazhibayda/identity-service/internal/signin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := load()
			if err != nil {
				return err
			}
			defer l.Sync()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, l)
		},
	}
}

type stores struct {
	users  domain.UserStore
	creds  domain.CredentialStore
	tokens signin.TokenStore
	ping   api.Pinger
	close  func()
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		m := memory.New()
		return &stores{users: m, creds: m, tokens: memory.NewTokens(), ping: m, close: func() {}}, nil
	}
	dctx, cancel := dialTimeout(ctx)
	defer cancel()
	st, err := repo.NewStore(dctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureIndexes(dctx); err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	return &stores{users: st, creds: st, tokens: st, ping: st, close: func() { _ = st.Close(context.Background()) }}, nil
}

func serve(ctx context.Context, cfg config.Config, l *zap.Logger) error {
	if cfg.TraceEnabled {
		tracer.Start(tracer.WithService("identity-service"), tracer.WithEnv(cfg.Env))
		defer tracer.Stop()
	}
	metrics.MustRegister()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	pub := queue.NewNoop()
	if cfg.RabbitURL != "" {
		if pub, err = queue.NewRabbit(cfg.RabbitURL, cfg.EventsExchange); err != nil {
			return err
		}
	} else {
		l.Info("RABBIT_URL not set, events are dropped")
	}
	defer pub.Close()
	events := queue.NewNotifier(pub, cfg.EventsExchange, l)

	issuer := &security.Issuer{Secret: cfg.JWTSecret, TTL: cfg.SessionTTL}
	var keys *security.KeyManager
	if cfg.JWTPrivateKeyPath != "" {
		var upcoming []security.KeyFile
		if cfg.JWTNextPrivateKeyPath != "" {
			upcoming = append(upcoming, security.KeyFile{Kid: cfg.JWTNextKid, Path: cfg.JWTNextPrivateKeyPath})
		}
		if keys, err = security.NewKeyManager(security.KeyFile{Kid: cfg.JWTKid, Path: cfg.JWTPrivateKeyPath}, upcoming...); err != nil {
			return err
		}
		l.Info("RS256 sessions", zap.String("kid", keys.ActiveKid()), zap.Int("published_keys", len(keys.JWKS().Keys)))
		issuer.Keys = keys
	}

	linker := linking.NewService(st.users, st.creds,
		linking.WithNotifier(events),
		linking.WithSealer(security.NewSealer(cfg.TokenSealKey)),
		linking.WithLogger(l.Named("linking")),
		linking.WithFailOpen(cfg.LinkFailOpen),
	)

	opts := []signin.Option{
		signin.WithState(oauth.NewStateSigner(cfg.OAuthStateSecret, 10*time.Minute)),
		signin.WithEvents(events),
		signin.WithLogger(l.Named("signin")),
	}
	if cfg.Google.Enabled() {
		opts = append(opts, signin.WithProvider(oauth.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)))
	}
	if cfg.GitHub.Enabled() {
		opts = append(opts, signin.WithProvider(oauth.NewGitHub(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)))
	}
	var mailer signin.Mailer = signin.LogMailer{Log: l.Named("mail")}
	if cfg.SMTP.Host != "" {
		mailer = signin.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	}
	opts = append(opts, signin.WithMagicLink(st.tokens, mailer, cfg.BaseURL, cfg.MagicLinkTTL))
	flow := signin.New(linker, st.users, issuer, opts...)

	h := api.NewHandler(linker, flow, st.users, issuer, l.Named("http"))
	h.Keys = keys
	h.Deps["store"] = st.ping

	rcfg := api.RouterConfig{
		Dev:   !cfg.Production(),
		Trace: cfg.TraceEnabled,
		RateLimit: api.RateLimitConfig{
			Max:    cfg.RateLimitMax,
			Window: cfg.RateLimitWindow,
		},
	}
	if cfg.RedisAddr != "" {
		rds := repo.NewRedis(cfg.RedisAddr)
		defer rds.Close()
		rcfg.Counter = rds
		h.Deps["redis"] = rds
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(h, rcfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("identity-service listening", zap.String("addr", srv.Addr), zap.Strings("providers", flow.Providers()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
