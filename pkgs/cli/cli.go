package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hrhelp/messenger-relay/pkgs/auth"
	"hrhelp/messenger-relay/pkgs/bot"
	"hrhelp/messenger-relay/pkgs/conf"
	"hrhelp/messenger-relay/pkgs/graph"
	"hrhelp/messenger-relay/pkgs/locker"
	"hrhelp/messenger-relay/pkgs/logging"
	"hrhelp/messenger-relay/pkgs/messenger"
	"hrhelp/messenger-relay/web"

	"github.com/juju/errors"
	"github.com/rs/zerolog/log"
	urfave "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// RunCLI starts the CLI application. Without a command it serves the webhook.
func RunCLI() {
	if err := NewApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("hr-help-bot failed")
	}
}

func NewApp() *urfave.App {
	return &urfave.App{
		Name:   web.ServiceName,
		Usage:  "Relay anonymous Messenger submissions to a Facebook group",
		Action: serve,
		Commands: []*urfave.Command{
			{
				Name:   "serve",
				Usage:  "Run the webhook server",
				Action: serve,
			},
			{
				Name:      "sign",
				Usage:     "Print the X-Hub-Signature for a request body, read from a file or stdin",
				ArgsUsage: "[file]",
				Flags: []urfave.Flag{
					&urfave.StringFlag{
						Name:    "secret",
						Usage:   "app secret, defaults to APP_SECRET",
						EnvVars: []string{"APP_SECRET"},
					},
				},
				Action: sign,
			},
			{
				Name:      "send",
				Usage:     "Send a plain text message to a recipient through the Graph API",
				ArgsUsage: "<recipient-id> <text>",
				Action:    send,
			},
		},
	}
}

func loadConfig(ctx context.Context) (*conf.Config, error) {
	cfg, err := conf.Load(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "Missing config values")
	}
	logging.Init(cfg.BaseConfig.LogLevel, cfg.BaseConfig.Environment)
	return cfg, nil
}

func newGraphClient(cfg *conf.Config) (*graph.Client, error) {
	tokens, err := auth.NewPageTokenSource(cfg.MessengerConfig.AccessToken)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return graph.NewClient(tokens, cfg.MessengerConfig.GroupID,
		graph.WithBaseURL(cfg.GraphConfig.BaseURL),
		graph.WithTimeout(cfg.GraphConfig.Timeout),
	), nil
}

func serve(c *urfave.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	client, err := newGraphClient(cfg)
	if err != nil {
		return err
	}

	var opts []messenger.Option
	if cfg.RedeliveryGuardEnabled() {
		guard, err := locker.NewRedisLocker(ctx, cfg.RedisConfig.URL, locker.DefaultPrefix, cfg.RedisConfig.RedeliveryTTL)
		if err != nil {
			return errors.Annotate(err, "failed to start redelivery guard")
		}
		defer guard.Close() // nolint:errcheck
		opts = append(opts, messenger.WithRedeliveryGuard(guard))
		log.Info().Dur("ttl", cfg.RedisConfig.RedeliveryTTL).Msg("Redelivery guard enabled")
	}

	handler := messenger.NewHandler(
		cfg.MessengerConfig.VerifyToken,
		messenger.NewSignatureVerifier(cfg.MessengerConfig.AppSecret),
		bot.New(client),
		opts...,
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.BaseConfig.Port),
		Handler:      web.NewRouter(cfg, handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Int("port", cfg.BaseConfig.Port).Msg("hr_help_bot is running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Annotate(err, "server failed")
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	handler.Wait()
	log.Info().Msg("Server stopped")
	return err
}

func sign(c *urfave.Context) error {
	secret := c.String("secret")
	if secret == "" {
		return urfave.Exit("an app secret is required (--secret or APP_SECRET)", 2)
	}

	var in io.Reader = c.App.Reader
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Annotatef(err, "failed to open %s", path)
		}
		defer f.Close() // nolint:errcheck
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return errors.Annotate(err, "failed to read body")
	}

	_, err = fmt.Fprintln(c.App.Writer, messenger.NewSignatureVerifier(secret).Sign(body))
	return err
}

func send(c *urfave.Context) error {
	if c.NArg() != 2 {
		return urfave.Exit("usage: send <recipient-id> <text>", 2)
	}

	cfg, err := loadConfig(c.Context)
	if err != nil {
		return err
	}
	client, err := newGraphClient(cfg)
	if err != nil {
		return err
	}

	resp, err := client.SendText(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return errors.Trace(err)
	}
	_, err = fmt.Fprintf(c.App.Writer, "sent %s to %s\n", resp.MessageID, resp.RecipientID)
	return err
}
