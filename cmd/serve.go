package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/NKRTECH/unified-inbox/internal/carrier"
	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/channels/chat"
	"github.com/NKRTECH/unified-inbox/internal/channels/email"
	"github.com/NKRTECH/unified-inbox/internal/channels/messenger"
	"github.com/NKRTECH/unified-inbox/internal/channels/sms"
	"github.com/NKRTECH/unified-inbox/internal/channels/whatsapp"
	"github.com/NKRTECH/unified-inbox/internal/config"
	"github.com/NKRTECH/unified-inbox/internal/contacts"
	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/events"
	httpapi "github.com/NKRTECH/unified-inbox/internal/http"
	"github.com/NKRTECH/unified-inbox/internal/scheduler"
	"github.com/NKRTECH/unified-inbox/internal/store"
	"github.com/NKRTECH/unified-inbox/internal/store/pg"
	"github.com/NKRTECH/unified-inbox/internal/store/sqlite"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()
	log := slog.Default()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	stores, err := openStores(cfg)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	hub := events.NewHub(cfg.Server.AllowedOrigins, log)
	pub := events.Multi{events.Publisher(hub)}
	if cfg.Events.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:      cfg.Events.AMQPURL,
			Exchange: cfg.Events.Exchange,
		}, log)
		if err != nil {
			log.Error("failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		pub = append(pub, amqpPub)
	}

	registry, err := buildRegistry(cfg, hub)
	if err != nil {
		log.Error("failed to build channel registry", "error", err)
		os.Exit(1)
	}
	log.Info("channels configured", "channels", registry.Channels())

	dispatchSvc := dispatch.New(stores, registry, pub, log)
	schedulerSvc := scheduler.New(stores, dispatchSvc, log)
	resolver := contacts.NewResolver(stores.Contacts, log)

	server := httpapi.NewServer(cfg.Server.Addr(), httpapi.ServerDeps{
		Dispatch:         dispatchSvc,
		Scheduler:        schedulerSvc,
		Resolver:         resolver,
		Hub:              hub,
		Events:           pub,
		Token:            cfg.Server.Token,
		WebhookSecret:    cfg.Carrier.WebhookSecret,
		WebhookRateLimit: cfg.Server.WebhookRateLimit,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		if err := pub.Close(); err != nil {
			log.Warn("event publisher close", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// openStores picks Postgres when a DSN is configured, the embedded SQLite
// store otherwise.
func openStores(cfg *config.Config) (*store.Stores, error) {
	sc := store.StoreConfig{
		PostgresDSN: cfg.Database.PostgresDSN,
		SQLitePath:  cfg.Database.SQLitePath,
	}
	if sc.PostgresDSN != "" {
		return pg.NewStores(sc)
	}
	return sqlite.NewStores(sc)
}

// buildRegistry registers a sender for every configured channel. A channel
// missing its source address is simply not registered; sends to it fail with
// a clean not-configured error.
func buildRegistry(cfg *config.Config, hub *events.Hub) (*channels.Registry, error) {
	client := carrier.NewClient(carrier.Config{
		BaseURL:    cfg.Carrier.BaseURL,
		AccountSID: cfg.Carrier.AccountSID,
		AuthToken:  cfg.Carrier.AuthToken,
		SendRPS:    cfg.Carrier.SendRPS,
	})

	var senders []channels.Sender
	if cfg.Channels.SMS.From != "" {
		senders = append(senders, sms.New(client, cfg.Channels.SMS.From))
	}
	if cfg.Channels.WhatsApp.From != "" {
		senders = append(senders, whatsapp.New(client, cfg.Channels.WhatsApp.From))
	}
	if cfg.Channels.Messenger.From != "" {
		senders = append(senders, messenger.New(client, cfg.Channels.Messenger.From))
	}
	if cfg.Channels.Email.From != "" {
		senders = append(senders, email.New(client, cfg.Channels.Email.From))
	}
	if cfg.Channels.Chat.Enabled {
		senders = append(senders, chat.New(hub))
	}
	return channels.NewRegistry(senders...)
}
