package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/config"
	httptransport "github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/http"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/http/handler"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/provider"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/server"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/service"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/statecodec"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/telemetry"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/tokenstore"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newHTTPClient,
			newStateCodec,
			newTokenStore,
			newDiscordProvider,
			newPatreonProvider,
			newMetadataSource,
			newLinkService,
			newLinkHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, registerSchema, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

// newHTTPClient builds the outbound client shared by all provider calls.
// Created once, reused for the process lifetime, safe for concurrent use;
// the timeout bounds every upstream call.
func newHTTPClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.UpstreamTimeout}
}

func newStateCodec(cfg config.Config) (*statecodec.Codec, error) {
	return statecodec.New(cfg.CookieSecret)
}

func newTokenStore(logger *zap.Logger) tokenstore.Store {
	return tokenstore.NewMemory(logger)
}

func newDiscordProvider(cfg config.Config, client *http.Client, store tokenstore.Store, logger *zap.Logger) *provider.Discord {
	return provider.NewDiscord(provider.DiscordConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		BotToken:     cfg.DiscordBotToken,
		RedirectURI:  cfg.DiscordRedirectURI,
		PlatformName: cfg.PlatformName,
	}, client, store, logger)
}

func newPatreonProvider(cfg config.Config, client *http.Client, store tokenstore.Store, logger *zap.Logger) *provider.Patreon {
	if !cfg.PatreonEnabled() {
		return nil
	}
	return provider.NewPatreon(provider.PatreonConfig{
		ClientID:     cfg.PatreonClientID,
		ClientSecret: cfg.PatreonClientSecret,
		RedirectURI:  cfg.PatreonRedirectURI,
	}, client, store, logger)
}

func newMetadataSource() service.MetadataSource {
	return service.StaticSource{}
}

func newLinkService(
	cfg config.Config,
	codec *statecodec.Codec,
	store tokenstore.Store,
	discord *provider.Discord,
	patreon *provider.Patreon,
	source service.MetadataSource,
	logger *zap.Logger,
) service.LinkService {
	var membership service.MembershipProvider
	if patreon != nil {
		membership = patreon
	}
	return service.NewLinkService(codec, store, discord, membership, source, service.DefaultSchema(), cfg.StateTTL, logger)
}

func newLinkHandler(link service.LinkService, logger *zap.Logger) *handler.LinkHandler {
	return handler.NewLinkHandler(link, logger)
}

// registerSchema declares the metadata field definitions upstream once at
// boot when enabled.
func registerSchema(lc fx.Lifecycle, cfg config.Config, link service.LinkService, logger *zap.Logger) {
	if !cfg.RegisterSchemaOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := link.RegisterSchema(ctx); err != nil {
				return fmt.Errorf("register metadata schema: %w", err)
			}
			logger.Info("registered metadata schema")
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
