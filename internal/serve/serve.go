package serve

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-playgate/internal/server"
	"github.com/m1k1o/go-playgate/modules"
	playbackModule "github.com/m1k1o/go-playgate/modules/playback"
	"github.com/m1k1o/go-playgate/modules/player"
	"github.com/m1k1o/go-playgate/pkg/access"
	"github.com/m1k1o/go-playgate/pkg/discovery"
	"github.com/m1k1o/go-playgate/pkg/locator"
	"github.com/m1k1o/go-playgate/pkg/manifest"
	"github.com/m1k1o/go-playgate/pkg/metadata"
	"github.com/m1k1o/go-playgate/pkg/objectstore"
	"github.com/m1k1o/go-playgate/pkg/playback"
	"github.com/m1k1o/go-playgate/pkg/streamtoken"
)

func NewCommand() *Main {
	return &Main{
		ServerConfig: &server.Config{},
		Config:       &Config{},
	}
}

type Main struct {
	ServerConfig *server.Config
	Config       *Config

	logger    zerolog.Logger
	preflight sync.Once

	server  *server.ServerManagerCtx
	pool    *pgxpool.Pool
	redis   *redis.Client
	player  *player.ModuleCtx
	modules []modules.Module
}

func (main *Main) Preflight() {
	main.preflight.Do(func() {
		main.logger = log.With().Str("service", "main").Logger()
	})
}

func (main *Main) metadataStore(ctx context.Context) (metadata.Store, error) {
	config := main.Config

	pool, err := metadata.Connect(ctx, config.DatabaseUrl)
	if err != nil {
		return nil, err
	}
	main.pool = pool

	var store metadata.Store = metadata.NewPostgresStore(pool)
	if config.Redis.Url == "" {
		return store, nil
	}

	opts, err := redis.ParseURL(config.Redis.Url)
	if err != nil {
		return nil, err
	}

	main.redis = redis.NewClient(opts)
	main.logger.Info().Str("addr", opts.Addr).Msg("catalog lookups are cached in redis")

	return metadata.NewCachedStore(store, main.redis, &metadata.CacheConfig{
		TTL: config.Redis.TTL,
	}), nil
}

func (main *Main) start(ctx context.Context) error {
	config := main.Config

	mode, err := access.ParseMode(config.Access.DefaultMode)
	if err != nil {
		return err
	}

	catalog, err := main.metadataStore(ctx)
	if err != nil {
		return err
	}

	store, err := objectstore.NewS3(&objectstore.Config{
		Provider:      config.Storage.Provider,
		Endpoint:      config.Storage.Endpoint,
		Region:        config.Storage.Region,
		Bucket:        config.Storage.Bucket,
		AccessKey:     config.Storage.AccessKey,
		SecretKey:     config.Storage.SecretKey,
		UseSSL:        config.Storage.UseSSL,
		PathStyle:     config.Storage.PathStyle,
		MaxObjectSize: config.Storage.MaxObjectSize,
	})
	if err != nil {
		return err
	}

	tokens := streamtoken.New(&streamtoken.Config{
		BaseUrl: config.Token.BaseUrl,
		Secret:  config.Token.Secret,
		Timeout: config.Token.Timeout,
	})
	if !tokens.Configured() {
		main.logger.Warn().Msg("stream token authority not configured, protected-token requests fall back to signed-direct")
	}

	resolver := access.New(&access.Config{
		DefaultMode:   mode,
		PublicBaseUrl: config.Access.PublicBaseUrl,
		EdgeProxyUrl:  config.Access.EdgeProxyUrl,
		ManifestTTL:   config.Access.ManifestTTL,
		SegmentTTL:    config.Access.SegmentTTL,
		Timeout:       config.Access.Timeout,
	}, store, tokens)

	rewriter := manifest.New(&manifest.Config{
		Concurrency:    config.Manifest.Concurrency,
		RewriteTagURIs: config.Manifest.RewriteTagURIs,
	}, resolver)

	service := playback.New(&playback.Config{
		BaseUrl:      config.BaseUrl,
		ManifestPath: playbackModule.ManifestPath,
		Timeout:      config.Access.Timeout,

		SubtitleTimeout: config.Subtitles.Timeout,
	},
		locator.New(catalog),
		discovery.New(store),
		resolver,
		rewriter,
		store,
	)

	main.server = server.New(main.ServerConfig)

	playbackHandler := playbackModule.New(service, &playbackModule.Config{
		RateLimit:  config.RateLimit.Requests,
		RateWindow: config.RateLimit.Window,
	})
	main.server.Handle(playbackModule.SessionPath, playbackHandler)
	main.server.Handle(playbackModule.ManifestPath+"*", playbackHandler)
	main.modules = append(main.modules, playbackHandler)
	main.logger.Info().
		Str("storage", store.Name()).
		Str("default-mode", resolver.Default().String()).
		Msg("playback registered")

	main.player = player.New("/player/", main.playerConfig())
	main.server.Handle("/player/*", main.player)
	main.modules = append(main.modules, main.player)
	main.logger.Info().Msg("player registered")

	main.server.Start()
	return nil
}

func (main *Main) playerConfig() *player.Config {
	return &player.Config{
		SessionPath: playbackModule.SessionPath,
		HlsJsUrl:    main.Config.Player.HlsJsUrl,
	}
}

// ConfigReload applies settings that may change while running.
func (main *Main) ConfigReload() {
	if main.player != nil {
		main.player.ConfigReload(main.playerConfig())
		main.logger.Info().Msg("player config reloaded")
	}
}

func (main *Main) shutdown() {
	if main.server != nil {
		err := main.server.Shutdown()
		main.logger.Err(err).Msg("http manager shutdown")
	}

	for _, module := range main.modules {
		module.Shutdown()
	}

	if main.redis != nil {
		err := main.redis.Close()
		main.logger.Err(err).Msg("redis client closed")
	}

	if main.pool != nil {
		main.pool.Close()
		main.logger.Info().Msg("database pool closed")
	}
}

func (main *Main) Run(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	if err := main.start(cmd.Context()); err != nil {
		main.shutdown()
		main.logger.Fatal().Err(err).Msg("unable to start")
	}
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.shutdown()
	main.logger.Info().Msg("shutdown complete")
}
