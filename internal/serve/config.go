package serve

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Storage struct {
	Provider      string `mapstructure:"provider"`
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	AccessKey     string `mapstructure:"access-key"`
	SecretKey     string `mapstructure:"secret-key"`
	UseSSL        bool   `mapstructure:"use-ssl"`
	PathStyle     bool   `mapstructure:"path-style"`
	MaxObjectSize int64  `mapstructure:"max-object-size"`
}

type Token struct {
	BaseUrl string        `mapstructure:"base-url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Access struct {
	DefaultMode   string        `mapstructure:"default-mode"`
	PublicBaseUrl string        `mapstructure:"public-base-url"`
	EdgeProxyUrl  string        `mapstructure:"edge-proxy-url"`
	ManifestTTL   time.Duration `mapstructure:"manifest-ttl"`
	SegmentTTL    time.Duration `mapstructure:"segment-ttl"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Manifest struct {
	Concurrency    int  `mapstructure:"concurrency"`
	RewriteTagURIs bool `mapstructure:"rewrite-tag-uris"`
}

type Redis struct {
	Url string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type RateLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type Subtitles struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type Player struct {
	HlsJsUrl string `mapstructure:"hlsjs-url"`
}

type Config struct {
	BaseUrl     string
	DatabaseUrl string

	Storage   Storage
	Token     Token
	Access    Access
	Manifest  Manifest
	Redis     Redis
	RateLimit RateLimit
	Subtitles Subtitles
	Player    Player
}

func (Config) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("base-url", "", "public URL of this gateway used in generated links, relative links when empty")
	if err := viper.BindPFlag("base-url", cmd.PersistentFlags().Lookup("base-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("database.url", "", "postgres connection string of the content catalog")
	if err := viper.BindPFlag("database.url", cmd.PersistentFlags().Lookup("database.url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("storage.provider", "s3", "object storage backend name (s3, r2, minio)")
	if err := viper.BindPFlag("storage.provider", cmd.PersistentFlags().Lookup("storage.provider")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("storage.endpoint", "", "object storage endpoint")
	if err := viper.BindPFlag("storage.endpoint", cmd.PersistentFlags().Lookup("storage.endpoint")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("storage.bucket", "", "object storage bucket")
	if err := viper.BindPFlag("storage.bucket", cmd.PersistentFlags().Lookup("storage.bucket")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("token.base-url", "", "base URL of the stream token authority, protected-token mode is disabled when empty")
	if err := viper.BindPFlag("token.base-url", cmd.PersistentFlags().Lookup("token.base-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("access.default-mode", "", "access mode used when the request does not name one")
	if err := viper.BindPFlag("access.default-mode", cmd.PersistentFlags().Lookup("access.default-mode")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("access.public-base-url", "", "CDN base URL serving the bucket publicly")
	if err := viper.BindPFlag("access.public-base-url", cmd.PersistentFlags().Lookup("access.public-base-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("access.edge-proxy-url", "", "base URL of the edge proxy in front of the bucket")
	if err := viper.BindPFlag("access.edge-proxy-url", cmd.PersistentFlags().Lookup("access.edge-proxy-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("redis.url", "", "redis URL for caching catalog lookups, disabled when empty")
	if err := viper.BindPFlag("redis.url", cmd.PersistentFlags().Lookup("redis.url")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("ratelimit.requests", 0, "requests per window and client, 0 disables rate limiting")
	if err := viper.BindPFlag("ratelimit.requests", cmd.PersistentFlags().Lookup("ratelimit.requests")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("subtitles.timeout", 2*time.Second, "deadline for resolving all subtitle tracks of a session")
	if err := viper.BindPFlag("subtitles.timeout", cmd.PersistentFlags().Lookup("subtitles.timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("player.hlsjs-url", "", "hls.js script URL used by the test player, reloaded with the config file")
	if err := viper.BindPFlag("player.hlsjs-url", cmd.PersistentFlags().Lookup("player.hlsjs-url")); err != nil {
		return err
	}

	return nil
}

func (c *Config) Set() {
	c.BaseUrl = viper.GetString("base-url")
	c.DatabaseUrl = viper.GetString("database.url")

	c.Storage = Storage{
		Provider:      viper.GetString("storage.provider"),
		Endpoint:      viper.GetString("storage.endpoint"),
		Region:        viper.GetString("storage.region"),
		Bucket:        viper.GetString("storage.bucket"),
		AccessKey:     viper.GetString("storage.access-key"),
		SecretKey:     viper.GetString("storage.secret-key"),
		UseSSL:        viper.GetBool("storage.use-ssl"),
		PathStyle:     viper.GetBool("storage.path-style"),
		MaxObjectSize: viper.GetInt64("storage.max-object-size"),
	}

	c.Token = Token{
		BaseUrl: viper.GetString("token.base-url"),
		Secret:  viper.GetString("token.secret"),
		Timeout: viper.GetDuration("token.timeout"),
	}

	c.Access = Access{
		DefaultMode:   viper.GetString("access.default-mode"),
		PublicBaseUrl: viper.GetString("access.public-base-url"),
		EdgeProxyUrl:  viper.GetString("access.edge-proxy-url"),
		ManifestTTL:   viper.GetDuration("access.manifest-ttl"),
		SegmentTTL:    viper.GetDuration("access.segment-ttl"),
		Timeout:       viper.GetDuration("access.timeout"),
	}

	c.Manifest = Manifest{
		Concurrency:    viper.GetInt("manifest.concurrency"),
		RewriteTagURIs: viper.GetBool("manifest.rewrite-tag-uris"),
	}

	c.Redis = Redis{
		Url: viper.GetString("redis.url"),
		TTL: viper.GetDuration("redis.ttl"),
	}

	c.RateLimit = RateLimit{
		Requests: viper.GetInt("ratelimit.requests"),
		Window:   viper.GetDuration("ratelimit.window"),
	}

	c.Subtitles = Subtitles{
		Timeout: viper.GetDuration("subtitles.timeout"),
	}

	c.Player = Player{
		HlsJsUrl: viper.GetString("player.hlsjs-url"),
	}
}
