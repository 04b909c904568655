// Package config loads livemapd configuration from an optional JSON file and
// the environment. Every cache window and timeout is policy, not a constant;
// the defaults below are provisional and overridable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GameConfig describes the external game server endpoints and the shared
// push secret.
type GameConfig struct {
	Host          string        `json:"host" mapstructure:"host"`
	Port          string        `json:"port" mapstructure:"port"`
	RosterPath    string        `json:"rosterPath" mapstructure:"rosterPath"`
	InfoPath      string        `json:"infoPath" mapstructure:"infoPath"`
	PushSecret    string        `json:"pushSecret" mapstructure:"pushSecret"`
	RosterTimeout time.Duration `json:"rosterTimeout" mapstructure:"rosterTimeout"`
}

// BaseURL returns the game server base URL.
func (g GameConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%s", g.Host, g.Port)
}

// CacheConfig holds the freshness windows applied by the reconciler and the
// HTTP revalidation cadences.
type CacheConfig struct {
	LiveWindow        time.Duration `json:"liveWindow" mapstructure:"liveWindow"`
	Expiry            time.Duration `json:"expiry" mapstructure:"expiry"`
	MapRevalidate     time.Duration `json:"mapRevalidate" mapstructure:"mapRevalidate"`
	SummaryRevalidate time.Duration `json:"summaryRevalidate" mapstructure:"summaryRevalidate"`
}

// DensityConfig holds heatmap grid settings in world units.
type DensityConfig struct {
	CellSize    float64 `json:"cellSize" mapstructure:"cellSize"`
	MinCellSize float64 `json:"minCellSize" mapstructure:"minCellSize"`
	MaxCellSize float64 `json:"maxCellSize" mapstructure:"maxCellSize"`
}

// GeoConfig anchors the game world inside Web Mercator for the frontend's
// tile layer. OriginX/OriginY are the EPSG:3857 coordinates of the world's
// (0,0).
type GeoConfig struct {
	OriginX float64 `json:"originX" mapstructure:"originX"`
	OriginY float64 `json:"originY" mapstructure:"originY"`
}

// HistoryConfig caps the rolling population series.
type HistoryConfig struct {
	Capacity int `json:"capacity" mapstructure:"capacity"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `json:"listenAddr" mapstructure:"listenAddr"`
}

// RealtimeConfig tunes the websocket distributor.
type RealtimeConfig struct {
	SendBuffer  int           `json:"sendBuffer" mapstructure:"sendBuffer"`
	WriteWait   time.Duration `json:"writeWait" mapstructure:"writeWait"`
	PongWait    time.Duration `json:"pongWait" mapstructure:"pongWait"`
	LogBacklog  int           `json:"logBacklog" mapstructure:"logBacklog"`
	EventBuffer int           `json:"eventBuffer" mapstructure:"eventBuffer"`
}

// SQLiteConfig holds the sqlite storage backend settings.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds the postgres storage backend settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig selects and configures the aggregate persistence backend.
type StorageConfig struct {
	Type             string         `json:"type" mapstructure:"type"`
	SnapshotInterval time.Duration  `json:"snapshotInterval" mapstructure:"snapshotInterval"`
	SQLite           SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres         PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds InfluxDB metrics export settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// GraylogConfig holds the optional GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.listenAddr", ":8080")

	viper.SetDefault("game.host", "localhost")
	viper.SetDefault("game.port", "30120")
	viper.SetDefault("game.rosterPath", "/players.json")
	viper.SetDefault("game.infoPath", "/info.json")
	viper.SetDefault("game.pushSecret", "")
	viper.SetDefault("game.rosterTimeout", "5s")

	viper.SetDefault("cache.liveWindow", "30s")
	viper.SetDefault("cache.expiry", "60s")
	viper.SetDefault("cache.mapRevalidate", "5s")
	viper.SetDefault("cache.summaryRevalidate", "30s")

	viper.SetDefault("density.cellSize", 500.0)
	viper.SetDefault("density.minCellSize", 50.0)
	viper.SetDefault("density.maxCellSize", 5000.0)

	viper.SetDefault("geo.originX", 0.0)
	viper.SetDefault("geo.originY", 0.0)

	// 24h of samples at the expected 5s push cadence.
	viper.SetDefault("history.capacity", 17280)

	viper.SetDefault("realtime.sendBuffer", 64)
	viper.SetDefault("realtime.writeWait", "10s")
	viper.SetDefault("realtime.pongWait", "60s")
	viper.SetDefault("realtime.logBacklog", 200)
	viper.SetDefault("realtime.eventBuffer", 1024)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.snapshotInterval", "1m")
	viper.SetDefault("storage.sqlite.path", "./livemap.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "livemap")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "livemap-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "livemapd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from livemapd.cfg.json in configDir and binds
// LIVEMAP_* environment variables. A missing config file is not an error;
// defaults plus environment cover the full surface.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName("livemapd.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	viper.SetEnvPrefix("livemap")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// GetGameConfig returns the game server section.
func GetGameConfig() GameConfig {
	return GameConfig{
		Host:          viper.GetString("game.host"),
		Port:          viper.GetString("game.port"),
		RosterPath:    viper.GetString("game.rosterPath"),
		InfoPath:      viper.GetString("game.infoPath"),
		PushSecret:    viper.GetString("game.pushSecret"),
		RosterTimeout: viper.GetDuration("game.rosterTimeout"),
	}
}

// GetCacheConfig returns the freshness window section.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		LiveWindow:        viper.GetDuration("cache.liveWindow"),
		Expiry:            viper.GetDuration("cache.expiry"),
		MapRevalidate:     viper.GetDuration("cache.mapRevalidate"),
		SummaryRevalidate: viper.GetDuration("cache.summaryRevalidate"),
	}
}

// GetDensityConfig returns the heatmap grid section.
func GetDensityConfig() DensityConfig {
	return DensityConfig{
		CellSize:    viper.GetFloat64("density.cellSize"),
		MinCellSize: viper.GetFloat64("density.minCellSize"),
		MaxCellSize: viper.GetFloat64("density.maxCellSize"),
	}
}

// GetGeoConfig returns the world anchoring section.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginX: viper.GetFloat64("geo.originX"),
		OriginY: viper.GetFloat64("geo.originY"),
	}
}

// GetHistoryConfig returns the population series section.
func GetHistoryConfig() HistoryConfig {
	return HistoryConfig{Capacity: viper.GetInt("history.capacity")}
}

// GetServerConfig returns the HTTP listener section.
func GetServerConfig() ServerConfig {
	return ServerConfig{ListenAddr: viper.GetString("server.listenAddr")}
}

// GetRealtimeConfig returns the websocket distributor section.
func GetRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		SendBuffer:  viper.GetInt("realtime.sendBuffer"),
		WriteWait:   viper.GetDuration("realtime.writeWait"),
		PongWait:    viper.GetDuration("realtime.pongWait"),
		LogBacklog:  viper.GetInt("realtime.logBacklog"),
		EventBuffer: viper.GetInt("realtime.eventBuffer"),
	}
}

// GetStorageConfig returns the persistence backend section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:             viper.GetString("storage.type"),
		SnapshotInterval: viper.GetDuration("storage.snapshotInterval"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetGraylogConfig returns the GELF sink section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
