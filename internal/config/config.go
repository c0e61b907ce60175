// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/tilery/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Output  OutputConfig  `mapstructure:"output"`
	Tiles   TilesConfig   `mapstructure:"tiles"`
	Extent  ExtentConfig  `mapstructure:"extent"`
	Layers  []LayerConfig `mapstructure:"layers"`
	Sidecar SidecarConfig `mapstructure:"sidecar"`
	MBTiles MBTilesConfig `mapstructure:"mbtiles"`
	Publish PublishConfig `mapstructure:"publish"`
	Status  StatusConfig  `mapstructure:"status"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// OutputConfig selects the tile set destination. The path extension
// picks the sink: a directory, a .zip archive, a .ngrc indexed archive
// or a .mbtiles database.
type OutputConfig struct {
	Path    string `mapstructure:"path"`
	Name    string `mapstructure:"name"`     // tileset name, defaults to the path base
	RootDir string `mapstructure:"root_dir"` // top-level directory inside archives
}

// TilesConfig holds tile geometry and encoding configuration.
type TilesConfig struct {
	Width              int    `mapstructure:"width"`
	Height             int    `mapstructure:"height"`
	Format             string `mapstructure:"format"` // png, jpg
	Quality            int    `mapstructure:"quality"`
	Background         string `mapstructure:"background"` // #RRGGBB
	Transparency       int    `mapstructure:"transparency"`
	MinZoom            int    `mapstructure:"min_zoom"`
	MaxZoom            int    `mapstructure:"max_zoom"`
	TMS                bool   `mapstructure:"tms"`
	RenderOutsideTiles bool   `mapstructure:"render_outside_tiles"`
}

// ExtentConfig holds the WGS84 extent to cover.
type ExtentConfig struct {
	MinX float64 `mapstructure:"min_x"`
	MinY float64 `mapstructure:"min_y"`
	MaxX float64 `mapstructure:"max_x"`
	MaxY float64 `mapstructure:"max_y"`
}

// LayerConfig declares one map layer. Source is either a GeoJSON file
// path or a remote service URL; a remote layer needs an explicit extent.
type LayerConfig struct {
	Name   string        `mapstructure:"name"`
	Source string        `mapstructure:"source"`
	Extent *ExtentConfig `mapstructure:"extent"`
}

// SidecarConfig selects which auxiliary files a run writes. JSON and
// Overview apply to every container kind; Mapurl and Viewer only to
// directory output.
type SidecarConfig struct {
	JSON     bool `mapstructure:"json"`
	Mapurl   bool `mapstructure:"mapurl"`
	Viewer   bool `mapstructure:"viewer"`
	Overview bool `mapstructure:"overview"`
}

// MBTilesConfig holds MBTiles output options.
type MBTilesConfig struct {
	Description string `mapstructure:"description"`
	Compact     bool   `mapstructure:"compact"`
}

// PublishConfig holds the post-run publish destination.
type PublishConfig struct {
	Type      string      `mapstructure:"type"` // none, local, s3, azure
	Prefix    string      `mapstructure:"prefix"`
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
}

// StatusConfig holds the status/metrics HTTP listener configuration.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// WatchConfig holds layer source watching configuration.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Paths    []string      `mapstructure:"paths"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Output defaults
	viper.SetDefault("output.path", "./tiles")
	viper.SetDefault("output.root_dir", "")

	// Tile defaults
	viper.SetDefault("tiles.width", 256)
	viper.SetDefault("tiles.height", 256)
	viper.SetDefault("tiles.format", "png")
	viper.SetDefault("tiles.quality", 70)
	viper.SetDefault("tiles.background", "#ffffff")
	viper.SetDefault("tiles.transparency", 100)
	viper.SetDefault("tiles.min_zoom", 0)
	viper.SetDefault("tiles.max_zoom", 18)
	viper.SetDefault("tiles.tms", false)
	viper.SetDefault("tiles.render_outside_tiles", false)

	// Extent defaults to the whole world
	viper.SetDefault("extent.min_x", -180.0)
	viper.SetDefault("extent.min_y", -85.0511)
	viper.SetDefault("extent.max_x", 180.0)
	viper.SetDefault("extent.max_y", 85.0511)

	// Sidecar defaults
	viper.SetDefault("sidecar.json", false)
	viper.SetDefault("sidecar.mapurl", false)
	viper.SetDefault("sidecar.viewer", false)
	viper.SetDefault("sidecar.overview", false)

	// MBTiles defaults
	viper.SetDefault("mbtiles.compact", true)

	// Publish defaults
	viper.SetDefault("publish.type", "none")

	// Status defaults
	viper.SetDefault("status.enabled", false)
	viper.SetDefault("status.address", "127.0.0.1:8080")

	// Watch defaults
	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("TILERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tilery")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if c.Tiles.MinZoom > c.Tiles.MaxZoom {
		return fmt.Errorf("min zoom %d exceeds max zoom %d", c.Tiles.MinZoom, c.Tiles.MaxZoom)
	}
	if c.Tiles.Width <= 0 || c.Tiles.Height <= 0 {
		return fmt.Errorf("invalid tile size %dx%d", c.Tiles.Width, c.Tiles.Height)
	}
	if c.Tiles.Transparency < 0 || c.Tiles.Transparency > 100 {
		return fmt.Errorf("transparency must be between 0 and 100, got %d", c.Tiles.Transparency)
	}
	if _, err := c.Tiles.BackgroundColor(); err != nil {
		return err
	}

	for i, layer := range c.Layers {
		if layer.Source == "" {
			return fmt.Errorf("layer %d: source is required", i)
		}
		if isRemoteSource(layer.Source) && layer.Extent == nil {
			return fmt.Errorf("layer %d: remote layers need an explicit extent", i)
		}
	}

	switch c.Publish.Type {
	case "", "none":
	case "local":
		if c.Publish.LocalPath == "" {
			return fmt.Errorf("local publish path is required")
		}
	case "s3":
		if c.Publish.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
		if c.Publish.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "azure":
		if c.Publish.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
		if c.Publish.Azure.AccountName == "" && c.Publish.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	default:
		return fmt.Errorf("unknown publish type: %s", c.Publish.Type)
	}

	return nil
}

// Extent returns the configured extent as a domain value.
func (c *ExtentConfig) Extent() domain.Extent {
	return domain.NewWGS84Extent(c.MinX, c.MinY, c.MaxX, c.MaxY)
}

// BackgroundColor parses the background color and applies the
// transparency percentage as the alpha channel.
func (c *TilesConfig) BackgroundColor() (color.NRGBA, error) {
	hex := strings.TrimPrefix(c.Background, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("background must be #RRGGBB, got %q", c.Background)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("background must be #RRGGBB, got %q", c.Background)
	}

	alpha := 255 * c.clampedTransparency() / 100
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: uint8(alpha),
	}, nil
}

// clampedTransparency returns the transparency percentage clamped to 0..100.
func (c *TilesConfig) clampedTransparency() int {
	if c.Transparency < 0 {
		return 0
	}
	if c.Transparency > 100 {
		return 100
	}
	return c.Transparency
}

func isRemoteSource(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
