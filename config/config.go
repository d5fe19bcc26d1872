package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PLAYABOOTH"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Composite  CompositeConfig  `mapstructure:"composite"`
	Background BackgroundConfig `mapstructure:"background"`
	Segmenter  SegmenterConfig  `mapstructure:"segmenter"`
	Gallery    GalleryConfig    `mapstructure:"gallery"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Upload     UploadConfig     `mapstructure:"upload"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type CompositeConfig struct {
	Threshold float32 `mapstructure:"threshold"`
	Polarity  string  `mapstructure:"polarity"`
	Sampling  string  `mapstructure:"sampling"`
	Workers   int     `mapstructure:"workers"`
	Mirror    bool    `mapstructure:"mirror"`
}

type BackgroundConfig struct {
	AssetDir      string   `mapstructure:"asset_dir"`
	Pattern       string   `mapstructure:"pattern"`
	URLs          []string `mapstructure:"urls"`
	MaxEdge       int      `mapstructure:"max_edge"`
	DefaultWidth  int      `mapstructure:"default_width"`
	DefaultHeight int      `mapstructure:"default_height"`
	CacheBytes    int64    `mapstructure:"cache_bytes"`
	RefreshSpec   string   `mapstructure:"refresh_spec"`
}

type SegmenterConfig struct {
	Kind        string        `mapstructure:"kind"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ModelPath   string        `mapstructure:"model_path"`
	LibraryPath string        `mapstructure:"library_path"`
	InputWidth  int           `mapstructure:"input_width"`
	InputHeight int           `mapstructure:"input_height"`
	InputName   string        `mapstructure:"input_name"`
	OutputName  string        `mapstructure:"output_name"`
}

type GalleryConfig struct {
	Dir         string        `mapstructure:"dir"`
	JPEGQuality int           `mapstructure:"jpeg_quality"`
	Retention   time.Duration `mapstructure:"retention"`
	PruneSpec   string        `mapstructure:"prune_spec"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// Load 从 YAML 文件加载配置，环境变量 PLAYABOOTH_* 优先
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

// New 加载 configPath，失败时使用默认配置（仍然应用环境变量）
func New(configPath string) *Config {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg
	}

	cfg, err = unmarshal(newViper())
	if err != nil {
		return Default()
	}
	return cfg
}

// Default 返回不读文件、不读环境变量的默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("composite.threshold", 0.5)
	v.SetDefault("composite.polarity", "above")
	v.SetDefault("composite.sampling", "nearest")
	v.SetDefault("composite.workers", 0)
	v.SetDefault("composite.mirror", false)

	v.SetDefault("background.asset_dir", "./assets")
	v.SetDefault("background.pattern", `(?i)^bg\d+\.(png|jpe?g|webp|bmp)$`)
	v.SetDefault("background.urls", []string{})
	v.SetDefault("background.max_edge", 2048)
	v.SetDefault("background.default_width", 1080)
	v.SetDefault("background.default_height", 1920)
	v.SetDefault("background.cache_bytes", 256<<20)
	v.SetDefault("background.refresh_spec", "")

	v.SetDefault("segmenter.kind", "none")
	v.SetDefault("segmenter.url", "")
	v.SetDefault("segmenter.timeout", 5*time.Second)
	v.SetDefault("segmenter.model_path", "./models/selfie_segmentation.onnx")
	v.SetDefault("segmenter.library_path", "")
	v.SetDefault("segmenter.input_width", 256)
	v.SetDefault("segmenter.input_height", 256)
	v.SetDefault("segmenter.input_name", "input_1")
	v.SetDefault("segmenter.output_name", "activation_10")

	v.SetDefault("gallery.dir", "./gallery")
	v.SetDefault("gallery.jpeg_quality", 90)
	v.SetDefault("gallery.retention", 7*24*time.Hour)
	v.SetDefault("gallery.prune_spec", "@hourly")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})
}
