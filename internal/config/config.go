package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Hierarchy HierarchyConfig `mapstructure:"hierarchy"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Grid      GridConfig      `mapstructure:"grid"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"` // режим gin
	// 0 — кадр сразу после рассылки перерисовки; >0 — кадры по таймеру, как vsync
	FrameInterval time.Duration `mapstructure:"frame_interval" validate:"min=0"`
}

type HierarchyConfig struct {
	DSLDir string `mapstructure:"dsl_dir"` // пусто — встроенная иерархия region
	Name   string `mapstructure:"name"`
}

type CatalogConfig struct {
	Source string `mapstructure:"source" validate:"oneof=generated yaml postgres"`
	Path   string `mapstructure:"path"` // для yaml
	Roots  int    `mapstructure:"roots" validate:"min=1"`
	Fanout int    `mapstructure:"fanout" validate:"min=1"`
}

type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type GridConfig struct {
	Sizes        []int `mapstructure:"sizes" validate:"min=1,dive,min=1"`
	InitialRows  int   `mapstructure:"initial_rows"`
	ReverseIndex bool  `mapstructure:"reverse_index"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.frame_interval", time.Duration(0))

	v.SetDefault("hierarchy.dsl_dir", "")
	v.SetDefault("hierarchy.name", "")

	v.SetDefault("catalog.source", "generated")
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.roots", 10)
	v.SetDefault("catalog.fanout", 2)

	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("grid.sizes", []int{10, 20, 50, 100})
	v.SetDefault("grid.initial_rows", 10)
	v.SetDefault("grid.reverse_index", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// flagKeys: имя флага → ключ конфигурации
var flagKeys = map[string]string{
	"host":           "server.host",
	"port":           "server.port",
	"mode":           "server.mode",
	"frame-interval": "server.frame_interval",
	"dsl":            "hierarchy.dsl_dir",
	"hierarchy":      "hierarchy.name",
	"catalog-source": "catalog.source",
	"catalog-path":   "catalog.path",
	"catalog-roots":  "catalog.roots",
	"catalog-fanout": "catalog.fanout",
	"db":             "database.url",
	"auto-migrate":   "database.auto_migrate",
	"rows":           "grid.initial_rows",
	"reverse-index":  "grid.reverse_index",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// RegisterFlags объявляет флаги, общие для всех команд. Значения по умолчанию
// совпадают с setDefaults, чтобы неизменённый флаг ничего не перекрывал.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config file (yaml/json/toml)")
	fs.String("host", "", "HTTP host")
	fs.Int("port", 8080, "HTTP port")
	fs.String("mode", "release", "gin mode (debug/release/test)")
	fs.Duration("frame-interval", 0, "Frame clock interval (0 = frame right after redraw)")
	fs.String("dsl", "", "Path to hierarchy DSL directory (empty = built-in region)")
	fs.String("hierarchy", "", "Hierarchy name or module.name")
	fs.String("catalog-source", "generated", "Catalog source (generated/yaml/postgres)")
	fs.String("catalog-path", "", "YAML catalog file (catalog-source=yaml)")
	fs.Int("catalog-roots", 10, "Top-level options of the generated catalog")
	fs.Int("catalog-fanout", 2, "Children per node of the generated catalog")
	fs.String("db", "", "Postgres URL (catalog-source=postgres)")
	fs.Bool("auto-migrate", false, "Create catalog table if missing")
	fs.Int("rows", 10, "Initial row count")
	fs.Bool("reverse-index", false, "Keep a reverse index for unique levels instead of rescanning")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "text", "Log format (text/json)")
}

// Load: файл → переменные окружения CASCADE_* → флаги. Каждый следующий слой перекрывает предыдущий.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CASCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			path = strings.TrimSpace(f.Value.String())
		}
	}
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CASCADE_CONFIG"))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("cascade")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.trim()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) trim() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Hierarchy.DSLDir = strings.TrimSpace(c.Hierarchy.DSLDir)
	c.Catalog.Source = strings.ToLower(strings.TrimSpace(c.Catalog.Source))
	c.Catalog.Path = strings.TrimSpace(c.Catalog.Path)
	c.Database.URL = strings.TrimSpace(c.Database.URL)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

var validate = validator.New()

// Validate проверяет теги и связи между полями
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !slices.Contains(c.Grid.Sizes, c.Grid.InitialRows) {
		return fmt.Errorf("invalid config: grid.initial_rows %d is not one of grid.sizes %v", c.Grid.InitialRows, c.Grid.Sizes)
	}
	switch c.Catalog.Source {
	case "yaml":
		if c.Catalog.Path == "" {
			return fmt.Errorf("invalid config: catalog.path is required for catalog.source=yaml")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("invalid config: database.url is required for catalog.source=postgres")
		}
	}
	return nil
}

// Addr — адрес для net/http
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }
