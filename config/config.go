package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Room     RoomConfig     `mapstructure:"room"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string        `mapstructure:"http_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	GRPCAddress    string        `mapstructure:"grpc_address"`
	ServerLocation string        `mapstructure:"server_location"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver selects the room directory store: memory, gorm, postgres or sqlite.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RoomConfig struct {
	// Mode is puzzle (rooms host a puzzle game) or free (position-only movement).
	Mode              string        `mapstructure:"mode"`
	InboxSize         int           `mapstructure:"inbox_size"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	RequireRegistered bool          `mapstructure:"require_registered"`
}

type GameConfig struct {
	LinesPerLevel       int           `mapstructure:"lines_per_level"`
	MinTickInterval     time.Duration `mapstructure:"min_tick_interval"`
	RerollGameOverProbe bool          `mapstructure:"reroll_game_over_probe"`
	// Seed fixes the piece sequence of every room when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.grpc_address", ":8082")
	v.SetDefault("server.server_location", "")
	v.SetDefault("server.send_buffer", 64)
	v.SetDefault("server.heartbeat", 30*time.Second)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_grace", 5*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "blockroom")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.sqlite.path", "blockroom.db")

	v.SetDefault("room.mode", "puzzle")
	v.SetDefault("room.inbox_size", 256)
	v.SetDefault("room.idle_timeout", 5*time.Minute)
	v.SetDefault("room.sweep_interval", time.Minute)
	v.SetDefault("room.require_registered", false)

	v.SetDefault("game.lines_per_level", 10)
	v.SetDefault("game.min_tick_interval", 100*time.Millisecond)
	v.SetDefault("game.reroll_game_over_probe", true)
	v.SetDefault("game.seed", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path if present, then applies BLOCKROOM_*
// environment variables (also loaded from a .env file in path). A missing
// config file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(path + "/.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BLOCKROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "gorm", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	switch c.Room.Mode {
	case "puzzle", "free":
	default:
		return fmt.Errorf("room.mode: unknown mode %q", c.Room.Mode)
	}
	if c.Room.InboxSize <= 0 {
		return fmt.Errorf("room.inbox_size must be positive, got %d", c.Room.InboxSize)
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer)
	}
	if c.Game.LinesPerLevel < 0 {
		return fmt.Errorf("game.lines_per_level must not be negative, got %d", c.Game.LinesPerLevel)
	}
	return nil
}
