package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"reactor-planner/internal/planner"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"prod"`
	Storage    `yaml:"storage"`
	HTTPServer `yaml:"http_server"`
	CORS       `yaml:"cors"`
	Log        `yaml:"log"`
	Planning   `yaml:"planning"`
}

type Storage struct {
	DBUser     string `yaml:"db_user" env:"DB_USER" env-required:"true"`
	DBPassword string `yaml:"db_password" env:"DB_PASSWORD"`
	DBHost     string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort     int    `yaml:"db_port" env:"DB_PORT" env-default:"3306"`
	DBName     string `yaml:"db_name" env:"DB_NAME" env-required:"true"`
	ParseTime  bool   `yaml:"parse_time" env-default:"true"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:4001"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:5173"`
}

type Log struct {
	ErrorFile string `yaml:"error_file" env:"LOG_ERROR_FILE" env-default:"errors.log"`
}

type Planning struct {
	Timezone       string  `yaml:"timezone" env:"PLANNING_TIMEZONE" env-default:"UTC"`
	SplitThreshold float64 `yaml:"split_threshold" env-default:"2000"`
	MaxBatch       float64 `yaml:"max_batch" env-default:"2000"`
	HorizonDays    int     `yaml:"horizon_days" env-default:"14"`
	SkipWeekends   bool    `yaml:"skip_weekends" env-default:"false"`
	TieBreak       string  `yaml:"tie_break" env-default:"least_slack"`
	PreviewCron    string  `yaml:"preview_cron" env:"PLANNING_PREVIEW_CRON"` // empty disables the nightly preview
}

func MustConfig() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Planning.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=%v",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.ParseTime,
	)
}

func (p Planning) validate() error {
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("planning.timezone: %w", err)
	}
	if p.MaxBatch <= 0 || p.SplitThreshold <= 0 {
		return fmt.Errorf("planning: split_threshold and max_batch must be > 0")
	}
	if p.HorizonDays <= 0 {
		return fmt.Errorf("planning.horizon_days must be > 0")
	}
	if _, err := planner.ComparatorByName(p.TieBreak); err != nil {
		return fmt.Errorf("planning.tie_break: %w", err)
	}
	return nil
}

// Location falls back to UTC; Load has already rejected unknown zones.
func (p Planning) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p Planning) Comparator() planner.ReactorComparator {
	c, err := planner.ComparatorByName(p.TieBreak)
	if err != nil {
		return planner.LeastSlack
	}
	return c
}

func (p Planning) SplitPolicy() planner.SplitPolicy {
	return planner.SplitPolicy{Threshold: p.SplitThreshold, MaxBatch: p.MaxBatch}
}
