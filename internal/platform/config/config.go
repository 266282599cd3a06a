// Package config loads process settings from ONBOARD_* environment variables
// and the routing rules from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"onboard/internal/cadence"
	"onboard/internal/rules"
)

const envPrefix = "onboard"

type Config struct {
	Server   Server
	Log      Log
	Schedule Schedule
	Notify   Notify
	Redis    RedisConfig
	Kafka    Kafka
	Vendors  Vendors

	RulesFile string `envconfig:"RULES_FILE" default:"rules.yaml"`
	Rules     Rules  `ignored:"true"`

	location *time.Location
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string `envconfig:"ADDR" default:":8080"`
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	CallbackToken string `envconfig:"CALLBACK_TOKEN"`
}

type Log struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

type Schedule struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
	DigestAt     string        `envconfig:"DIGEST_AT" default:"09:00"`
	Timezone     string        `envconfig:"TIMEZONE" default:"Asia/Shanghai"`
}

type Notify struct {
	EmailDomain     string        `envconfig:"EMAIL_DOMAIN" default:"example.com"`
	SentCapacity    int           `envconfig:"SENT_CAPACITY" default:"200"`
	AuditCapacity   int           `envconfig:"AUDIT_CAPACITY" default:"500"`
	DedupeTTL       time.Duration `envconfig:"DEDUPE_TTL" default:"10m"`
	RideSpacing     time.Duration `envconfig:"RIDE_SPACING" default:"500ms"`
	EnrichPageSize  int           `envconfig:"ENRICH_PAGE_SIZE" default:"50"`
	EnrichWaveWidth int           `envconfig:"ENRICH_WAVE_WIDTH" default:"4"`
}

// RedisConfig enables the shared callback dedupe store when URL is set.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// Kafka enables audit export when Brokers is set.
type Kafka struct {
	Brokers []string `envconfig:"BROKERS"`
	Topic   string   `envconfig:"TOPIC" default:"onboard.audit"`
	Buffer  int      `envconfig:"BUFFER" default:"256"`
}

type Vendor struct {
	BaseURL      string `envconfig:"BASE_URL"`
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
}

type Vendors struct {
	Roster    Vendor
	Directory Vendor
	Ride      Vendor
	Messenger Vendor
}

// Rules is the YAML routing file.
type Rules struct {
	Categories []string          `yaml:"categories"`
	Matcher    MatcherRules      `yaml:"matcher"`
	Push       PushRules         `yaml:"push"`
	Chats      map[string]string `yaml:"chats"`
	RideRules  []rules.Rule      `yaml:"ride_rules"`
	Locations  map[string]string `yaml:"locations"`
}

type MatcherRules struct {
	PrimaryCategory   string `yaml:"primary_category"`
	SecondaryCategory string `yaml:"secondary_category"`
}

type PushRules struct {
	Default cadence.Rule            `yaml:"default"`
	Groups  map[string]cadence.Rule `yaml:"groups"`
}

// Load reads the environment, then the rules file it points to.
func Load() (*Config, error) {
	return LoadWithRules("")
}

// LoadWithRules is Load with the rules file path taken from rulesPath when it
// is non-empty.
func LoadWithRules(rulesPath string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if rulesPath != "" {
		cfg.RulesFile = rulesPath
	}
	rulesFile, err := LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	cfg.Rules = *rulesFile
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRules parses the YAML rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(r.Categories) == 0 {
		r.Categories = []string{"intern", "regular"}
	}
	if r.Push.Default.Mode == "" {
		r.Push.Default = cadence.Rule{Mode: cadence.ModeRealtime}
	}
	return &r, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Schedule.Timezone, err)
	}
	c.location = loc
	if _, _, err := c.Schedule.DigestTime(); err != nil {
		return err
	}
	if c.Schedule.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.Rules.Matcher.PrimaryCategory == "" {
		return errors.New("rules file: matcher.primary_category is required")
	}
	return nil
}

// Location is the reference time zone for weekdays, dates and the digest.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DigestTime parses DigestAt as HH:MM.
func (s Schedule) DigestTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.DigestAt)
	if err != nil {
		return 0, 0, fmt.Errorf("digest time %q: want HH:MM", s.DigestAt)
	}
	return t.Hour(), t.Minute(), nil
}
