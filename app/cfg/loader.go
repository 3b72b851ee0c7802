package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	Store     string `long:"store" env:"STORE" default:"sqlite" choice:"sqlite" choice:"redis" description:"Backend for items and subscriber registries"`
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./atwood-monitor.db" description:"SQLite database file"`
	RedisAddr string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address (store=redis)"`

	// Fan-out
	Broker       string   `long:"broker" env:"BROKER" default:"memory" choice:"memory" choice:"kafka" description:"Fan-out channel implementation"`
	KafkaBrokers []string `long:"kafka-brokers" env:"KAFKA_BROKERS" env-delim:"," description:"Kafka broker addresses (broker=kafka)"`
	KafkaGroup   string   `long:"kafka-group" env:"KAFKA_GROUP" default:"atwood-monitor" description:"Kafka consumer group"`

	// Application configuration
	MonitorConfig   string `long:"monitor-config" env:"MONITOR_CONFIG" default:"./monitor.yml" description:"Monitor definition (feed, sold patterns, notification texts)"`
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	Schedule        string `long:"schedule" env:"SCHEDULE" default:"@every 1m" description:"Cron spec for feed checks"`
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of background task workers"`
	PushConcurrency int    `long:"push-concurrency" env:"PUSH_CONCURRENCY" default:"8" description:"Concurrent web push deliveries per event"`
	Environment     string `long:"environment" env:"ENVIRONMENT" default:"staging" choice:"staging" choice:"production" description:"Deployment environment, used as metrics dimension"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"Admin API key (admin routes disabled when empty)"`

	// Web push
	VAPIDPublicKey  string `long:"vapid-public-key" env:"VAPID_PUBLIC_KEY" description:"VAPID public key (base64url)"`
	VAPIDPrivateKey string `long:"vapid-private-key" env:"VAPID_PRIVATE_KEY" description:"VAPID private key (base64url)"`
	VAPIDSubject    string `long:"vapid-subject" env:"VAPID_SUBJECT" default:"mailto:svdberg@me.com" description:"VAPID subject claim"`

	// Mail relay
	SMTPAddr     string `long:"smtp-addr" env:"SMTP_ADDR" description:"SMTP submission address host:port (mail disabled when empty)"`
	SMTPUser     string `long:"smtp-user" env:"SMTP_USER" description:"SMTP user"`
	SMTPPassword string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	MailFrom     string `long:"mail-from" env:"MAIL_FROM" default:"noreply@atwood-monitor.local" description:"Sender address for notification mail"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Atwood Monitor/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Amsterdam)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type command struct{}

var globalCfg *Cfg

// Load reads .env, flags and environment. It returns (nil, nil) when help was
// requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := LoadArgs(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	commands := []struct{ name, short string }{
		{CommandServe, "Run the HTTP API, scheduled checks and notification consumers"},
		{CommandCheck, "Run a single feed check and exit"},
		{CommandVAPIDKeys, "Generate a VAPID key pair"},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.short, &command{}); err != nil {
			return nil, fmt.Errorf("failed to register command %s: %w", c.name, err)
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Command:         CommandServe,
		Store:           raw.Store,
		DBPath:          raw.DBPath,
		RedisAddr:       raw.RedisAddr,
		Broker:          raw.Broker,
		KafkaBrokers:    raw.KafkaBrokers,
		KafkaGroup:      raw.KafkaGroup,
		MonitorConfig:   raw.MonitorConfig,
		Port:            raw.Port,
		Schedule:        raw.Schedule,
		WorkerCount:     raw.WorkerCount,
		PushConcurrency: raw.PushConcurrency,
		Environment:     raw.Environment,
		APIAccessKey:    raw.APIAccessKey,
		VAPIDPublicKey:  raw.VAPIDPublicKey,
		VAPIDPrivateKey: raw.VAPIDPrivateKey,
		VAPIDSubject:    raw.VAPIDSubject,
		SMTPAddr:        raw.SMTPAddr,
		SMTPUser:        raw.SMTPUser,
		SMTPPassword:    raw.SMTPPassword,
		MailFrom:        raw.MailFrom,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if parser.Active != nil {
		cfg.Command = parser.Active.Name
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.PushConcurrency <= 0 {
		return fmt.Errorf("push concurrency must be positive")
	}
	c.KafkaBrokers = slices.DeleteFunc(c.KafkaBrokers, func(s string) bool { return s == "" })
	if c.Broker == BrokerKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka broker requires at least one address in --kafka-brokers")
	}
	if c.Command == CommandServe && c.Store == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis store requires --redis-addr")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
