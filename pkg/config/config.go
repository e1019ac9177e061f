// 文件: pkg/config/config.go
// Orchestrator configuration: TOML on disk, environment overrides on top.

package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// OrchestratorConfig controls the scheduler's task cadence and boot mode.
type OrchestratorConfig struct {
	StartPaused bool              `toml:"start_paused"`
	Intervals   IntervalsConfig   `toml:"intervals"`
}

// IntervalsConfig holds per-task polling intervals in seconds under the
// `orchestrator.intervals.*` TOML keys.
type IntervalsConfig struct {
	WorkAcceptor      int `toml:"work_acceptor"`
	AdCreator         int `toml:"ad_creator"`
	ReceiptProcessor  int `toml:"receipt_processor"`
	ChatProcessor     int `toml:"chat_processor"`
	OrderChecker      int `toml:"order_checker"`
	Successer         int `toml:"successer"`
	GateBalanceSetter int `toml:"gate_balance_setter"`
}

// AutomationConfig selects whether payout acceptance prompts an operator.
type AutomationConfig struct {
	Mode string `toml:"mode"` // "auto" | "manual"
}

// BybitConfig tunes the Platform-X client (named after the real-world
// API family it talks to; kept as the config section name the
// operator-facing TOML uses).
type BybitConfig struct {
	PollingIntervalMs int `toml:"polling_interval_ms"`
	MaxRetries        int `toml:"max_retries"`
	RetryDelayMs      int `toml:"retry_delay_ms"`
}

// GateConfig tunes the Platform-D client.
type GateConfig struct {
	DefaultBalance int64         `toml:"default_balance"`
	StatusCodes    map[int]string `toml:"status_codes"`
}

// InstantMonitorConfig toggles the instant-order discovery loop.
type InstantMonitorConfig struct {
	Enabled bool `toml:"enabled"`
}

// AccountConfig is one `[[accounts]]` entry: which Platform-D/Platform-X
// identity to wire up. Credential material itself never goes in the
// TOML file; it is read from the environment via EnvAccountCredential
// keyed by Tag, so the config file stays safe to commit.
type AccountConfig struct {
	Tag              string   `toml:"tag"`
	AdSlotCapacity   int      `toml:"ad_slot_capacity"`
	PlatformDBaseURL string   `toml:"platform_d_base_url"`
	PlatformXBaseURL string   `toml:"platform_x_base_url"`
	TrustedEmailFrom []string `toml:"trusted_email_from"`
}

// AdConfig is the pricing/placement configuration Ad Placement reads.
type AdConfig struct {
	UnitPrice      int64    `toml:"unit_price"`
	PaymentMethods []string `toml:"payment_methods"`
	MaxSlots       int      `toml:"max_slots"`
}

// RedisConfig points at the token-bucket backing store for pkg/ratelimit.
type RedisConfig struct {
	Addr string `toml:"addr"`
}

// EmailConfig names the shared inbox and the senders trusted to deliver
// receipt PDFs.
type EmailConfig struct {
	Inbox          string   `toml:"inbox"`
	TrustedDomains []string `toml:"trusted_domains"`
}

// EventBusConfig selects the out-of-process wire backend for pkg/eventbus.
type EventBusConfig struct {
	Backend      string   `toml:"backend"` // "kafka" | "nats" | "" (in-process only)
	KafkaBrokers []string `toml:"kafka_brokers"`
	// ConsumerGroup is the Kafka consumer group every replica's ingress
	// joins, so a fleet of agents shares one logical subscription and
	// each published event still fans out to every replica's websocket
	// clients exactly once per replica.
	ConsumerGroup string `toml:"consumer_group"`
	NatsURL       string `toml:"nats_url"`
	WSAddr        string `toml:"ws_addr"`
}

type Config struct {
	Orchestrator   OrchestratorConfig   `toml:"orchestrator"`
	Automation     AutomationConfig     `toml:"automation"`
	Bybit          BybitConfig          `toml:"bybit"`
	Gate           GateConfig           `toml:"gate"`
	InstantMonitor InstantMonitorConfig `toml:"instant_monitor"`
	Accounts       []AccountConfig      `toml:"accounts"`
	Ad             AdConfig             `toml:"ad"`
	Redis          RedisConfig          `toml:"redis"`
	Email          EmailConfig          `toml:"email"`
	EventBus       EventBusConfig       `toml:"event_bus"`

	// Populated from the environment, never from the TOML file.
	DatabaseURL string `toml:"-"`
	ExternalIP  string `toml:"-"`
}

// Default returns the documented operational defaults.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			StartPaused: false,
			Intervals: IntervalsConfig{
				WorkAcceptor:      300, // 5 min
				AdCreator:         10,
				ReceiptProcessor:  10,
				ChatProcessor:     1,
				OrderChecker:      1,
				Successer:         10,
				GateBalanceSetter: 4 * 60 * 60, // every 4h
			},
		},
		Automation: AutomationConfig{Mode: "auto"},
		Bybit: BybitConfig{
			PollingIntervalMs: 1000,
			MaxRetries:        3,
			RetryDelayMs:      1000,
		},
		Gate: GateConfig{
			DefaultBalance: 10_000_000,
			StatusCodes: map[int]string{
				1: "created",
				2: "accepted",
				3: "rejected",
				4: "pending",
				5: "accepted_waiting",
				7: "completed",
			},
		},
		InstantMonitor: InstantMonitorConfig{Enabled: true},
		Accounts: []AccountConfig{
			{Tag: "primary", AdSlotCapacity: 5},
		},
		Ad: AdConfig{
			UnitPrice:      100,
			PaymentMethods: []string{"sbp"},
			MaxSlots:       5,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Email: EmailConfig{Inbox: "receipts"},
		EventBus: EventBusConfig{
			WSAddr:        ":8081",
			ConsumerGroup: "agent-events",
		},
	}
}

// Load reads path, writing a default file if none exists yet. Environment
// variables are applied on top of whatever the file contained.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// applyEnv layers environment-variable overrides on top of the file.
func applyEnv(cfg *Config) {
	if mode := os.Getenv("MODE"); mode != "" {
		cfg.Automation.Mode = mode
	}
	if ip := os.Getenv("EXTERNAL_IP"); ip != "" {
		cfg.ExternalIP = ip
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DatabaseURL = dsn
	}
}

func (c *Config) Manual() bool {
	return c.Automation.Mode == "manual"
}

// Interval converts one of the configured interval fields (seconds) to a
// time.Duration; a non-positive value is coerced to 1s so a misconfigured
// TOML file cannot busy-loop a task at 0 interval.
func Interval(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

// StatusBucket classifies a Platform-D status code; unknown codes are
// "other" rather than guessed at.
func (c *Config) StatusBucket(code int) string {
	if name, ok := c.Gate.StatusCodes[code]; ok {
		return name
	}
	return "other"
}

// EnvAccountCredential reads a named platform credential from the
// environment using the PLATFORM_ACCOUNTTAG_FIELD naming convention.
func EnvAccountCredential(platform, accountTag, field string) string {
	key := strings.ToUpper(platform) + "_" + strings.ToUpper(accountTag) + "_" + strings.ToUpper(field)
	return os.Getenv(key)
}
