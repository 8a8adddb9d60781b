package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/chaos"
	"main/internal/risk"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchange    string              `json:"exchange"`
	StartCash   decimal.Decimal     `json:"startCash"`
	FeeRate     decimal.Decimal     `json:"feeRate"`
	Instruments []schema.Instrument `json:"instruments"`
	Risk        risk.Config         `json:"risk"`
	Strategy    StrategyConfig      `json:"strategy"`
	Execution   ExecutionConfig     `json:"execution"`
	Source      SourceConfig        `json:"source"`
	Journal     JournalConfig       `json:"journal"`
	Ledger      LedgerConfig        `json:"ledger"`
	Remote      RemoteConfig        `json:"remote"`
	Profiling   ProfilingConfig     `json:"profiling"`
}

// StrategyConfig selects the local strategy and its parameters.
type StrategyConfig struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ExecutionConfig configures the execution engine and plugin host.
type ExecutionConfig struct {
	PluginDir        string `json:"pluginDir"`
	StateDir         string `json:"stateDir"`
	CallTimeoutMS    int    `json:"callTimeoutMs"`
	DefaultAlgorithm string `json:"defaultAlgorithm"`
}

// CallTimeout returns the configured per-call deadline.
func (c ExecutionConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

// SourceMode selects where events come from.
type SourceMode string

const (
	SourceReplay    SourceMode = "replay"
	SourceLive      SourceMode = "live"
	SourceSynthetic SourceMode = "synthetic"
)

// SyntheticConfig shapes the generated random walk.
type SyntheticConfig struct {
	BasePrice  decimal.Decimal `json:"basePrice"`
	Step       decimal.Decimal `json:"step"`
	IntervalMS int             `json:"intervalMs"`
	Count      int             `json:"count"`
	Seed       int64           `json:"seed"`
}

// Interval returns the spacing between generated events.
func (c SyntheticConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// SourceConfig configures the event source.
type SourceConfig struct {
	Mode SourceMode `json:"mode"`
	// ReplayDir holds journal segments for replay mode.
	ReplayDir string `json:"replayDir"`
	// Speed scales replay pacing. Zero replays as fast as possible.
	Speed float64 `json:"speed"`
	// Symbols are subscribed on the live feed.
	Symbols []string `json:"symbols"`
	// QueueSize bounds the live ingest queue.
	QueueSize int `json:"queueSize"`
	// TimerIntervalMS injects timer events on the live feed.
	TimerIntervalMS int `json:"timerIntervalMs"`
	// Synthetic shapes the generated stream in synthetic mode.
	Synthetic SyntheticConfig `json:"synthetic"`
	// Chaos optionally perturbs the stream for fault rehearsal.
	Chaos chaos.Config `json:"chaos"`
}

// TimerInterval returns the configured timer cadence.
func (c SourceConfig) TimerInterval() time.Duration {
	return time.Duration(c.TimerIntervalMS) * time.Millisecond
}

// JournalConfig configures the event write-ahead journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// LedgerBackend selects the ledger storage driver.
type LedgerBackend string

const (
	LedgerMemory   LedgerBackend = "memory"
	LedgerFile     LedgerBackend = "file"
	LedgerPostgres LedgerBackend = "postgres"
)

// LedgerConfig configures ledger persistence.
type LedgerConfig struct {
	Backend LedgerBackend  `json:"backend"`
	Dir     string         `json:"dir"`
	PG      PostgresConfig `json:"pg"`
}

// PostgresConfig carries connection settings for the postgres ledger.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// RemoteConfig configures the remote strategy adapter.
type RemoteConfig struct {
	Enabled          bool            `json:"enabled"`
	Socket           string          `json:"socket"`
	Symbols          []string        `json:"symbols"`
	InitConfig       json.RawMessage `json:"initConfig,omitempty"`
	RequestTimeoutMS int             `json:"requestTimeoutMs"`
	HeartbeatMS      int             `json:"heartbeatMs"`
	MissedThreshold  int             `json:"missedThreshold"`
	MaxAttempts      int             `json:"maxAttempts"`
}

// RequestTimeout returns the per-request deadline.
func (c RemoteConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// HeartbeatInterval returns the heartbeat cadence.
func (c RemoteConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatMS) * time.Millisecond
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	PyroscopeURL string `json:"pyroscopeUrl"`
	AppName      string `json:"appName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	File     FileConfig
	Registry *schema.Registry
}

func (c FileConfig) withDefaults() FileConfig {
	if c.Exchange == "" {
		c.Exchange = "paper"
	}
	if c.StartCash.IsZero() {
		c.StartCash = decimal.NewFromInt(10000)
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "median_cross"
	}
	if c.Source.Mode == "" {
		c.Source.Mode = SourceReplay
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = LedgerMemory
	}
	return c
}

// Validate rejects configurations that cannot possibly run.
func (c FileConfig) Validate() error {
	switch c.Source.Mode {
	case SourceReplay:
		if c.Source.ReplayDir == "" {
			return fmt.Errorf("source.replayDir is required in replay mode")
		}
	case SourceLive, SourceSynthetic:
		if len(c.Source.Symbols) == 0 {
			return fmt.Errorf("source.symbols is required in %s mode", c.Source.Mode)
		}
	default:
		return fmt.Errorf("unknown source mode: %s", c.Source.Mode)
	}
	if err := c.Source.Chaos.Validate(); err != nil {
		return fmt.Errorf("source.chaos: %w", err)
	}

	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerFile:
		if c.Ledger.Dir == "" {
			return fmt.Errorf("ledger.dir is required for the file backend")
		}
	case LedgerPostgres:
		if c.Ledger.PG.Database == "" {
			return fmt.Errorf("ledger.pg.database is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend: %s", c.Ledger.Backend)
	}

	if c.Journal.Enabled && c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir is required when the journal is enabled")
	}
	if c.Remote.Enabled && c.Remote.Socket == "" {
		return fmt.Errorf("remote.socket is required when the remote adapter is enabled")
	}
	if c.FeeRate.Sign() < 0 {
		return fmt.Errorf("feeRate must not be negative")
	}
	return nil
}

// Load reads a JSON config file, applies defaults, validates it and builds
// the instrument registry.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Loaded{}, err
	}

	registry := schema.NewRegistry()
	for _, inst := range cfg.Instruments {
		if inst.Exchange == "" {
			inst.Exchange = cfg.Exchange
		}
		if err := registry.Add(inst); err != nil {
			return Loaded{}, err
		}
	}
	return Loaded{File: cfg, Registry: registry}, nil
}
