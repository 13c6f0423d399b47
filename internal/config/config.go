// Package config defines the deployer's configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by TICKETDEPLOY_* environment variables.
type Config struct {
	Chain    ChainConfig             `toml:"chain"`
	Wallet   WalletConfig            `toml:"wallet"`
	Contract ContractConfig          `toml:"contract"`
	Deploy   DeployConfig            `toml:"deploy"`
	Presets  map[string]PresetConfig `toml:"presets"`
	Database DatabaseConfig          `toml:"database"`
	Redis    RedisConfig             `toml:"redis"`
	S3       S3Config                `toml:"s3"`
	Notify   NotifyConfig            `toml:"notify"`
	Mode     string                  `toml:"mode"`
	LogLevel string                  `toml:"log_level"`
}

// ChainConfig selects the network and transaction fee policy.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// ChainID, when non-zero, must match what the node reports.
	ChainID          int64    `toml:"chain_id"`
	GasLimit         uint64   `toml:"gas_limit"`
	GasMarginPercent uint64   `toml:"gas_margin_percent"`
	MaxFeeGwei       string   `toml:"max_fee_gwei"`
	ReceiptTimeout   duration `toml:"receipt_timeout"`
	PollInterval     duration `toml:"poll_interval"`
}

// WalletConfig holds the deployer key sources.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ContractConfig points at the compiled EventTicketSystem artifact.
type ContractConfig struct {
	ArtifactPath string `toml:"artifact_path"`
}

// DeployConfig controls a single deployment run.
type DeployConfig struct {
	Preset        string   `toml:"preset"`
	Locale        string   `toml:"locale"`
	TimeZone      string   `toml:"time_zone"`
	Exclusive     bool     `toml:"exclusive"`
	LockTTL       duration `toml:"lock_ttl"`
	ArchivePrefix string   `toml:"archive_prefix"`
	BusChannel    string   `toml:"bus_channel"`
	BusStream     string   `toml:"bus_stream"`
	HistoryLimit  int      `toml:"history_limit"`

	// HistorySource is "database" or "stream". HistoryID and HistoryAddress
	// narrow the listing to one record or one contract.
	HistorySource  string `toml:"history_source"`
	HistoryID      string `toml:"history_id"`
	HistoryAddress string `toml:"history_address"`
}

// PresetConfig declares an additional named parameter set. InitialPrice is
// a decimal string in ETH so it is never routed through a float.
type PresetConfig struct {
	EventName             string `toml:"event_name"`
	EventSymbol           string `toml:"event_symbol"`
	EventStart            int64  `toml:"event_start"`
	TicketSupply          uint64 `toml:"ticket_supply"`
	InitialPrice          string `toml:"initial_price"`
	MaxPriceFactorPercent uint64 `toml:"max_price_factor_percent"`
	TransferFeePercent    uint64 `toml:"transfer_fee_percent"`
}

// Params converts the preset into deployment parameters.
func (p PresetConfig) Params() (domain.DeploymentParams, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(p.InitialPrice))
	if err != nil {
		return domain.DeploymentParams{}, fmt.Errorf("initial_price %q: %w", p.InitialPrice, err)
	}
	return domain.DeploymentParams{
		EventName:             p.EventName,
		EventSymbol:           p.EventSymbol,
		EventStart:            p.EventStart,
		TicketSupply:          p.TicketSupply,
		InitialPrice:          price,
		MaxPriceFactorPercent: p.MaxPriceFactorPercent,
		TransferFeePercent:    p.TransferFeePercent,
	}, nil
}

// DatabaseConfig holds PostgreSQL connection parameters for the deployment
// history.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the deploy lock and the
// event bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	LockPrefix string `toml:"lock_prefix"`
	StreamLen  int64  `toml:"stream_max_len"`
}

// S3Config holds object storage parameters for manifest archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration decodes TOML strings such as "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration used for anything the file leaves out.
// There is deliberately no default preset.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:           "http://127.0.0.1:8545",
			GasMarginPercent: 20,
			ReceiptTimeout:   duration{5 * time.Minute},
			PollInterval:     duration{2 * time.Second},
		},
		Contract: ContractConfig{
			ArtifactPath: "build/contracts/EventTicketSystem.json",
		},
		Deploy: DeployConfig{
			Locale:        "pt-BR",
			TimeZone:      "UTC",
			LockTTL:       duration{10 * time.Minute},
			ArchivePrefix: "deployments",
			BusChannel:    "ticketdeploy:deployments",
			BusStream:     "ticketdeploy:deployments:log",
			HistoryLimit:  20,
			HistorySource: "database",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "ticketdeploy",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			LockPrefix: "ticketdeploy:lock:",
			StreamLen:  1000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "ticketdeploy-manifests",
			ForcePathStyle: true,
		},
		Mode:     "deploy",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"deploy":      true,
	"plan":        true,
	"presets":     true,
	"history":     true,
	"encrypt-key": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsChain reports whether the mode talks to an RPC node.
func (c *Config) NeedsChain() bool {
	return c.Mode == "deploy" || c.Mode == "plan"
}

// Validate checks Config for missing or invalid values and returns a single
// error listing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[c.Mode] {
		add("unknown mode %q (valid: deploy, plan, presets, history, encrypt-key)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.NeedsChain() {
		if strings.TrimSpace(c.Deploy.Preset) == "" {
			add("deploy: preset must be chosen explicitly for mode %s", c.Mode)
		}
		if c.Chain.RPCURL == "" {
			add("chain: rpc_url must not be empty")
		}
		if c.Chain.ChainID < 0 {
			add("chain: chain_id must not be negative")
		}
		if c.Chain.ReceiptTimeout.Duration <= 0 {
			add("chain: receipt_timeout must be positive")
		}
		if c.Chain.MaxFeeGwei != "" {
			if v, err := decimal.NewFromString(c.Chain.MaxFeeGwei); err != nil || !v.IsPositive() {
				add("chain: max_fee_gwei must be a positive decimal, got %q", c.Chain.MaxFeeGwei)
			}
		}
		if c.Contract.ArtifactPath == "" {
			add("contract: artifact_path must not be empty")
		}
	}

	if c.Mode == "deploy" || c.Mode == "encrypt-key" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			add("wallet: either private_key or encrypted_key_path must be set for mode %s", c.Mode)
		}
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Mode == "encrypt-key" && (c.Wallet.PrivateKey == "" || c.Wallet.EncryptedKeyPath == "") {
		add("wallet: encrypt-key needs both private_key and encrypted_key_path")
	}

	for name, p := range c.Presets {
		if _, err := p.Params(); err != nil {
			add("presets.%s: %v", name, err)
		}
	}

	if c.Deploy.Exclusive && !c.Redis.Enabled {
		add("deploy: exclusive requires redis.enabled")
	}
	if c.Deploy.Exclusive && c.Deploy.LockTTL.Duration <= 0 {
		add("deploy: lock_ttl must be positive")
	}
	if c.Mode == "history" {
		switch c.Deploy.HistorySource {
		case "database":
			if !c.Database.Enabled {
				add("database: history mode requires database.enabled")
			}
		case "stream":
			if !c.Redis.Enabled {
				add("redis: history from the stream requires redis.enabled")
			}
		default:
			add("deploy: unknown history_source %q (valid: database, stream)", c.Deploy.HistorySource)
		}
		if c.Deploy.HistoryID != "" && c.Deploy.HistoryAddress != "" {
			add("deploy: history_id and history_address are mutually exclusive")
		}
	}

	if c.Database.Enabled && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			add("database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			add("database: port must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.Database == "" {
			add("database: database must not be empty")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis: addr must not be empty")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
