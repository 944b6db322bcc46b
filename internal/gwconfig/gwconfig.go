// Package gwconfig defines the structured configuration records the
// gateway process needs. Loading them from the environment is the only
// responsibility kept in-core (via github.com/caarlos0/env/v9); the CLI
// argument / INI-file layer that produces these values before env.Parse
// runs is an external collaborator (spec §1 Non-goals).
package gwconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config is the top-level structured configuration loaded at process
// start. Fatal on parse error, per spec §7 "Configuration errors".
//
// Connectors and Routes are populated by the external CLI/INI-file loader
// (spec §1 Non-goals) and assigned into Config after Load returns (cmd/smppgw
// does this from its topology file); Load only fills HTTP/Redis/Queue/LogLevel
// from the environment.
type Config struct {
	HTTP       HTTPConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Connectors []ConnectorConfig
	Routes     []RouteConfig
	LogLevel   string `env:"GW_LOG_LEVEL" envDefault:"info"`
}

// Load fills the env-tagged fields of cfg from the process environment.
// Fatal to the caller on error, per spec §7.
func Load(cfg *Config) error {
	if err := env.Parse(&cfg.HTTP); err != nil {
		return fmt.Errorf("gwconfig: parsing http config: %w", err)
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return fmt.Errorf("gwconfig: parsing redis config: %w", err)
	}
	if err := env.Parse(&cfg.Queue); err != nil {
		return fmt.Errorf("gwconfig: parsing queue config: %w", err)
	}
	logLevel := struct {
		LogLevel string `env:"GW_LOG_LEVEL" envDefault:"info"`
	}{}
	if err := env.Parse(&logLevel); err != nil {
		return fmt.Errorf("gwconfig: parsing log level: %w", err)
	}
	cfg.LogLevel = logLevel.LogLevel
	return nil
}

// HTTPConfig configures the chi-routed HTTP front.
type HTTPConfig struct {
	Host string `env:"GW_HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"GW_HTTP_PORT" envDefault:"8080"`
}

// RedisConfig configures the KV store used for DLR correlation and
// multipart reassembly (spec §1 "key/value store").
type RedisConfig struct {
	URL string `env:"GW_REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// QueueConfig configures the NATS JetStream queue transport (spec §1
// "queue transport").
type QueueConfig struct {
	URL    string `env:"GW_NATS_URL" envDefault:"nats://localhost:4222"`
	Prefix string `env:"GW_QUEUE_PREFIX" envDefault:""`
	Suffix string `env:"GW_QUEUE_SUFFIX" envDefault:""`
}

// ConnectorConfig is the immutable-for-lifetime configuration of one SMSC
// connector (spec §3 "Connector").
type ConnectorConfig struct {
	Name       string `env:"NAME"`
	Addr       string `env:"ADDR"`
	SystemID   string `env:"SYSTEM_ID"`
	Password   string `env:"PASSWORD"`
	SystemType string `env:"SYSTEM_TYPE"`
	AddrTon    int    `env:"ADDR_TON" envDefault:"0"`
	AddrNpi    int    `env:"ADDR_NPI" envDefault:"0"`
	AddrRange  string `env:"ADDR_RANGE"`

	// Connector parameter overlay (spec §4.5 "Connector parameter
	// overlay"), applied unless the target field name is in the MT
	// event's locked list.
	ProtocolID           int    `env:"PROTOCOL_ID" envDefault:"0"`
	ReplaceIfPresentFlag int    `env:"REPLACE_IF_PRESENT_FLAG" envDefault:"0"`
	DestAddrTon          int    `env:"DEST_ADDR_TON" envDefault:"1"`
	SourceAddrNpi        int    `env:"SOURCE_ADDR_NPI" envDefault:"1"`
	DestAddrNpi          int    `env:"DEST_ADDR_NPI" envDefault:"1"`
	ServiceType          string `env:"SERVICE_TYPE"`
	SourceAddrTon        int    `env:"SOURCE_ADDR_TON" envDefault:"2"`
	SmDefaultMsgID       int    `env:"SM_DEFAULT_MSG_ID" envDefault:"0"`

	BindTimeout        time.Duration `env:"BIND_TIMEOUT" envDefault:"150ms"`
	SubmitTimeout      time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"500ms"`
	EnquireLinkPeriod  time.Duration `env:"ENQUIRE_LINK_PERIOD" envDefault:"30s"`
	EnquireLinkTimeout time.Duration `env:"ENQUIRE_LINK_TIMEOUT" envDefault:"150ms"`
	ReconnectDelay     time.Duration `env:"RECONNECT_DELAY" envDefault:"30s"`
	ConnLossRetry      bool          `env:"CONN_LOSS_RETRY" envDefault:"true"`

	QueuePrefetch int    `env:"QUEUE_PREFETCH" envDefault:"1"`
	DLRExpiry     time.Duration `env:"DLR_EXPIRY" envDefault:"86400s"`
	ReassemblyMode string `env:"REASSEMBLY_MODE" envDefault:"lenient"`
	ReassemblyTTL time.Duration `env:"REASSEMBLY_TTL" envDefault:"300s"`

	// SplitMethod picks the multipart splitting convention used for long
	// MT content (spec §4.5 "Two splitting methods are supported; the
	// default is UDH"): "udh" or "sar".
	SplitMethod string `env:"SPLIT_METHOD" envDefault:"udh"`
}

// RouteConfig is one entry in the ordered route table (spec §4.4).
type RouteConfig struct {
	Priority int            `env:"PRIORITY"`
	Type     string         `env:"TYPE"` // "static" | "default" | "smartrr"
	Targets  []string       `env:"TARGETS" envSeparator:","`
	Filters  []FilterConfig `env:"-"`
}

// FilterConfig is one polymorphic filter reference attached to a route
// (spec §4.4 "Filter kinds").
type FilterConfig struct {
	Kind    string `env:"KIND"` // transparent | connector | source_addr | dest_addr | short_message | tag
	Pattern string `env:"PATTERN,omitempty"`
	Value   string `env:"VALUE,omitempty"`
}
