package core

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 53
	DefaultUpstreamTimeout = 3 * time.Second
	DefaultStatsInterval   = 10 * time.Second
	DefaultProbeTimeout    = 1 * time.Second
	DefaultSpoofTTL        = 60
	DefaultAttempts        = 100
	DefaultConcurrency     = 32
	DefaultProbeName       = "google.com"
	fallbackUpstream       = "8.8.8.8"
)

// ResolvConfPath is where the system nameservers are read from when no
// upstream is configured.
var ResolvConfPath = "/etc/resolv.conf"

// Duration accepts Go duration strings ("3s", "500ms") in YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("duration must be a string or integer nanoseconds: %w", err)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the typed configuration shared by every command.
type Config struct {
	Interface       string   `json:"interface" yaml:"interface"`
	IP              string   `json:"ip" yaml:"ip"`
	Port            int      `json:"port" yaml:"port"`
	TCP             bool     `json:"tcp" yaml:"tcp"`
	Upstream        []string `json:"upstream" yaml:"upstream"`
	UpstreamTimeout Duration `json:"upstream_timeout" yaml:"upstream_timeout"`
	SpoofTTL        uint32   `json:"spoof_ttl" yaml:"spoof_ttl"`
	StatsInterval   Duration `json:"stats_interval" yaml:"stats_interval"`
	SpoofFile       string   `json:"spoof_file" yaml:"spoof_file"`
	Spoof           []string `json:"spoof" yaml:"spoof"`
	Domains         []string `json:"domains" yaml:"domains"`
	Redirect        string   `json:"redirect" yaml:"redirect"`

	Nameserver  string   `json:"nameserver" yaml:"nameserver"`
	Network     string   `json:"network" yaml:"network"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
	Attempts    int      `json:"attempts" yaml:"attempts"`
	PoisonRate  float64  `json:"poison_rate" yaml:"poison_rate"`
	Concurrency int      `json:"concurrency" yaml:"concurrency"`
	ProbeName   string   `json:"probe_name" yaml:"probe_name"`

	Output      string `json:"output" yaml:"output"`
	LogFile     string `json:"log_file" yaml:"log_file"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	AdminListen string `json:"admin_listen" yaml:"admin_listen"`
	// AdminOrigins enables CORS on the admin API for these browser origins.
	AdminOrigins []string `json:"admin_origins" yaml:"admin_origins"`
}

// LoadConfig reads a YAML (.yaml/.yml) or JSON config file. Defaults are not
// applied.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	defer f.Close()
	var cfg Config
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.NewDecoder(f).Decode(&cfg)
	} else {
		err = json.NewDecoder(f).Decode(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return &cfg, nil
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.UpstreamTimeout == 0 {
		c.UpstreamTimeout = Duration(DefaultUpstreamTimeout)
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = Duration(DefaultStatsInterval)
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultProbeTimeout)
	}
	if c.SpoofTTL == 0 {
		c.SpoofTTL = DefaultSpoofTTL
	}
	if c.Attempts == 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ProbeName == "" {
		c.ProbeName = DefaultProbeName
	}
	if len(c.Upstream) == 0 {
		c.Upstream = SystemNameservers()
	}
}

// Validate reports configuration errors that must stop a command before it
// touches the network.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.IP != "" && net.ParseIP(c.IP) == nil {
		return fmt.Errorf("%w: bind ip %q is not an address", ErrInvalidConfig, c.IP)
	}
	if c.Redirect != "" && net.ParseIP(c.Redirect).To4() == nil {
		return fmt.Errorf("%w: redirect %q is not an IPv4 address", ErrInvalidConfig, c.Redirect)
	}
	if c.Attempts < 0 {
		return fmt.Errorf("%w: attempts must be positive", ErrInvalidConfig)
	}
	if c.PoisonRate < 0 {
		return fmt.Errorf("%w: poison_rate must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SystemNameservers returns the resolvers listed in ResolvConfPath, falling
// back to a public resolver when the file is missing or empty.
func SystemNameservers() []string {
	cc, err := dns.ClientConfigFromFile(ResolvConfPath)
	if err != nil || len(cc.Servers) == 0 {
		return []string{fallbackUpstream}
	}
	servers := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		servers = append(servers, net.JoinHostPort(s, cc.Port))
	}
	return servers
}

// NameserverAddr appends the default DNS port when addr carries none.
func NameserverAddr(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), "53")
}
