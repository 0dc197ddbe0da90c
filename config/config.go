// Package config holds every setting of the uckit tools. Values come from
// built-in defaults, then uckit.yaml, then command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "uckit.yaml"

type Config struct {
	Log         Log         `yaml:"log"`
	Connect     Connect     `yaml:"connect"`
	Probe       Probe       `yaml:"probe"`
	History     History     `yaml:"history"`
	Onboarding  Onboarding  `yaml:"onboarding"`
	Discovery   Discovery   `yaml:"discovery"`
	CallQuality CallQuality `yaml:"callquality"`
	AXL         AXL         `yaml:"axl"`
	Server      Server      `yaml:"server"`
	MTPutty     MTPutty     `yaml:"mtputty"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type Connect struct {
	SSHPort     int           `yaml:"ssh_port"`
	TelnetPort  int           `yaml:"telnet_port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// CommandTimeout bounds each prompt wait.
	CommandTimeout        time.Duration `yaml:"command_timeout"`
	FallbackOnAuthFailure bool          `yaml:"fallback_on_auth_failure"`
}

type Probe struct {
	// Method is "ping" or "tcp".
	Method     string        `yaml:"method"`
	Count      int           `yaml:"count"`
	MinReplies int           `yaml:"min_replies"`
	Timeout    time.Duration `yaml:"timeout"`
	TCPPort    int           `yaml:"tcp_port"`
}

// History is the optional SQLite run history; an empty Path disables it.
type History struct {
	Path string `yaml:"path,omitempty"`
}

type Onboarding struct {
	Inventory       string `yaml:"inventory"`
	ReportDir       string `yaml:"report_dir"`
	LoggingServer   string `yaml:"logging_server"`
	SNMPCommunity   Secret `yaml:"snmp_community"`
	AXLUsername     string `yaml:"axl_username"`
	ACGName         string `yaml:"acg_name"`
	ACLName         string `yaml:"acl_name,omitempty"`
	PAWSAccount     string `yaml:"paws_account"`
	PAWSPassword    Secret `yaml:"paws_password"`
	PAWSDescription string `yaml:"paws_description"`
}

type Discovery struct {
	Inventory    string `yaml:"inventory"`
	ReportDir    string `yaml:"report_dir"`
	Initials     string `yaml:"initials,omitempty"`
	ConfigSource string `yaml:"config_source"`
	ConfigDir    string `yaml:"config_dir"`
	InventoryDir string `yaml:"inventory_dir"`
	Debug        bool   `yaml:"debug"`
}

type CallQuality struct {
	Host     string `yaml:"host,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password Secret `yaml:"password"`
	Secret   Secret `yaml:"secret"`
	// Schedule is seconds, a duration or a cron expression.
	Schedule string `yaml:"schedule"`
	LogFile  string `yaml:"log_file"`
}

type AXL struct {
	URL                string        `yaml:"url,omitempty"`
	Version            string        `yaml:"version"`
	Username           string        `yaml:"username,omitempty"`
	Password           Secret        `yaml:"password"`
	CAFile             string        `yaml:"ca_file,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

type Server struct {
	Listen string `yaml:"listen"`
	// JWTSecret, when set, requires bearer tokens on the API routes.
	JWTSecret Secret        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type MTPutty struct {
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	DisplayName string `yaml:"display_name"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Connect: Connect{
			SSHPort:        22,
			TelnetPort:     23,
			DialTimeout:    10 * time.Second,
			CommandTimeout: 60 * time.Second,
		},
		Probe: Probe{Method: "ping", Count: 2, MinReplies: 1, Timeout: 2 * time.Second, TCPPort: 22},
		Onboarding: Onboarding{
			Inventory:       "DeviceList.csv",
			ReportDir:       ".",
			PAWSDescription: "ANMMS-Monitoring",
		},
		Discovery: Discovery{
			Inventory:    "DeviceList.csv",
			ReportDir:    ".",
			ConfigSource: "cli",
			ConfigDir:    "DeviceConfigs",
			InventoryDir: "DeviceInventories",
		},
		CallQuality: CallQuality{Schedule: "30", LogFile: "CallQualityLog.csv"},
		AXL:         AXL{Version: "12.5", Timeout: 30 * time.Second},
		Server:      Server{Listen: "127.0.0.1:5000", TokenTTL: time.Hour},
		MTPutty:     MTPutty{Input: "DeviceList.csv", Output: "import_this.xml", DisplayName: "Voice Gateways"},
	}
}

// SearchPaths lists where Load looks for uckit.yaml when no path is given.
func SearchPaths() []string {
	paths := []string{filepath.Join("/etc/uckit", FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config/uckit", FileName))
	}
	return append(paths, FileName)
}

// Load reads path, or the first file found in SearchPaths when path is
// empty, over the defaults. No file at all is not an error. It returns the
// file actually used.
func Load(path string) (*Config, string, error) {
	if path == "" {
		for _, c := range SearchPaths() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := Default()
	if path == "" {
		return &cfg, "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, path, nil
}

// Parse decodes YAML over cfg, rejecting unknown keys.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings every tool shares.
func (c *Config) Validate() error {
	var errs []error
	if c.Connect.SSHPort <= 0 || c.Connect.SSHPort > 65535 {
		errs = append(errs, fmt.Errorf("connect.ssh_port %d out of range", c.Connect.SSHPort))
	}
	if c.Connect.TelnetPort <= 0 || c.Connect.TelnetPort > 65535 {
		errs = append(errs, fmt.Errorf("connect.telnet_port %d out of range", c.Connect.TelnetPort))
	}
	switch c.Probe.Method {
	case "ping", "tcp":
	default:
		errs = append(errs, fmt.Errorf("probe.method must be ping or tcp, got %q", c.Probe.Method))
	}
	if c.Probe.MinReplies > c.Probe.Count {
		errs = append(errs, fmt.Errorf("probe.min_replies %d exceeds probe.count %d", c.Probe.MinReplies, c.Probe.Count))
	}
	return errors.Join(errs...)
}

// ValidateOnboarding checks what the onboarding run needs.
func (c *Config) ValidateOnboarding() error {
	o := c.Onboarding
	var errs []error
	if o.LoggingServer == "" {
		errs = append(errs, errors.New("onboarding.logging_server is required"))
	}
	if o.AXLUsername == "" {
		errs = append(errs, errors.New("onboarding.axl_username is required"))
	}
	if o.ACGName == "" {
		errs = append(errs, errors.New("onboarding.acg_name is required"))
	}
	if o.PAWSAccount == "" {
		errs = append(errs, errors.New("onboarding.paws_account is required"))
	}
	if !o.SNMPCommunity.IsSet() {
		errs = append(errs, errors.New("onboarding.snmp_community needs a value, an env or a file source"))
	}
	if !o.PAWSPassword.IsSet() {
		errs = append(errs, errors.New("onboarding.paws_password needs a value, an env or a file source"))
	}
	return errors.Join(errs...)
}

// ValidateAXL checks what the proxy needs before it may listen.
func (c *Config) ValidateAXL() error {
	var errs []error
	if c.AXL.URL == "" {
		errs = append(errs, errors.New("axl.url is required"))
	}
	if c.AXL.Username == "" {
		errs = append(errs, errors.New("axl.username is required"))
	}
	if !c.AXL.Password.IsSet() {
		errs = append(errs, errors.New("axl.password needs a value, an env or a file source"))
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	return errors.Join(errs...)
}
