package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"lanchat/swarm/protocol"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Duration is a time.Duration stored as a Go duration string ("5s", "1m") in the config file.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config represents the configuration for the lanchat application
type Config struct {
	// Default config file location
	configFile string

	Node struct {
		Nickname string `json:"nickname"`
	} `json:"node"`

	// Empty LocalAddress means "resolve from the network interfaces at startup"
	Network struct {
		LocalAddress      string   `json:"local_address"`
		ListenAddress     string   `json:"listen_address"`
		DiscoveryPort     int      `json:"discovery_port"`
		MessagePort       int      `json:"message_port"`
		BroadcastAddress  string   `json:"broadcast_address"`
		BroadcastInterval Duration `json:"broadcast_interval"`
		PeerTimeout       Duration `json:"peer_timeout"`
		DialTimeout       Duration `json:"dial_timeout"`
		ShutdownGrace     Duration `json:"shutdown_grace"`
		ReadBuffer        int      `json:"read_buffer"`
		MetricsAddress    string   `json:"metrics_address"`
	} `json:"network"`

	DataStore struct {
		PeerIndexPath string `json:"peer_index"`
	} `json:"datastore"`
}

// NewEmptyConfig generates a new configuration with default settings
func NewEmptyConfig(configFile string) *Config {
	cfg := &Config{}

	cfg.configFile = configFile

	cfg.Node.Nickname = ""

	cfg.Network.LocalAddress = ""
	cfg.Network.ListenAddress = "0.0.0.0"
	cfg.Network.DiscoveryPort = protocol.DefaultDiscoveryPort
	cfg.Network.MessagePort = protocol.DefaultMessagePort
	cfg.Network.BroadcastAddress = "255.255.255.255"
	cfg.Network.BroadcastInterval = Duration{5 * time.Second}
	cfg.Network.PeerTimeout = Duration{60 * time.Second}
	cfg.Network.DialTimeout = Duration{5 * time.Second}
	cfg.Network.ShutdownGrace = Duration{2 * time.Second}
	cfg.Network.ReadBuffer = 1024
	cfg.Network.MetricsAddress = ""

	cfg.DataStore.PeerIndexPath = "/tmp/lanchat/peers"

	return cfg
}

func NewConfigFromFile(configFile string) (*Config, error) {
	cfg := NewEmptyConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save() error {
	log.Infof("Saving config to %s", c.configFile)

	// We'll marshall our structure to JSON and write it into a file
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0644)
}

// Load reads the config file on top of the current values, so missing keys keep their defaults.
func (c *Config) Load() error {
	log.Infof("Loading config from %s", c.configFile)
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	return nil
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}

// Validate checks the settings a node can't run without.
func (c *Config) Validate() error {
	var errs []error

	if c.Node.Nickname == "" {
		errs = append(errs, errors.New("node.nickname is empty"))
	}
	if !validPort(c.Network.DiscoveryPort) {
		errs = append(errs, fmt.Errorf("network.discovery_port %d out of range", c.Network.DiscoveryPort))
	}
	if !validPort(c.Network.MessagePort) {
		errs = append(errs, fmt.Errorf("network.message_port %d out of range", c.Network.MessagePort))
	}
	if c.Network.BroadcastInterval.Duration <= 0 {
		errs = append(errs, errors.New("network.broadcast_interval must be positive"))
	}
	if c.Network.PeerTimeout.Duration <= 0 {
		errs = append(errs, errors.New("network.peer_timeout must be positive"))
	}

	return errors.Join(errs...)
}
