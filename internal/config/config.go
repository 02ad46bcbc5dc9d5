// Package config holds the server's tunable settings: operational knobs
// come from flags and env, gameplay and rail tuning from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`

	Chat ChatConfig `yaml:"chat"`
	Rail RailConfig `yaml:"rail"`
}

type ChatConfig struct {
	HistoryCap        int `yaml:"history_cap"`
	RateWindowSeconds int `yaml:"rate_window_seconds"`
	RateMax           int `yaml:"rate_max"`
}

type RailConfig struct {
	RPCURL       string `yaml:"rpc_url"`
	TokenAddress string `yaml:"token_address"`
	PayoutWallet string `yaml:"payout_wallet"`
	// Name of the env var holding the payout key; the key itself never
	// lives in the file.
	PrivateKeyEnv  string `yaml:"private_key_env"`
	TokenDecimals  int32  `yaml:"token_decimals"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
}

func Default() Config {
	return Config{
		Listen:  "127.0.0.1:8080",
		DataDir: "data",
		Chat: ChatConfig{
			HistoryCap:        1000,
			RateWindowSeconds: 60,
			RateMax:           30,
		},
		Rail: RailConfig{
			PrivateKeyEnv:  "FRENZY_PAYOUT_KEY",
			TokenDecimals:  18,
			TimeoutSeconds: 10,
			Retries:        3,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults stand.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c ChatConfig) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

func (c RailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PrivateKey resolves the payout key from the configured env var; empty
// means the rail runs read-only.
func (c RailConfig) PrivateKey() string {
	if c.PrivateKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.PrivateKeyEnv)
}
