package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the client configuration: $HOME/.fridgechef/config.yaml,
// FRIDGECHEF_* environment variables and command-line flags, in rising
// order of precedence.
type Config struct {
	ServerURL   string        `mapstructure:"server_url"`
	AppID       string        `mapstructure:"app_id"`
	StateFile   string        `mapstructure:"state_file"`
	LogLevel    string        `mapstructure:"log_level"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"server":    "server_url",
	"app-id":    "app_id",
	"state":     "state_file",
	"log-level": "log_level",
}

func addConfigFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("config", "", "config file (default $HOME/.fridgechef/config.yaml)")
	fs.String("server", "", "backend base URL")
	fs.String("app-id", "", "app id sent as X-App-ID")
	fs.String("state", "", "local state file")
	fs.String("log-level", "", "debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	setDefaults(v)

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FRIDGECHEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.ServerURL == "" {
		return Config{}, errors.New("server_url is required")
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("app_id", "fridgechef")
	v.SetDefault("state_file", filepath.Join(configDir(), "state.json"))
	v.SetDefault("log_level", "warn")
	v.SetDefault("auth_timeout", "2.5s")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fridgechef")
}
