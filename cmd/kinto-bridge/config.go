package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileConfig is the optional HCL configuration file. Flags and KINTO_*
// environment variables take precedence over it.
type FileConfig struct {
	Remote   string            `hcl:"remote,optional"`
	Timeout  string            `hcl:"timeout,optional"`
	Retry    *int              `hcl:"retry,optional"`
	Token    string            `hcl:"token,optional"`
	LogLevel string            `hcl:"log_level,optional"`
	Headers  map[string]string `hcl:"headers,optional"`
}

// initConfig loads env files and binds environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("kinto")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadFileConfig decodes path and registers its values as viper defaults,
// so that they sit under flags and environment variables.
func loadFileConfig(path string) (*FileConfig, error) {
	var cfg FileConfig
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Remote != "" {
		viper.SetDefault("remote", cfg.Remote)
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return nil, fmt.Errorf("invalid timeout %q in %s: %w", cfg.Timeout, path, err)
		}
		viper.SetDefault("timeout", cfg.Timeout)
	}
	if cfg.Retry != nil {
		viper.SetDefault("retry", *cfg.Retry)
	}
	if cfg.Token != "" {
		viper.SetDefault("token", cfg.Token)
	}
	if cfg.LogLevel != "" {
		viper.SetDefault("log-level", cfg.LogLevel)
	}
	return &cfg, nil
}

// parseHeaders turns "Name: value" pairs into a header set.
func parseHeaders(pairs []string) (http.Header, error) {
	headers := http.Header{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", pair)
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers, nil
}
