package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/lvctl/internal/stubhost"
)

// lvstub config.toml key mapping to stub host settings.
type fileConfig struct {
	Addr            string            `toml:"addr"`
	AdminListenAddr string            `toml:"admin_listen_addr"`
	CorsOrigins     []string          `toml:"cors_origins"`
	AdminToken      string            `toml:"admin_token"`
	IdleTimeoutMS   int64             `toml:"idle_timeout_ms"`
	WriteTimeoutMS  int64             `toml:"write_timeout_ms"`
	MaxPayloadBytes uint32            `toml:"max_payload_bytes"`
	EchoRenames     map[string]string `toml:"echo_renames"`
}

// loadStubConfig overlays keys present in path onto stubhost.DefaultConfig.
func loadStubConfig(path string) (stubhost.Config, error) {
	cfg := stubhost.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return stubhost.Config{}, fmt.Errorf("load lvstub config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return stubhost.Config{}, fmt.Errorf("load lvstub config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("idle_timeout_ms") {
		if raw.IdleTimeoutMS < 0 {
			return stubhost.Config{}, fmt.Errorf("load lvstub config: idle_timeout_ms must not be negative")
		}
		cfg.IdleTimeout = time.Duration(raw.IdleTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("write_timeout_ms") {
		if raw.WriteTimeoutMS <= 0 {
			return stubhost.Config{}, fmt.Errorf("load lvstub config: write_timeout_ms must be positive")
		}
		cfg.WriteTimeout = time.Duration(raw.WriteTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("max_payload_bytes") {
		cfg.Limits.MaxPayloadBytes = raw.MaxPayloadBytes
	}
	if meta.IsDefined("echo_renames") {
		cfg.EchoRenames = raw.EchoRenames
	}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return stubhost.Config{}, fmt.Errorf("load lvstub config: addr is required")
	}
	return cfg.WithDefaults(), nil
}
