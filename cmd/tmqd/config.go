package main

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/tmqio/tmq"
)

// fileConfig is the on-disk/env representation of a tmq.Config. Durations
// are expressed in plain milliseconds so no custom mapstructure decode hook
// is needed to unmarshal them with koanf.
type fileConfig struct {
	MaxMessageSize     int `koanf:"max_message_size"`
	MaxStorageSize     int `koanf:"max_storage_size"`
	EndpointCount      int `koanf:"endpoint_count"`
	DefaultSendDelayMS int `koanf:"default_send_delay_ms"`
	DefaultRecvWaitMS  int `koanf:"default_recv_wait_ms"`
}

func defaultFileConfig() fileConfig {
	d := tmq.DefaultConfig()
	return fileConfig{
		MaxMessageSize:     d.MaxMessageSize,
		MaxStorageSize:     d.MaxStorageSize,
		EndpointCount:      d.EndpointCount,
		DefaultSendDelayMS: int(d.DefaultSendDelay / time.Millisecond),
		DefaultRecvWaitMS:  int(d.DefaultRecvWait / time.Millisecond),
	}
}

func (f fileConfig) toTMQConfig() tmq.Config {
	return tmq.Config{
		MaxMessageSize:   f.MaxMessageSize,
		MaxStorageSize:   f.MaxStorageSize,
		EndpointCount:    f.EndpointCount,
		DefaultSendDelay: time.Duration(f.DefaultSendDelayMS) * time.Millisecond,
		DefaultRecvWait:  time.Duration(f.DefaultRecvWaitMS) * time.Millisecond,
	}
}

// loadConfig layers compiled-in defaults, an optional YAML file, and
// TMQD_-prefixed environment variables, in that order of increasing
// precedence — the same precedence the lab-automation sibling of this
// project's teacher uses for its own server configuration.
func loadConfig(path string) (tmq.Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultFileConfig(), "koanf"), nil); err != nil {
		return tmq.Config{}, err
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return tmq.Config{}, err
		}
	}

	envProvider := env.Provider("TMQD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "TMQD_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return tmq.Config{}, err
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return tmq.Config{}, err
	}
	return fc.toTMQConfig(), nil
}

// writeDefaultConfig renders the compiled-in defaults to path as YAML, the
// analogue of multiserver's "mkconf" command: a starting point to hand-edit.
// loadConfig reads the file back from the same path on later runs.
func writeDefaultConfig(path string) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultFileConfig(), "koanf"), nil); err != nil {
		return err
	}
	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
