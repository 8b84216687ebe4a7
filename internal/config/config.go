// Copyright 2023 Kami
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads process configuration from flags, environment and
// an optional file via viper, and watches that file via fsnotify to report
// log-level changes to a callback.
package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of tunables shared by cmd/worldserver and
// cmd/dummyclient. Not every field applies to both processes.
type Config struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Connections   int           `mapstructure:"connections"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	MaxPacketSize int           `mapstructure:"max_packet_size"`
	LogLevel      string        `mapstructure:"log_level"`
	LogPath       string        `mapstructure:"log_path"`
}

// Defaults matches spec.md's stated defaults: loopback port 12345, a 50ms
// application tick, and the 65535-byte packet ceiling.
func Defaults() Config {
	return Config{
		Host:          "127.0.0.1",
		Port:          12345,
		Connections:   1,
		TickInterval:  50 * time.Millisecond,
		MaxPacketSize: 65535,
		LogLevel:      "info",
		LogPath:       "",
	}
}

// Load builds a Config from defaults, an optional config file, environment
// variables prefixed BYTEBORNE_, and CLI flags, in increasing precedence.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	def := Defaults()
	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("connections", def.Connections)
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("max_packet_size", def.MaxPacketSize)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_path", def.LogPath)

	v.SetEnvPrefix("byteborne")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WatchLogLevel re-reads configFile on change and invokes onChange with the
// new log level. It only reports the level; applying it is up to onChange.
// No other field is watched — every other field is fixed for the lifetime
// of the process, matching
// spec.md's non-goals around reliability and live reconfiguration.
func WatchLogLevel(configFile string, onChange func(level string)) error {
	if configFile == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			return
		}
		if lvl := v.GetString("log_level"); lvl != "" {
			onChange(lvl)
		}
	})
	v.WatchConfig()
	return nil
}
