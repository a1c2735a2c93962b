// Package config loads this core's runtime settings with
// github.com/spf13/viper, layered as defaults, then an optional file,
// then environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"raknet-core/protocol"
)

// Config is the fully resolved set of settings a listener or client
// needs to start.
type Config struct {
	Host string
	Port int

	MaxPlayers    int
	PrimaryMotd   string
	SecondaryMotd string
	Gamemode      string
	Version       string
	Protocol      int

	ConnectionTimeout time.Duration
	LogLevel          string
}

// Default returns the built-in settings used when no file or
// environment override is present.
func Default() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              19132,
		MaxPlayers:        10,
		PrimaryMotd:       "RakNet",
		SecondaryMotd:     "Blazingly fast",
		Gamemode:          "Survival",
		Version:           "1.14.60",
		Protocol:          390,
		ConnectionTimeout: protocol.RaknetTimeout,
		LogLevel:          "info",
	}
}

// Load builds a viper instance seeded with Default's values, reads an
// optional config file (if path is non-empty), then overlays
// RAKNET_-prefixed environment variables, and returns the resolved
// Config.
func Load(path string) (Config, error) {
	def := Default()

	v := viper.New()
	v.SetEnvPrefix("RAKNET")
	v.AutomaticEnv()

	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("maxplayers", def.MaxPlayers)
	v.SetDefault("primarymotd", def.PrimaryMotd)
	v.SetDefault("secondarymotd", def.SecondaryMotd)
	v.SetDefault("gamemode", def.Gamemode)
	v.SetDefault("version", def.Version)
	v.SetDefault("protocol", def.Protocol)
	v.SetDefault("connectiontimeout", def.ConnectionTimeout)
	v.SetDefault("loglevel", def.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	return Config{
		Host:              v.GetString("host"),
		Port:              v.GetInt("port"),
		MaxPlayers:        v.GetInt("maxplayers"),
		PrimaryMotd:       v.GetString("primarymotd"),
		SecondaryMotd:     v.GetString("secondarymotd"),
		Gamemode:          v.GetString("gamemode"),
		Version:           v.GetString("version"),
		Protocol:          v.GetInt("protocol"),
		ConnectionTimeout: v.GetDuration("connectiontimeout"),
		LogLevel:          v.GetString("loglevel"),
	}, nil
}
