package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/trickstertwo/xtrack/adapter/httprelay"
	"github.com/trickstertwo/xtrack/adapter/kafkarelay"
	"github.com/trickstertwo/xtrack/adapter/redisstream"
	"github.com/trickstertwo/xtrack/adapter/udprelay"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration: built-in defaults, overlaid by the YAML file,
// overlaid by flags.
type Config struct {
	Relay  string
	Portal string

	HTTP  httprelay.Config
	UDP   udprelay.Config
	Redis redisstream.Config
	Kafka kafkarelay.Config

	Collect CollectConfig

	LogDebug   bool
	LogConsole bool
}

// CollectConfig is where the collect command listens.
type CollectConfig struct {
	HTTPAddr string
	UDPAddr  string
}

type configFile struct {
	Relay  string `yaml:"relay"`
	Portal string `yaml:"portal"`
	Log    struct {
		Debug   bool `yaml:"debug"`
		Console bool `yaml:"console"`
	} `yaml:"log"`
	HTTP struct {
		URL       string `yaml:"url"`
		QueueSize int    `yaml:"queue_size"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"http"`
	UDP struct {
		Addr           string `yaml:"addr"`
		QueueSize      int    `yaml:"queue_size"`
		ReconnectDelay string `yaml:"reconnect_delay"`
	} `yaml:"udp"`
	Redis struct {
		Addr         string `yaml:"addr"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		TLS          bool   `yaml:"tls"`
		Stream       string `yaml:"stream"`
		MaxLenApprox int64  `yaml:"max_len_approx"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Collect struct {
		HTTPAddr string `yaml:"http_addr"`
		UDPAddr  string `yaml:"udp_addr"`
	} `yaml:"collect"`
}

func defaultConfig() Config {
	return Config{
		Relay:  httprelay.RelayName,
		Portal: "fr",
		HTTP:   httprelay.Defaults(),
		UDP:    udprelay.Defaults(),
		Redis:  redisstream.Defaults(),
		Kafka:  kafkarelay.Defaults(),
		Collect: CollectConfig{
			HTTPAddr: "127.0.0.1:8888",
			UDPAddr:  "127.0.0.1:5005",
		},
	}
}

// LoadConfig returns the defaults overlaid with the file at path. An empty path or a
// missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if f.Relay != "" {
		cfg.Relay = f.Relay
	}
	if f.Portal != "" {
		cfg.Portal = f.Portal
	}
	cfg.LogDebug = f.Log.Debug
	cfg.LogConsole = f.Log.Console

	if f.HTTP.URL != "" {
		cfg.HTTP.URL = f.HTTP.URL
	}
	if f.HTTP.QueueSize > 0 {
		cfg.HTTP.QueueSize = f.HTTP.QueueSize
	}
	if cfg.HTTP.Timeout, err = durationOr(f.HTTP.Timeout, cfg.HTTP.Timeout); err != nil {
		return Config{}, fmt.Errorf("http.timeout: %w", err)
	}

	if f.UDP.Addr != "" {
		cfg.UDP.Addr = f.UDP.Addr
	}
	if f.UDP.QueueSize > 0 {
		cfg.UDP.QueueSize = f.UDP.QueueSize
	}
	if cfg.UDP.ReconnectDelay, err = durationOr(f.UDP.ReconnectDelay, cfg.UDP.ReconnectDelay); err != nil {
		return Config{}, fmt.Errorf("udp.reconnect_delay: %w", err)
	}

	if f.Redis.Addr != "" {
		cfg.Redis.Addr = f.Redis.Addr
	}
	cfg.Redis.Username = f.Redis.Username
	cfg.Redis.Password = f.Redis.Password
	cfg.Redis.DB = f.Redis.DB
	cfg.Redis.TLS = f.Redis.TLS
	if f.Redis.Stream != "" {
		cfg.Redis.Stream = f.Redis.Stream
	}
	if f.Redis.MaxLenApprox > 0 {
		cfg.Redis.MaxLenApprox = f.Redis.MaxLenApprox
	}

	if brokers := trimNonEmpty(f.Kafka.Brokers); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
	if f.Kafka.Topic != "" {
		cfg.Kafka.Topic = f.Kafka.Topic
	}

	if f.Collect.HTTPAddr != "" {
		cfg.Collect.HTTPAddr = f.Collect.HTTPAddr
	}
	if f.Collect.UDPAddr != "" {
		cfg.Collect.UDPAddr = f.Collect.UDPAddr
	}
	return cfg, nil
}

// RelayConfig renders the selected relay's settings in the shape its factory reads.
func (c Config) RelayConfig() map[string]any {
	switch c.Relay {
	case httprelay.RelayName:
		return map[string]any{
			"url":        c.HTTP.URL,
			"queue_size": c.HTTP.QueueSize,
			"timeout":    c.HTTP.Timeout,
		}
	case udprelay.RelayName:
		return map[string]any{
			"addr":            c.UDP.Addr,
			"queue_size":      c.UDP.QueueSize,
			"reconnect_delay": c.UDP.ReconnectDelay,
		}
	case redisstream.RelayName:
		return map[string]any{
			"addr":           c.Redis.Addr,
			"username":       c.Redis.Username,
			"password":       c.Redis.Password,
			"db":             c.Redis.DB,
			"tls":            c.Redis.TLS,
			"stream":         c.Redis.Stream,
			"max_len_approx": c.Redis.MaxLenApprox,
			"queue_size":     c.Redis.QueueSize,
		}
	case kafkarelay.RelayName:
		return map[string]any{
			"brokers":    c.Kafka.Brokers,
			"topic":      c.Kafka.Topic,
			"queue_size": c.Kafka.QueueSize,
		}
	default:
		return map[string]any{}
	}
}

func durationOr(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
