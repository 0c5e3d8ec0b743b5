// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/ratewait/internal/ratelimit"
	"github.com/ManuGH/ratewait/internal/ratelimit/store"
	"github.com/ManuGH/ratewait/internal/telemetry"
)

// Config is the complete daemon configuration.
type Config struct {
	Version string `yaml:"-"`

	ListenAddr      string        `yaml:"listenAddr"`
	LogLevel        string        `yaml:"logLevel"`
	LogService      string        `yaml:"logService"`
	MaxWait         time.Duration `yaml:"maxWait"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	Store   StoreConfig   `yaml:"store"`
	Limits  LimitsConfig  `yaml:"limits"`
	Guard   GuardConfig   `yaml:"guard"`
	Tracing TracingConfig `yaml:"tracing"`
}

// StoreConfig selects where per-client limiter state lives.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	Redis         RedisConfig   `yaml:"redis"`
	BadgerPath    string        `yaml:"badgerPath"`
	SQLitePath    string        `yaml:"sqlitePath"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LimitsConfig describes the tiered policy.
type LimitsConfig struct {
	Algorithm string                `yaml:"algorithm"`
	Global    RateConfig            `yaml:"global"`
	PerClient RateConfig            `yaml:"perClient"`
	Classes   map[string]RateConfig `yaml:"classes"`
	KeyTTL    time.Duration         `yaml:"keyTTL"`
}

// RateConfig is a sustained rate in cells per second with a burst size.
// Both zero disables the tier.
type RateConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// GuardConfig configures the sliding-window request guard on the API.
// Zero requests disables it.
type GuardConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ListenAddr:      ":8080",
		LogLevel:        "info",
		LogService:      "ratewait",
		MaxWait:         30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Store: StoreConfig{
			Backend:       store.BackendMemory,
			Redis:         RedisConfig{Addr: "localhost:6379"},
			SweepInterval: time.Minute,
		},
		Limits: LimitsConfig{
			Algorithm: ratelimit.AlgorithmGCRA,
			Global:    RateConfig{Rate: 100, Burst: 200},
			PerClient: RateConfig{Rate: 10, Burst: 20},
			Classes: map[string]RateConfig{
				"standard": {Rate: 50, Burst: 100},
				"bulk":     {Rate: 5, Burst: 10},
			},
			KeyTTL: 10 * time.Minute,
		},
		Guard: GuardConfig{Requests: 600, Window: time.Minute},
		Tracing: TracingConfig{
			Exporter:     telemetry.ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// Quota converts the rate into a limiter quota. A zero rate yields a zero
// quota, which disables the tier.
func (r RateConfig) Quota() (ratelimit.Quota, error) {
	if r.Rate == 0 && r.Burst == 0 {
		return ratelimit.Quota{}, nil
	}
	return ratelimit.QuotaFromRate(r.Rate, r.Burst)
}

// PolicyConfig builds the limiter policy configuration.
func (c Config) PolicyConfig() (ratelimit.PolicyConfig, error) {
	global, err := c.Limits.Global.Quota()
	if err != nil {
		return ratelimit.PolicyConfig{}, err
	}
	perClient, err := c.Limits.PerClient.Quota()
	if err != nil {
		return ratelimit.PolicyConfig{}, err
	}
	classes := make(map[string]ratelimit.Quota, len(c.Limits.Classes))
	for name, rc := range c.Limits.Classes {
		q, err := rc.Quota()
		if err != nil {
			return ratelimit.PolicyConfig{}, err
		}
		classes[name] = q
	}
	return ratelimit.PolicyConfig{
		Algorithm: c.Limits.Algorithm,
		Global:    global,
		PerClient: perClient,
		Classes:   classes,
		KeyTTL:    c.Limits.KeyTTL,
	}, nil
}

// StoreOptions converts the store section for store.Open.
func (c Config) StoreOptions() store.Config {
	return store.Config{
		Backend: c.Store.Backend,
		Redis: store.RedisConfig{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
		},
		BadgerPath: c.Store.BadgerPath,
		SQLitePath: c.Store.SQLitePath,
	}
}

// TelemetryConfig converts the tracing section for telemetry.NewProvider.
func (c Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    c.LogService,
		ServiceVersion: c.Version,
		Environment:    c.Tracing.Environment,
		ExporterType:   c.Tracing.Exporter,
		Endpoint:       c.Tracing.Endpoint,
		SamplingRate:   c.Tracing.SamplingRate,
	}
}
