package config

import "github.com/AndreyBrytkov/cowdfunding/native/bank"

// Log controls the structured logger and its optional rotating file sink.
type Log struct {
	Level      string `toml:"Level"`
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Rent is the account-existence reserve schedule.
type Rent struct {
	Base    uint64 `toml:"Base"`
	PerByte uint64 `toml:"PerByte"`
}

// Schedule converts the section into the bank's rent schedule.
func (r Rent) Schedule() bank.Rent {
	return bank.Rent{Base: r.Base, PerByte: r.PerByte}
}

// RateLimit bounds RPC requests per client address.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`

	// TrustForwardedHeaders keys clients by X-Real-IP/X-Forwarded-For. Set it
	// only when the daemon sits behind a proxy that rewrites them.
	TrustForwardedHeaders bool `toml:"TrustForwardedHeaders"`
}

// Telemetry configures the OpenTelemetry exporters.
type Telemetry struct {
	ServiceName string `toml:"ServiceName"`
	Endpoint    string `toml:"Endpoint"`
	Insecure    bool   `toml:"Insecure"`
	Headers     string `toml:"Headers"`
	Metrics     bool   `toml:"Metrics"`
	Traces      bool   `toml:"Traces"`
}
