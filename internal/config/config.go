// Package config holds the small set of process-level knobs meridiand
// needs at startup, populated from command-line flags the way the
// teacher's cmd/client/client.go parses its own flag.String/flag.Int
// parameters directly in main.
package config

import "flag"

// Config is the fully-resolved set of startup parameters for the
// server process.
type Config struct {
	Address         string
	Port            int
	WorkerPoolSize  int
	JournalCapacity int
	LogLevel        string
}

// Defaults returns the baseline configuration before flags are parsed.
func Defaults() Config {
	return Config{
		Address:         "0.0.0.0",
		Port:            9001,
		WorkerPoolSize:  10,
		JournalCapacity: 10000,
		LogLevel:        "info",
	}
}

// RegisterFlags binds c's fields to flags on fs, so callers can parse
// with either flag.CommandLine or a fresh FlagSet in tests.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Address, "address", c.Address, "listen address")
	fs.IntVar(&c.Port, "port", c.Port, "listen port")
	fs.IntVar(&c.WorkerPoolSize, "workers", c.WorkerPoolSize, "session worker pool size")
	fs.IntVar(&c.JournalCapacity, "journal-capacity", c.JournalCapacity, "trade journal ring buffer capacity")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
}
