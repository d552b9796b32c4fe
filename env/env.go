//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package env implements the global environment and the session
// parameters of the preprocessing engine.
package env

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/go-logr/logr"
)

// DefaultTimeout bounds a whole session run.
const DefaultTimeout = 20 * time.Minute

// Config defines the runtime configuration of one party. Config must
// not be modified after being passed to any module. It is safe for
// concurrent use by multiple modules as they do not modify it.
type Config struct {
	// Rand is the entropy source for the party's DRBG seed.
	Rand io.Reader

	// Seed, if set, seeds the party's DRBG directly. Use only for
	// reproducible tests.
	Seed []byte

	// Logger receives structured log output.
	Logger logr.Logger

	// Timeout bounds the session setup and each protocol run of the
	// session. The zero value selects DefaultTimeout.
	Timeout time.Duration
}

// GetRandom returns the source of entropy for DRBG seeding.
func (config *Config) GetRandom() io.Reader {
	if config.Rand != nil {
		return config.Rand
	}
	return rand.Reader
}

// GetLogger returns the configured logger or a discarding logger.
func (config *Config) GetLogger() logr.Logger {
	if config.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return config.Logger
}

// GetTimeout returns the protocol run timeout.
func (config *Config) GetTimeout() time.Duration {
	if config.Timeout > 0 {
		return config.Timeout
	}
	return DefaultTimeout
}
