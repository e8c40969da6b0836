package checker

import (
	"time"

	"linkchecker/internal/probe"
)

// Config is the immutable configuration of one run.
type Config struct {
	Timeout       time.Duration // per-probe deadline
	HostDelay     time.Duration // pause between consecutive probes of one host
	RecheckAge    time.Duration // minimum age of the last check before a link is due again
	PageSize      int           // candidates requested per batch, before prefix extension
	Jobs          int           // hosts probed concurrently within a batch
	MaxRedirects  int
	UserAgent     string
	StrictUnknown bool // abort the run on an unclassified probe error instead of recording it
}

// DefaultConfig mirrors the command-line defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      60 * time.Second,
		HostDelay:    3 * time.Second,
		RecheckAge:   365 * 24 * time.Hour,
		PageSize:     128,
		Jobs:         1,
		MaxRedirects: probe.DefaultMaxRedirects,
		UserAgent:    probe.DefaultUserAgent,
	}
}

// withDefaults replaces out-of-range values with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.HostDelay < 0 {
		c.HostDelay = d.HostDelay
	}
	if c.RecheckAge < 0 {
		c.RecheckAge = d.RecheckAge
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.Jobs <= 0 {
		c.Jobs = d.Jobs
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}
