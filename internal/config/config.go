// Package config hosts the in-process configuration aggregate consumed by
// engine.New. Parsing a configuration file or command line into this
// structure is explicitly out of scope (spec.md §1 Non-goals); this package
// only defines the shape and defaulting behavior, following the teacher's
// "nil-safe Config, documented defaults" convention (see
// microbatch.BatcherConfig / longpoll.ChannelConfig).
package config

import "time"

// EngineConfig is the top-level configuration consumed by engine.New.
// Use Default to obtain a populated one and override individual fields;
// a nil *EngineConfig is treated as Default() by WithDefaults.
type EngineConfig struct {
	// SelectionInterval is the period between best-instance selection
	// ticks. Defaults to 1s, if 0 (spec §4.8).
	SelectionInterval time.Duration

	// StatisticsInterval is the period between periodic statistics
	// emission. Defaults to 60s, if 0 (spec §4.8).
	StatisticsInterval time.Duration

	// StateDir is the directory persistent per-instance state is written
	// to. Defaults to "/var/lib/sfptpd", if empty (spec §6).
	StateDir string

	// LockFilePath is the path of the daemon's exclusive lock file.
	// Defaults to "/var/run/kernel_clock", if empty (spec §6).
	LockFilePath string

	// ControlSocketPath is the Unix-domain datagram socket path the control
	// interface listens on. Defaults to "/run/sfptpd-core.sock", if empty.
	ControlSocketPath string

	// ForeignMasterCapacity bounds the number of concurrently tracked
	// foreign masters per PTP port. Defaults to 16, if 0 (spec §4.6.1).
	ForeignMasterCapacity int

	// AnnounceReceiptTimeouts is the number of missed Announce intervals
	// before a foreign-master entry or the port itself is considered
	// timed out. Defaults to 3, if 0.
	AnnounceReceiptTimeouts int
}

// Default returns an EngineConfig populated with documented defaults.
func Default() *EngineConfig {
	return &EngineConfig{
		SelectionInterval:       time.Second,
		StatisticsInterval:      60 * time.Second,
		StateDir:                "/var/lib/sfptpd",
		LockFilePath:            "/var/run/kernel_clock",
		ControlSocketPath:       "/run/sfptpd-core.sock",
		ForeignMasterCapacity:   16,
		AnnounceReceiptTimeouts: 3,
	}
}

// WithDefaults returns a copy of c with every zero-valued field replaced by
// its documented default. A nil receiver returns Default().
func (c *EngineConfig) WithDefaults() *EngineConfig {
	d := Default()
	if c == nil {
		return d
	}
	out := *c
	if out.SelectionInterval == 0 {
		out.SelectionInterval = d.SelectionInterval
	}
	if out.StatisticsInterval == 0 {
		out.StatisticsInterval = d.StatisticsInterval
	}
	if out.StateDir == "" {
		out.StateDir = d.StateDir
	}
	if out.LockFilePath == "" {
		out.LockFilePath = d.LockFilePath
	}
	if out.ControlSocketPath == "" {
		out.ControlSocketPath = d.ControlSocketPath
	}
	if out.ForeignMasterCapacity == 0 {
		out.ForeignMasterCapacity = d.ForeignMasterCapacity
	}
	if out.AnnounceReceiptTimeouts == 0 {
		out.AnnounceReceiptTimeouts = d.AnnounceReceiptTimeouts
	}
	return &out
}
