package frio

import "time"

// Export internal symbols for black-box tests in frio_test package.
var (
	Partition           = partition
	DefaultConcurrency  = defaultConcurrency
	DefaultPollInterval = defaultPollInterval
	MaxWorkers          = maxWorkers
)

// OptionsView is a read-only copy of the resolved options.
type OptionsView struct {
	ReadSize     int64
	Workers      int
	Concurrency  int
	PollInterval time.Duration
	Pin          bool
	HasLogger    bool
}

func ResolveOptions(opts ...Option) OptionsView {
	cfg := applyOptions(opts)

	return OptionsView{
		ReadSize:     cfg.ReadSize,
		Workers:      cfg.Workers,
		Concurrency:  cfg.Concurrency,
		PollInterval: cfg.PollInterval,
		Pin:          cfg.Pin,
		HasLogger:    cfg.Logger != nil,
	}
}
