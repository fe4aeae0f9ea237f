package flowtrack

import (
	"errors"
	"time"
)

// Options is the configuration of the stats pipeline.
type Options struct {
	// EpochDuration is the reporting epoch. Epoch boundaries are driven by
	// record timestamps, not wall time.
	EpochDuration time.Duration

	// MaxFlows is the live-flow tracker capacity.
	MaxFlows int

	// FlowMaxAge is how long a flow may stay idle before the epoch sweep
	// expires it.
	FlowMaxAge time.Duration

	// OnEvict is called for every flow removed by the epoch sweep.
	OnEvict func(Flow)
}

// DefaultOptions
var DefaultOptions = Options{
	EpochDuration: time.Second,
	MaxFlows:      1 << 20,
	FlowMaxAge:    time.Second,
}

func checkOptions(options Options) error {
	if options.EpochDuration <= 0 {
		return errors.New("flowtrack/options: invalid epoch duration")
	}
	if options.MaxFlows <= 0 {
		return errors.New("flowtrack/options: invalid max flows")
	}
	if options.FlowMaxAge <= 0 {
		return errors.New("flowtrack/options: invalid flow max age")
	}
	return nil
}
