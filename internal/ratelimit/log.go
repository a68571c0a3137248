package ratelimit

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
