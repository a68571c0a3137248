package solanatx

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the decoder package. It is wired up by
// cmd/whalecopy's main via UseLogger, matching the rest of this module's
// packages.
var log = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
