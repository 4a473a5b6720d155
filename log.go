package relic

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// Log categories, enabled individually through RELIC_LOG, e.g.
// RELIC_LOG=record,handshake or RELIC_LOG=* for everything.
const (
	logTypeCrypto    = "crypto"
	logTypeHandshake = "handshake"
	logTypeRecord    = "record"
	logTypeIO        = "io"
	logTypeVerbose   = "verbose"
)

var (
	logAll      = false
	logSettings = map[string]bool{}
	logger      *zap.SugaredLogger
)

func init() {
	for _, t := range strings.Split(os.Getenv("RELIC_LOG"), ",") {
		if t == "*" {
			logAll = true
		} else if t != "" {
			logSettings[t] = true
		}
	}

	if logAll || len(logSettings) > 0 {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		if base, err := cfg.Build(); err == nil {
			logger = base.Sugar()
		}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
}

func logf(tag string, format string, args ...interface{}) {
	if logAll || logSettings[tag] {
		logger.Named(tag).Debugf(format, args...)
	}
}
