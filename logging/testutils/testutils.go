// Package testutils provides loggers for tests.
package testutils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Noofbiz/kpdata/logging"
)

// NewTestLogger returns a Debug+ logger that writes through tb.
func NewTestLogger(tb testing.TB) logging.Logger {
	return zaptest.NewLogger(tb, zaptest.Level(zap.DebugLevel)).Sugar()
}
