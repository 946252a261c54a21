package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.viam.com/test"
)

func TestLoggerLevels(t *testing.T) {
	test.That(t, NewLogger("info").Desugar().Core().Enabled(zap.DebugLevel), test.ShouldBeFalse)
	test.That(t, NewLogger("info").Desugar().Core().Enabled(zap.InfoLevel), test.ShouldBeTrue)
	test.That(t, NewDebugLogger("debug").Desugar().Core().Enabled(zap.DebugLevel), test.ShouldBeTrue)
	test.That(t, Nop().Desugar().Core().Enabled(zap.ErrorLevel), test.ShouldBeFalse)
}

func TestLoggerConfig(t *testing.T) {
	cfg := NewLoggerConfig()
	test.That(t, cfg.Encoding, test.ShouldEqual, "console")
	test.That(t, cfg.DisableStacktrace, test.ShouldBeTrue)
	test.That(t, cfg.Level.Level(), test.ShouldEqual, zap.InfoLevel)
}
