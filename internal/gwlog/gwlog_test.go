package gwlog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core), level), logs
}

func TestInfoFGatedByLevel(t *testing.T) {
	l, logs := newObserved(LevelError)
	l.InfoF("should not appear %d", 1)
	if logs.Len() != 0 {
		t.Fatalf("InfoF at LevelError logged %d entries, want 0", logs.Len())
	}

	l.SetLevel(LevelInfo)
	l.InfoF("should appear %d", 2)
	if logs.Len() != 1 {
		t.Fatalf("InfoF at LevelInfo logged %d entries, want 1", logs.Len())
	}
}

func TestErrorFAlwaysLogs(t *testing.T) {
	l, logs := newObserved(LevelError)
	l.ErrorF("boom: %s", "oops")
	if logs.Len() != 1 {
		t.Fatalf("ErrorF logged %d entries, want 1", logs.Len())
	}
}

func TestDebugFGatedByLevel(t *testing.T) {
	l, logs := newObserved(LevelInfo)
	l.DebugF("trace %d", 1)
	if logs.Len() != 0 {
		t.Fatalf("DebugF at LevelInfo logged %d entries, want 0", logs.Len())
	}

	l.SetLevel(LevelDebug)
	l.DebugF("trace %d", 2)
	if logs.Len() != 1 {
		t.Fatalf("DebugF at LevelDebug logged %d entries, want 1", logs.Len())
	}
}
