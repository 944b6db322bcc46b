// Package gwlog adapts go.uber.org/zap to the smpp.Logger interface
// (InfoF/ErrorF) that the session, connector, and pipeline packages log
// through, with a runtime-configurable level instead of the teacher's
// build-time smpp.logs flag.
package gwlog

import (
	"go.uber.org/zap"
)

// Level gates which severities are emitted. Configurable without a
// restart (see Logger.SetLevel), unlike the teacher's flag.BoolVar.
type Level int

const (
	// LevelError only logs errors.
	LevelError Level = iota
	// LevelInfo logs info and errors.
	LevelInfo
	// LevelDebug logs everything, including per-PDU traces.
	LevelDebug
)

// Logger implements smpp.Logger (and the equivalent seams in internal/*)
// backed by a *zap.SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
	level Level
}

// New builds a Logger around a zap.Logger. Pass a production or
// development logger depending on the deployment; the gateway's cmd wires
// zap.NewProduction() by default.
func New(zl *zap.Logger, level Level) *Logger {
	return &Logger{sugar: zl.Sugar(), level: level}
}

// SetLevel changes the effective log level without recreating the logger.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// InfoF implements smpp.Logger.
func (l *Logger) InfoF(msg string, params ...interface{}) {
	if l.level < LevelInfo {
		return
	}
	l.sugar.Infof(msg, params...)
}

// ErrorF implements smpp.Logger.
func (l *Logger) ErrorF(msg string, params ...interface{}) {
	l.sugar.Errorf(msg, params...)
}

// DebugF logs per-PDU traces, gated on LevelDebug. Not part of
// smpp.Logger; no package in the gateway calls it.
func (l *Logger) DebugF(msg string, params ...interface{}) {
	if l.level < LevelDebug {
		return
	}
	l.sugar.Debugf(msg, params...)
}

// Sync flushes buffered log entries. Call during graceful shutdown.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
