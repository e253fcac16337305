// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

var (
	baseLogger *zap.Logger
	// log backs the package functions and skips their frame when reporting
	// the caller
	log *zap.SugaredLogger
)

// Init initializes the package-level logger
func Init(debug bool) error {
	zapLogger, err := New(debug)
	if err != nil {
		return err
	}
	set(zapLogger)
	return nil
}

func set(zapLogger *zap.Logger) {
	baseLogger = zapLogger
	log = zapLogger.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// New builds a zap logger: development output when debug is set, JSON
// production output otherwise. Both write to stderr.
func New(debug bool) (*zap.Logger, error) {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	return zapLogger, nil
}

// GetZapLogger returns the base zap logger, falling back to a production
// logger when Init was never called
func GetZapLogger() *zap.Logger {
	if baseLogger == nil {
		zapLogger, err := zap.NewProduction()
		if err != nil {
			zapLogger = zap.NewNop()
		}
		set(zapLogger)
	}
	return baseLogger
}

// GetSugaredLogger returns a sugared logger for handing to components
func GetSugaredLogger() *zap.SugaredLogger {
	return GetZapLogger().Sugar()
}

func pkgLogger() *zap.SugaredLogger {
	if log == nil {
		GetZapLogger()
	}
	return log
}

// Sync flushes any buffered log entries
func Sync() {
	if baseLogger != nil {
		baseLogger.Sync()
	}
}

func Debug(args ...interface{}) {
	pkgLogger().Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	pkgLogger().Debugf(template, args...)
}

func Info(args ...interface{}) {
	pkgLogger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	pkgLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	pkgLogger().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	pkgLogger().Warnf(template, args...)
}

func Error(args ...interface{}) {
	pkgLogger().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	pkgLogger().Errorf(template, args...)
}

// Fatalf logs at fatal level and exits
func Fatalf(template string, args ...interface{}) {
	pkgLogger().Fatalf(template, args...)
	os.Exit(1)
}
