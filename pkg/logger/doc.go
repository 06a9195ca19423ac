// Package logger provides the structured logging interface used across polyagg.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a dependency and tests can substitute NewTestLogger or
// NewNopLogger.
//
// Basic usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info", File: "polyagg.log"})
//
//	log := logger.GetLogger().WithField("category", "call")
//	log.WithError(err).Warn("Identifier failed")
//
// When File is set, events go to the console and to the file as JSON.
package logger
