// Package logger builds the application's zap logger.
//
// New picks the development preset for level "debug" and the production preset
// otherwise, then applies the configured level and encoding (console or json).
// Field keys are level, time and message.
//
// HTTP handlers use WithRayID to tag log lines with the request's ray id set by the
// rayid middleware.
package logger
