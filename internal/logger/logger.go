// Package logger re-exports github.com/Bparsons0904/goLogger so the rest of
// the module imports one logging path.
package logger

import (
	goLogger "github.com/Bparsons0904/goLogger"
)

type (
	Logger = goLogger.Logger
	Config = goLogger.Config
	Format = goLogger.Format
)

const (
	DefaultTraceIDKey = goLogger.DefaultTraceIDKey
	FormatJSON        = goLogger.FormatJSON
	FormatText        = goLogger.FormatText
)

var (
	New                = goLogger.New
	NewWithConfig      = goLogger.NewWithConfig
	ContextWithTraceID = goLogger.ContextWithTraceID
	TraceIDFromContext = goLogger.TraceIDFromContext
)
