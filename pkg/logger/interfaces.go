package logger

import "github.com/Tpanarchist/omen/core"

// Logger is an alias for core.Logger: every concrete logger in this
// package satisfies the same structured-field contract every protocol
// package (ledger, runner, integrity, ...) already depends on, so a
// StructuredLogger can be handed directly to ledger.Create, runner.New,
// or integrity.New without an adapter.
type Logger = core.Logger

// LogLevel orders severity for SetLevel filtering.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func parseLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel
	case "warn", "WARN", "warning", "WARNING":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}
