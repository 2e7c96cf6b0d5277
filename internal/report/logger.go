package report

import (
	"go.uber.org/zap"

	"github.com/inodb/ldclump/internal/clump"
)

// Logger forwards diagnostics to a zap logger: progress at debug level,
// warnings at warn level.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a zap-backed sink.
func NewLogger(l *zap.Logger) *Logger {
	return &Logger{logger: l}
}

func (l *Logger) Progress(msg string) { l.logger.Debug(msg) }
func (l *Logger) Warning(msg string)  { l.logger.Warn(msg) }

// Multi fans diagnostics out to several sinks.
type Multi []clump.Diagnostics

func (m Multi) Progress(msg string) {
	for _, d := range m {
		d.Progress(msg)
	}
}

func (m Multi) Warning(msg string) {
	for _, d := range m {
		d.Warning(msg)
	}
}

// Nop discards all diagnostics.
type Nop struct{}

func (Nop) Progress(string) {}
func (Nop) Warning(string)  {}

var (
	_ clump.Diagnostics = (*Console)(nil)
	_ clump.Diagnostics = (*Logger)(nil)
	_ clump.Diagnostics = Multi(nil)
	_ clump.Diagnostics = Nop{}
)
