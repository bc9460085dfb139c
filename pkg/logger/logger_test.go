package logger_test

import (
	"strings"
	"testing"

	"github.com/Tpanarchist/omen/pkg/logger"
)

// TestSimpleLogger tests the StructuredLogger implementation
func TestSimpleLogger(t *testing.T) {
	// Create logger (uses os.Stdout by default)
	log := logger.NewStructuredLogger()

	// We can't easily test output without modifying the logger to accept a writer
	// So we'll just test that methods don't panic

	log.Debug("debug message", map[string]interface{}{"test": "value"})
	log.Info("info message", map[string]interface{}{"test": "value"})
	log.Warn("warn message", map[string]interface{}{"test": "value"})
	log.Error("error message", map[string]interface{}{"test": "value"})
}

// TestLoggerWith tests the WithComponent method
func TestLoggerWith(t *testing.T) {
	log := logger.NewStructuredLogger()

	// Create a logger tagged with a component field
	logWithFields := log.WithComponent("test")

	// Test that it doesn't panic
	logWithFields.Info("test message", map[string]interface{}{"version": "1.0"})
}

// TestLogLevels tests different log levels
func TestLogLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"Debug", "debug"},
		{"Info", "info"},
		{"Warn", "warn"},
		{"Error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewStructuredLogger()
			log.SetLevel(tt.level)
			
			// Test that logger creation doesn't panic
			if log == nil {
				t.Error("Logger should not be nil")
			}
		})
	}
}

// TestFieldFormatting tests field formatting
func TestFieldFormatting(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]interface{}
		expected string
	}{
		{
			name:     "String field",
			fields:   map[string]interface{}{"message": "hello"},
			expected: "message",
		},
		{
			name:     "Number field",
			fields:   map[string]interface{}{"count": 42},
			expected: "count",
		},
		{
			name:     "Boolean field",
			fields:   map[string]interface{}{"enabled": true},
			expected: "enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Just verify the field key is accessible
			if _, ok := tt.fields[tt.expected]; !ok {
				t.Errorf("Field key missing: got %v, want %s", tt.fields, tt.expected)
			}
		})
	}
}

// BenchmarkLogger benchmarks logger performance
func BenchmarkLogger(b *testing.B) {
	log := logger.NewStructuredLogger()
	log.SetLevel("info")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("benchmark message", map[string]interface{}{
			"iteration": i,
			"benchmark": true,
		})
	}
}

// Helper function to check if output contains expected string
func containsString(output, expected string) bool {
	return strings.Contains(output, expected)
}