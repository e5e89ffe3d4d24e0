package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldCandidate is the structured log field key for a candidate identifier.
	FieldCandidate = "candidate_id"
	// FieldRole is the structured log field key for a role identifier.
	FieldRole = "role_id"
	// FieldCycle is the structured log field key for an outreach cycle identifier.
	FieldCycle = "cycle_id"
	// FieldState is the structured log field key for a cycle state.
	FieldState = "state"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CycleFields returns standard zap fields that identify an outreach cycle.
// Empty values are ignored to keep log entries compact when information is missing.
func CycleFields(cycleID, candidateID, roleID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldCycle, Value: cycleID},
		StringField{Key: FieldCandidate, Value: candidateID},
		StringField{Key: FieldRole, Value: roleID},
	)
}

// WithCycleFields attaches the common cycle fields to the provided logger.
// If the logger is nil, a no-op logger is created to avoid panics.
func WithCycleFields(logger *zap.Logger, cycleID, candidateID, roleID string) *zap.Logger {
	return WithFields(logger, CycleFields(cycleID, candidateID, roleID)...)
}
