package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  company_id  ", Value: "  c-100  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "company_id" || fields[0].String != "c-100" {
		t.Fatalf("unexpected field: %+v", fields[0])
	}

	empty := StringFields()
	if len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithCycleFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithCycleFields(base, "cyc-1", "cand-1", "").Info("transition")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldCycle] != "cyc-1" {
		t.Fatalf("expected cycle field, got %+v", ctx)
	}
	if ctx[FieldCandidate] != "cand-1" {
		t.Fatalf("expected candidate field, got %+v", ctx)
	}
	if _, ok := ctx[FieldRole]; ok {
		t.Fatalf("empty role id must be omitted, got %+v", ctx)
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	logger := WithFields(nil, zap.String("k", "v"))
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}
