package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"project-selector/backend/config"
)

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "info", Format: "json"}); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := NewLogger(&config.LogConfig{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := NewLogger(&config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestFor_AttachesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	For(context.Background(), base).Info("no id")
	For(WithRequestID(context.Background(), "rid-7"), base).Info("with id")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["request_id"]; ok {
		t.Error("entry without request id should not carry the field")
	}
	if entries[1].ContextMap()["request_id"] != "rid-7" {
		t.Errorf("expected request_id=rid-7, got %v", entries[1].ContextMap())
	}
	if RequestID(WithRequestID(context.Background(), "")) != "" {
		t.Error("empty id should not be stored")
	}
}
