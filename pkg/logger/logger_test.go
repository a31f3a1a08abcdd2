package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.WithField("component", "test").Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	if entry["message"] != "hello" {
		t.Errorf("Expected message to be hello, got %v", entry["message"])
	}
	if entry["component"] != "test" {
		t.Errorf("Expected component field to be test, got %v", entry["component"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.WithError(errors.New("boom")).Error("operation failed")

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("Expected error field in output, got %s", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"INFO", "info"},
		{"warning", "warn"},
		{"error", "error"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.in).String()
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
