package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/meetone/meet-bridge/pkg/journal"
)

const testPrefix = "cmd/meetbridge:main_test"

func TestUsage(t *testing.T) {
	if usage == "" {
		t.Fatalf("%s - usage should not be empty", testPrefix)
	}
	for _, word := range []string{"serve", "uri", "decode", "parse", "routes", "call", "listen", "migrate", "ensure-db", "requests", "prune", "clear"} {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should mention %q", testPrefix, word)
		}
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"object", `{"to":"bob","amount":1}`, 2, false},
		{"null", "null", 0, false},
		{"array", `[1,2]`, 0, true},
		{"garbage", `{to`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error", testPrefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - parseParams: %v", testPrefix, err)
			}
			if got == nil || len(got) != tt.wantLen {
				t.Errorf("%s - got %v, want %d keys", testPrefix, got, tt.wantLen)
			}
		})
	}
}

func TestRunURI(t *testing.T) {
	t.Setenv("BRIDGE_SCHEME", "meetone://")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	if err := runURI(&out, "eos/account_info", "", ""); err != nil {
		t.Fatalf("%s - runURI: %v", testPrefix, err)
	}
	if got := strings.TrimSpace(out.String()); got != "meetone://eos/account_info?params=JTdCJTdE" {
		t.Errorf("%s - uri = %q", testPrefix, got)
	}

	out.Reset()
	if err := runURI(&out, "eos/transfer", "{}", "meet_callback_1_x"); err != nil {
		t.Fatalf("%s - runURI: %v", testPrefix, err)
	}
	if got := strings.TrimSpace(out.String()); got != "meetone://eos/transfer?params=JTdCJTdE&callbackId=meet_callback_1_x" {
		t.Errorf("%s - uri = %q", testPrefix, got)
	}
}

func TestRunDecodeAndParse(t *testing.T) {
	var out bytes.Buffer
	if err := runDecode(&out, "JTdCJTdE"); err != nil {
		t.Fatalf("%s - runDecode: %v", testPrefix, err)
	}
	if got := strings.TrimSpace(out.String()); got != "{}" {
		t.Errorf("%s - decode = %q, want {}", testPrefix, got)
	}

	if err := runDecode(&out, "not base64!"); err == nil {
		t.Errorf("%s - expected decode error", testPrefix)
	}

	out.Reset()
	if err := runParse(&out, "meetone://eos/network?params=JTdCJTdE&callbackId=abc#top"); err != nil {
		t.Fatalf("%s - runParse: %v", testPrefix, err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatalf("%s - parse output: %v", testPrefix, err)
	}
	if parsed["protocol"] != "meetone" || parsed["route"] != "eos/network" || parsed["callbackId"] != "abc" || parsed["hash"] != "top" {
		t.Errorf("%s - parsed = %v", testPrefix, parsed)
	}
}

func TestRunRoutes(t *testing.T) {
	var out bytes.Buffer
	runRoutes(&out)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 10 {
		t.Fatalf("%s - got %d routes", testPrefix, len(lines))
	}
	if lines[0] != "eos/transfer" {
		t.Errorf("%s - first route = %q", testPrefix, lines[0])
	}
}

func TestWithDatabaseName(t *testing.T) {
	got, err := withDatabaseName("postgres://u:p@db:5432/postgres?sslmode=disable", "meetbridge")
	if err != nil {
		t.Fatalf("%s - withDatabaseName: %v", testPrefix, err)
	}
	if got != "postgres://u:p@db:5432/meetbridge?sslmode=disable" {
		t.Errorf("%s - url = %q", testPrefix, got)
	}
}

func TestFormatRequest(t *testing.T) {
	id := "meet_callback_1_x"
	code := 1
	msg := "user cancelled"
	r := journal.Request{
		CallbackID: &id,
		Route:      "eos/transfer",
		Status:     journal.StatusResolved,
		Code:       &code,
		Error:      &msg,
		Created:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	line := formatRequest(r)
	for _, want := range []string{"2026-01-02T03:04:05Z", "resolved", "eos/transfer", id, "code=1", `error="user cancelled"`} {
		if !strings.Contains(line, want) {
			t.Errorf("%s - %q missing %q", testPrefix, line, want)
		}
	}

	if line := formatRequest(journal.Request{Route: "eos/share", Status: journal.StatusImmediate}); !strings.Contains(line, " -") {
		t.Errorf("%s - immediate row should show - for callback id: %q", testPrefix, line)
	}
}
