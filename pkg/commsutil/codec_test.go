package commsutil

import (
	"testing"

	"github.com/meetone/meet-bridge/pkg/codec"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	data, err := EncodeEnvelope("meet_callback_1_abc", map[string]any{"code": 0, "data": map[string]any{"account": "alice"}})
	if err != nil {
		t.Fatalf("commsutil:codec_test - encode failed: %v", err)
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("commsutil:codec_test - decode failed: %v", err)
	}
	if env.CallbackID != "meet_callback_1_abc" {
		t.Errorf("commsutil:codec_test - CallbackID = %q, want %q", env.CallbackID, "meet_callback_1_abc")
	}

	result, err := codec.DecodeValue(env.Params)
	if err != nil {
		t.Fatalf("commsutil:codec_test - params decode failed: %v", err)
	}
	data2, ok := result["data"].(map[string]any)
	if !ok || data2["account"] != "alice" {
		t.Errorf("commsutil:codec_test - unexpected params %#v", result)
	}
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{invalid}`},
		{"empty", ""},
		{"wrong type", `{"params": 12, "callbackId": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEnvelope([]byte(tt.data)); err == nil {
				t.Fatal("commsutil:codec_test - expected error but got nil")
			}
		})
	}
}

func TestEncodeEnvelope_Unserializable(t *testing.T) {
	if _, err := EncodeEnvelope("x", make(chan int)); err == nil {
		t.Fatal("commsutil:codec_test - expected error but got nil")
	}
}

func TestEncodePayload(t *testing.T) {
	data, err := EncodePayload(map[string]string{"kind": "resolved"})
	if err != nil {
		t.Fatalf("commsutil:codec_test - unexpected error: %v", err)
	}
	if string(data) != `{"kind":"resolved"}` {
		t.Errorf("commsutil:codec_test - EncodePayload() = %q", data)
	}

	var back map[string]string
	if err := DecodePayload(data, &back); err != nil {
		t.Fatalf("commsutil:codec_test - decode failed: %v", err)
	}
	if back["kind"] != "resolved" {
		t.Errorf("commsutil:codec_test - kind = %q, want resolved", back["kind"])
	}
}
