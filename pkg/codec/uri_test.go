package codec

import "testing"

func TestParseURI_AuthorizeInWeb(t *testing.T) {
	got, err := ParseURI("meetone://eos/authorizeInWeb?params=JTdCJTdE&callbackId=100#MyHash")
	if err != nil {
		t.Fatalf("codec:uri_test - unexpected error: %v", err)
	}
	if got.Protocol != "meetone" {
		t.Errorf("codec:uri_test - Protocol = %q, want %q", got.Protocol, "meetone")
	}
	if got.Route != "eos/authorizeInWeb" {
		t.Errorf("codec:uri_test - Route = %q, want %q", got.Route, "eos/authorizeInWeb")
	}
	if got.ParamsToken != "JTdCJTdE" {
		t.Errorf("codec:uri_test - ParamsToken = %q, want %q", got.ParamsToken, "JTdCJTdE")
	}
	if got.CallbackID != "100" {
		t.Errorf("codec:uri_test - CallbackID = %q, want %q", got.CallbackID, "100")
	}
	if got.Hash != "MyHash" {
		t.Errorf("codec:uri_test - Hash = %q, want %q", got.Hash, "MyHash")
	}
	if len(got.Params) != 0 {
		t.Errorf("codec:uri_test - Params = %#v, want empty", got.Params)
	}
}

func TestParseURI_PaddedToken(t *testing.T) {
	token := MustEncode(map[string]any{"to": "alice"})
	got, err := ParseURI("meetone://eos/transfer?params=" + token)
	if err != nil {
		t.Fatalf("codec:uri_test - unexpected error: %v", err)
	}
	if got.ParamsToken != token {
		t.Errorf("codec:uri_test - ParamsToken = %q, want %q", got.ParamsToken, token)
	}
	if got.Params["to"] != "alice" {
		t.Errorf("codec:uri_test - Params[to] = %v, want alice", got.Params["to"])
	}
	if got.CallbackID != "" {
		t.Errorf("codec:uri_test - CallbackID = %q, want empty", got.CallbackID)
	}
}

func TestParseURI_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no scheme", "eos/transfer?params=JTdCJTdE"},
		{"no route", "meetone://?params=JTdCJTdE"},
		{"bad token", "meetone://eos/transfer?params=%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseURI(tt.input); err == nil {
				t.Errorf("codec:uri_test - expected error for %q", tt.input)
			}
		})
	}
}
