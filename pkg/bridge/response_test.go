package bridge

import (
	"errors"
	"strings"
	"testing"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		ok      bool
		code    int
		message string
		data    bool
	}{
		{"success", `{"code":0,"data":{"account":"alice"}}`, true, 0, "", true},
		{"failure with message", `{"code":998,"message":"user cancelled"}`, false, 998, "user cancelled", false},
		{"msg fallback", `{"code":1,"msg":"denied"}`, false, 1, "denied", false},
		{"no code", `{"data":{}}`, false, 0, "", true},
		{"not an object", `"plain"`, false, 0, "", false},
		{"empty object", `{}`, false, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseResponse([]byte(tt.raw))
			if resp.OK() != tt.ok {
				t.Errorf("bridge:response_test - OK = %v, want %v", resp.OK(), tt.ok)
			}
			if resp.Code != tt.code {
				t.Errorf("bridge:response_test - Code = %d, want %d", resp.Code, tt.code)
			}
			if resp.Message != tt.message {
				t.Errorf("bridge:response_test - Message = %q, want %q", resp.Message, tt.message)
			}
			if (len(resp.Data) > 0) != tt.data {
				t.Errorf("bridge:response_test - Data = %s", resp.Data)
			}
			if string(resp.Raw) != tt.raw {
				t.Errorf("bridge:response_test - Raw = %s, want %s", resp.Raw, tt.raw)
			}
		})
	}
}

func TestResponse_DecodeData(t *testing.T) {
	resp := ParseResponse([]byte(`{"code":0,"data":{"name":"alice","balance":"1.0000 EOS"}}`))
	var out struct {
		Name    string `json:"name"`
		Balance string `json:"balance"`
	}
	if err := resp.DecodeData(&out); err != nil {
		t.Fatalf("bridge:response_test - DecodeData: %v", err)
	}
	if out.Name != "alice" || out.Balance != "1.0000 EOS" {
		t.Errorf("bridge:response_test - unexpected data %+v", out)
	}

	empty := ParseResponse([]byte(`{"code":0}`))
	if err := empty.DecodeData(&out); err == nil {
		t.Error("bridge:response_test - expected error for missing data")
	}
}

func TestResponse_NilIsNotOK(t *testing.T) {
	var resp *Response
	if resp.OK() {
		t.Error("bridge:response_test - nil response must not be OK")
	}
}

func TestHostError(t *testing.T) {
	err := error(&HostError{Response: ParseResponse([]byte(`{"code":2,"message":"no key"}`))})
	if !strings.Contains(err.Error(), "code=2") || !strings.Contains(err.Error(), "no key") {
		t.Errorf("bridge:response_test - Error = %q", err.Error())
	}
	var hostErr *HostError
	if !errors.As(err, &hostErr) || hostErr.Response.Code != 2 {
		t.Error("bridge:response_test - errors.As failed")
	}
}
