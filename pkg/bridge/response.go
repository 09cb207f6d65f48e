package bridge

import (
	"encoding/json"
	"fmt"
)

// Response is a host result. Hosts answer {"code": 0, "data": {...}} on
// success; any other code (or no code) is a failure.
type Response struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	// Raw is the full decoded result as the host sent it.
	Raw json.RawMessage `json:"-"`

	hasCode bool
}

// ParseResponse interprets a decoded result. Non-object results are kept in Raw only.
func ParseResponse(raw json.RawMessage) *Response {
	resp := &Response{Raw: raw}
	var wire struct {
		Code    *int            `json:"code"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return resp
	}
	if wire.Code != nil {
		resp.Code = *wire.Code
		resp.hasCode = true
	}
	resp.Data = wire.Data
	resp.Message = wire.Message
	if resp.Message == "" {
		resp.Message = wire.Msg
	}
	return resp
}

// OK reports a zero result code.
func (r *Response) OK() bool {
	return r != nil && r.hasCode && r.Code == 0
}

// DecodeData unmarshals the data field into out.
func (r *Response) DecodeData(out any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%s - response has no data", logPrefix)
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("%s - decode response data: %w", logPrefix, err)
	}
	return nil
}

// HostError is a non-zero host result surfaced as an error.
type HostError struct {
	Response *Response
}

func (e *HostError) Error() string {
	if e.Response == nil {
		return "bridge: host error"
	}
	if e.Response.Message != "" {
		return fmt.Sprintf("bridge: host error code=%d: %s", e.Response.Code, e.Response.Message)
	}
	return fmt.Sprintf("bridge: host error code=%d", e.Response.Code)
}
