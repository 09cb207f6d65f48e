package commsutil

import (
	"encoding/json"
	"fmt"

	"github.com/meetone/meet-bridge/pkg/codec"
)

const codecLogPrefix = "commsutil:codec"

// HostEnvelope is the JSON message the host posts back for a correlated request.
// Params carries the same token format as the outbound "params" query value.
type HostEnvelope struct {
	Params     string `json:"params"`
	CallbackID string `json:"callbackId"`
}

// EncodeEnvelope builds the host's response message for callbackID carrying result.
func EncodeEnvelope(callbackID string, result any) ([]byte, error) {
	token, err := codec.Encode(result)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", codecLogPrefix, err)
	}
	return json.Marshal(HostEnvelope{Params: token, CallbackID: callbackID})
}

// DecodeEnvelope parses a host message. The params token is left encoded.
func DecodeEnvelope(data []byte) (*HostEnvelope, error) {
	var env HostEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s - invalid envelope: %w", codecLogPrefix, err)
	}
	return &env, nil
}

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
