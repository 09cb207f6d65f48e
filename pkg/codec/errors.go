package codec

import "fmt"

// Decode stages, reported in DecodeError.Stage.
const (
	StageBase64  = "base64"
	StagePercent = "percent"
	StageJSON    = "json"
)

// EncodeError reports a value that could not be serialized into a token.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s - encode params: %v", logPrefix, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a token that failed at one of the decode stages.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s - decode params (%s): %v", logPrefix, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
