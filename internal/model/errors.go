package model

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/braintumor-api/internal/preprocess"
)

// UpstreamError is returned when the inference endpoint cannot be reached
// or answers with something other than a usable prediction.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference request to %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference request to %s failed: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

const (
	StageDecode   = "decode"
	StageResize   = "resize"
	StageUpstream = "upstream"
	StageClassify = "classify"
)

// ErrorStage names the pipeline step an error came from.
func ErrorStage(err error) string {
	var (
		decodeErr   *preprocess.DecodeError
		resizeErr   *preprocess.ResizeError
		upstreamErr *UpstreamError
	)
	switch {
	case errors.As(err, &decodeErr):
		return StageDecode
	case errors.As(err, &resizeErr):
		return StageResize
	case errors.As(err, &upstreamErr):
		return StageUpstream
	default:
		return StageClassify
	}
}
