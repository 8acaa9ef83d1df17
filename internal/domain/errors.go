package domain

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid chunking or index parameters. It is
// fatal and should be surfaced at startup, before any indexing or
// serving begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// IndexMismatchError reports that a loaded vector index and its chunk
// lookup table disagree. Serving queries against a mismatched index
// would map internal row ids to the wrong chunks, so the store must
// refuse to open.
type IndexMismatchError struct {
	Detail string
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("index/lookup mismatch: %s", e.Detail)
}

// GenerationErrorTag classifies a failed generation call so that the
// evaluation harness can tell a model refusal from an infrastructure
// failure.
type GenerationErrorTag string

const (
	// GenerationErrSafetyFiltered marks prompts or responses blocked by
	// the provider's content filtering.
	GenerationErrSafetyFiltered GenerationErrorTag = "safety_filtered"
	// GenerationErrEmptyCandidates marks responses that came back with
	// no candidates at all.
	GenerationErrEmptyCandidates GenerationErrorTag = "empty_candidates"
	// GenerationErrMalformedResponse marks responses whose structure
	// could not be decoded or held no text.
	GenerationErrMalformedResponse GenerationErrorTag = "malformed_response"
	// GenerationErrTransport marks network errors, timeouts and
	// non-200 statuses.
	GenerationErrTransport GenerationErrorTag = "transport_error"
)

// GenerationError carries the tag alongside the underlying cause.
type GenerationError struct {
	Tag   GenerationErrorTag
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return string(e.Tag)
	}
	return fmt.Sprintf("%s: %v", e.Tag, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// TagOf extracts the classification from err, defaulting to
// transport_error for anything untagged.
func TagOf(err error) GenerationErrorTag {
	if err == nil {
		return ""
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Tag
	}
	return GenerationErrTransport
}
