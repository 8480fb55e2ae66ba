package metadata

import (
	"context"
	"errors"
	"fmt"

	"trackmeta/pkg/soundcloud"
)

// Kind classifies a resolution failure.
type Kind int

const (
	// KindUnreachable covers network, status and parse failures.
	KindUnreachable Kind = iota
	// KindNotFound means the API has no such track.
	KindNotFound
	// KindInvalidStreamURL means the track exists but is not playable.
	KindInvalidStreamURL
	// KindDegenerateWaveform means every waveform sample is zero.
	KindDegenerateWaveform
	// KindTransientUpstream means the API reports the track as still processing.
	KindTransientUpstream
)

var (
	// ErrNotFound matches resolution errors of KindNotFound.
	ErrNotFound = errors.New("track not found")
	// ErrInvalidStreamURL matches resolution errors of KindInvalidStreamURL.
	ErrInvalidStreamURL = errors.New("track is not streamable")
	// ErrDegenerateWaveform matches resolution errors of KindDegenerateWaveform.
	ErrDegenerateWaveform = errors.New("waveform has no peaks")
	// ErrTransientUpstream matches resolution errors of KindTransientUpstream.
	ErrTransientUpstream = errors.New("track is still processing")
	// ErrUnreachable matches resolution errors of KindUnreachable.
	ErrUnreachable = errors.New("track service unreachable")
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidStreamURL:
		return "invalid_stream_url"
	case KindDegenerateWaveform:
		return "degenerate_waveform"
	case KindTransientUpstream:
		return "transient_upstream"
	default:
		return "unreachable"
	}
}

// Retryable reports whether retrying the same reference later may succeed.
func (k Kind) Retryable() bool {
	return k == KindTransientUpstream || k == KindUnreachable
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidStreamURL:
		return ErrInvalidStreamURL
	case KindDegenerateWaveform:
		return ErrDegenerateWaveform
	case KindTransientUpstream:
		return ErrTransientUpstream
	default:
		return ErrUnreachable
	}
}

// ResolutionError is the only error type Resolver.Resolve returns.
type ResolutionError struct {
	Kind Kind
	Op   string // pipeline step: resolve, waveform or normalize
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.sentinel(), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ResolutionError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf extracts the kind of a resolution error. Errors that are not
// resolution errors report KindUnreachable.
func KindOf(err error) Kind {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Kind
	}
	return KindUnreachable
}

// classify wraps a pipeline step failure into a ResolutionError.
func classify(op string, err error) *ResolutionError {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}

	kind := KindUnreachable
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindUnreachable
	case errors.Is(err, soundcloud.ErrTrackNotFound), errors.Is(err, soundcloud.ErrEmptyReference):
		kind = KindNotFound
	case errors.Is(err, soundcloud.ErrNoStreamURL):
		kind = KindInvalidStreamURL
	case errors.Is(err, soundcloud.ErrProcessing):
		kind = KindTransientUpstream
	}
	return &ResolutionError{Kind: kind, Op: op, Err: err}
}
