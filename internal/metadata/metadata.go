// Package metadata turns a track reference into the normalized TrackMetadata
// record persisted in a content field, and defines that record's encoding.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidMetadata is returned when a stored value violates the record contract.
	ErrInvalidMetadata = errors.New("invalid track metadata")
)

// TrackMetadata is the persisted form of a resolved track.
// Field order fixes the key order of the encoding.
type TrackMetadata struct {
	StreamURL  string    `json:"streamUrl"`
	Title      *string   `json:"title,omitempty"`
	DurationMs *int64    `json:"durationMs,omitempty"`
	Samples    []float64 `json:"samples"`
}

// Encode serializes the record. Encoding a decoded record reproduces the
// original bytes.
func Encode(md *TrackMetadata) ([]byte, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}
	out := *md
	if out.Samples == nil {
		out.Samples = []float64{}
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode track metadata: %w", err)
	}
	return data, nil
}

// Decode parses and validates a stored record. Unknown keys are rejected so
// that a re-encode cannot silently drop data.
func Decode(data []byte) (*TrackMetadata, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var md TrackMetadata
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after record", ErrInvalidMetadata)
	}
	if md.Samples == nil {
		md.Samples = []float64{}
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return &md, nil
}

// Validate checks the record invariants: a stream URL is present, every
// sample lies in [0, 1] and a non-empty sample sequence peaks at exactly 1.
func (md *TrackMetadata) Validate() error {
	if md.StreamURL == "" {
		return fmt.Errorf("%w: missing stream url", ErrInvalidMetadata)
	}
	if md.DurationMs != nil && *md.DurationMs < 0 {
		return fmt.Errorf("%w: negative duration %d", ErrInvalidMetadata, *md.DurationMs)
	}

	peak := 0.0
	for i, s := range md.Samples {
		if math.IsNaN(s) || s < 0 || s > 1 {
			return fmt.Errorf("%w: sample %d out of range: %v", ErrInvalidMetadata, i, s)
		}
		peak = math.Max(peak, s)
	}
	if len(md.Samples) > 0 && peak != 1 {
		return fmt.Errorf("%w: samples peak at %v, want 1", ErrInvalidMetadata, peak)
	}
	return nil
}

// Clone returns a deep copy.
func (md *TrackMetadata) Clone() *TrackMetadata {
	out := &TrackMetadata{StreamURL: md.StreamURL}
	if md.Title != nil {
		title := *md.Title
		out.Title = &title
	}
	if md.DurationMs != nil {
		duration := *md.DurationMs
		out.DurationMs = &duration
	}
	out.Samples = append(make([]float64, 0, len(md.Samples)), md.Samples...)
	return out
}
