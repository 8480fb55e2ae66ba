// Package soundcloud resolves track references against the public SoundCloud API
// and fetches waveform sample data.
package soundcloud

import (
	"strings"
)

// ReferenceKind identifies how a TrackReference names a track.
type ReferenceKind int

const (
	// ReferenceByID is a numeric track identifier.
	ReferenceByID ReferenceKind = iota
	// ReferenceByAPIURL is a URL the API understands directly.
	ReferenceByAPIURL
	// ReferenceByPublicURL is a public page URL that needs a resolve lookup.
	ReferenceByPublicURL
)

// String returns the lower-case name of the reference kind.
func (k ReferenceKind) String() string {
	switch k {
	case ReferenceByID:
		return "id"
	case ReferenceByAPIURL:
		return "api_url"
	case ReferenceByPublicURL:
		return "public_url"
	default:
		return "unknown"
	}
}

// TrackReference is user input identifying a track.
type TrackReference struct {
	Kind  ReferenceKind
	Value string
}

// ByID builds a reference to a numeric track id.
func ByID(id string) TrackReference {
	return TrackReference{Kind: ReferenceByID, Value: strings.TrimSpace(id)}
}

// ByAPIURL builds a reference to a URL the API answers directly.
func ByAPIURL(rawURL string) TrackReference {
	return TrackReference{Kind: ReferenceByAPIURL, Value: strings.TrimSpace(rawURL)}
}

// ByPublicURL builds a reference to a public track page.
func ByPublicURL(rawURL string) TrackReference {
	return TrackReference{Kind: ReferenceByPublicURL, Value: strings.TrimSpace(rawURL)}
}

// String returns a stable "kind:value" representation, usable as a cache key.
func (r TrackReference) String() string {
	return r.Kind.String() + ":" + r.Value
}

// TrackDescriptor is the canonical result of resolving a reference.
// It is only produced by Client.Resolve.
type TrackDescriptor struct {
	StreamURL   string
	WaveformURL string
	Title       *string
	DurationMs  *int64
}

// apiTrack is the union of every body shape the track, resolve and redirect
// target endpoints return.
type apiTrack struct {
	Kind        string     `json:"kind"`
	Title       *string    `json:"title"`
	Duration    *int64     `json:"duration"`
	StreamURL   *string    `json:"stream_url"`
	WaveformURL *string    `json:"waveform_url"`
	State       string     `json:"state"`
	Status      string     `json:"status"`
	Location    string     `json:"location"`
	Errors      []apiError `json:"errors"`
}

type apiError struct {
	ErrorMessage string `json:"error_message"`
}

// apiWaveform is the body of the waveform JSON document.
type apiWaveform struct {
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Samples []float64 `json:"samples"`
}
