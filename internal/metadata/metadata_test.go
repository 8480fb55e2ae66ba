package metadata

import (
	"bytes"
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func TestEncode_Shape(t *testing.T) {
	tests := []struct {
		name     string
		md       *TrackMetadata
		expected string
	}{
		{
			name:     "Required fields only",
			md:       &TrackMetadata{StreamURL: "https://cdn/123.mp3", Samples: []float64{0.25, 0.5, 1, 0.5}},
			expected: `{"streamUrl":"https://cdn/123.mp3","samples":[0.25,0.5,1,0.5]}`,
		},
		{
			name: "All fields",
			md: &TrackMetadata{
				StreamURL:  "https://cdn/1.mp3",
				Title:      strPtr("Song"),
				DurationMs: int64Ptr(215000),
				Samples:    []float64{1},
			},
			expected: `{"streamUrl":"https://cdn/1.mp3","title":"Song","durationMs":215000,"samples":[1]}`,
		},
		{
			name:     "Nil samples encode as an empty list",
			md:       &TrackMetadata{StreamURL: "https://cdn/1.mp3"},
			expected: `{"streamUrl":"https://cdn/1.mp3","samples":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.md)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Encode() = %s, want %s", data, tt.expected)
			}
		})
	}
}

func TestRoundTrip_ByteIdentical(t *testing.T) {
	samples, err := Normalize([]float64{3, 7, 11, 13, 17, 19, 23, 0, 29})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	records := []*TrackMetadata{
		{StreamURL: "https://cdn/1.mp3", Samples: samples},
		{StreamURL: "https://cdn/2.mp3?a=1&b=<2>", Title: strPtr("Ünïcødé & <tags>"), DurationMs: int64Ptr(0), Samples: []float64{}},
		{StreamURL: "https://cdn/3.mp3", DurationMs: int64Ptr(1234567), Samples: []float64{1, 1.0 / 3, 2.0 / 3}},
	}

	for _, md := range records {
		first, err := Encode(md)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		loaded, err := Decode(first)
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", first, err)
		}
		second, err := Encode(loaded)
		if err != nil {
			t.Fatalf("Encode() after reload error = %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("round trip changed bytes:\n first: %s\nsecond: %s", first, second)
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Not JSON", `nope`},
		{"Null", `null`},
		{"Missing stream url", `{"samples":[1]}`},
		{"Sample above one", `{"streamUrl":"x","samples":[0.5,1.5]}`},
		{"Negative sample", `{"streamUrl":"x","samples":[-0.1,1]}`},
		{"Peak below one", `{"streamUrl":"x","samples":[0.5,0.25]}`},
		{"Negative duration", `{"streamUrl":"x","durationMs":-1,"samples":[]}`},
		{"Unknown key", `{"streamUrl":"x","samples":[],"trackId":"1"}`},
		{"Trailing data", `{"streamUrl":"x","samples":[]} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.input)); !errors.Is(err, ErrInvalidMetadata) {
				t.Errorf("Decode() error = %v, want %v", err, ErrInvalidMetadata)
			}
		})
	}
}

func TestDecode_NullSamples(t *testing.T) {
	md, err := Decode([]byte(`{"streamUrl":"x","samples":null}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if md.Samples == nil || len(md.Samples) != 0 {
		t.Errorf("Decode() samples = %#v, want empty slice", md.Samples)
	}
}

func TestEncode_RejectsInvalid(t *testing.T) {
	if _, err := Encode(&TrackMetadata{Samples: []float64{1}}); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("Encode() error = %v, want %v", err, ErrInvalidMetadata)
	}
}

func TestClone(t *testing.T) {
	md := &TrackMetadata{StreamURL: "x", Title: strPtr("a"), DurationMs: int64Ptr(1), Samples: []float64{1, 0.5}}
	c := md.Clone()

	*c.Title = "b"
	*c.DurationMs = 2
	c.Samples[1] = 0

	if *md.Title != "a" || *md.DurationMs != 1 || md.Samples[1] != 0.5 {
		t.Errorf("Clone() shares state with the original: %+v", md)
	}
}
