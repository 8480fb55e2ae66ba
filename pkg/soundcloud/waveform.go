package soundcloud

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

const (
	imageSuffix = ".png"
	jsonSuffix  = ".json"
)

// WaveformJSONURL derives the waveform data URL from the waveform image URL by
// swapping the .png path suffix for .json. URLs already ending in .json are
// returned unchanged; anything else is rejected.
func WaveformJSONURL(waveformURL string) (string, error) {
	u, err := url.Parse(waveformURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid waveform url %q: %w", ErrMalformedResponse, waveformURL, err)
	}

	switch {
	case strings.HasSuffix(u.Path, jsonSuffix):
	case strings.HasSuffix(u.Path, imageSuffix):
		u.Path = strings.TrimSuffix(u.Path, imageSuffix) + jsonSuffix
		u.RawPath = ""
	default:
		return "", fmt.Errorf("%w: waveform url %q has no %s suffix", ErrMalformedResponse, waveformURL, imageSuffix)
	}
	return u.String(), nil
}

// FetchWaveform downloads the raw samples behind a waveform image URL.
func (c *Client) FetchWaveform(ctx context.Context, waveformURL, credential string) ([]float64, error) {
	dataURL, err := WaveformJSONURL(waveformURL)
	if err != nil {
		return nil, err
	}
	reqURL, err := c.withCredential(dataURL, credential)
	if err != nil {
		return nil, err
	}

	var waveform apiWaveform
	if err := c.getJSON(ctx, endpointWaveform, reqURL, maxWaveformBodySize, &waveform); err != nil {
		if errors.Is(err, ErrTrackNotFound) {
			return nil, fmt.Errorf("%w: waveform data not found", ErrUnexpectedStatus)
		}
		return nil, err
	}

	for i, s := range waveform.Samples {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: waveform sample %d is %v", ErrMalformedResponse, i, s)
		}
	}
	if waveform.Samples == nil {
		return []float64{}, nil
	}
	return waveform.Samples, nil
}
