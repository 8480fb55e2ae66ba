package soundcloud

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	endpointTrack    = "track"
	endpointResolve  = "resolve"
	endpointLocation = "location"
	endpointAPIURL   = "api_url"
	endpointWaveform = "waveform"

	// kindTrack is the only resource kind that resolves to a playable descriptor.
	kindTrack = "track"
)

// Resolve maps a reference to a track descriptor.
//
// Numeric ids hit /tracks/{id}, API URLs are fetched as given and public URLs
// go through /resolve. A resolve response may carry a location pointer instead
// of a track; exactly one such hop is followed.
func (c *Client) Resolve(ctx context.Context, ref TrackReference, credential string) (*TrackDescriptor, error) {
	if ref.Value == "" {
		return nil, ErrEmptyReference
	}

	var (
		track *apiTrack
		err   error
	)
	switch ref.Kind {
	case ReferenceByID:
		track, err = c.fetchTrack(ctx, endpointTrack,
			c.endpointURL("/tracks/"+url.PathEscape(ref.Value), nil), credential)
	case ReferenceByAPIURL:
		track, err = c.fetchTrack(ctx, endpointAPIURL, ref.Value, credential)
	case ReferenceByPublicURL:
		track, err = c.resolvePublicURL(ctx, ref.Value, credential)
	default:
		return nil, fmt.Errorf("unsupported reference kind %d", ref.Kind)
	}
	if err != nil {
		return nil, err
	}

	return descriptorFromTrack(track)
}

// resolvePublicURL runs the resolve lookup and follows a location pointer.
func (c *Client) resolvePublicURL(ctx context.Context, publicURL, credential string) (*apiTrack, error) {
	query := url.Values{}
	query.Set("url", publicURL)

	track, err := c.fetchTrack(ctx, endpointResolve, c.endpointURL("/resolve", query), credential)
	if err != nil {
		return nil, err
	}
	if !isRedirect(track) {
		return track, nil
	}

	c.logger.Debug("Following resolve location")
	target, err := c.fetchTrack(ctx, endpointLocation, track.Location, credential)
	if err != nil {
		return nil, err
	}
	if isRedirect(target) {
		return nil, fmt.Errorf("resolve location points to another location: %w", ErrTooManyRedirects)
	}
	return target, nil
}

// fetchTrack performs one lookup and interprets status-style bodies.
func (c *Client) fetchTrack(ctx context.Context, endpoint, rawURL, credential string) (*apiTrack, error) {
	reqURL, err := c.withCredential(rawURL, credential)
	if err != nil {
		return nil, err
	}

	var track apiTrack
	if err := c.getJSON(ctx, endpoint, reqURL, maxTrackBodySize, &track); err != nil {
		return nil, err
	}

	if len(track.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, track.Errors[0].ErrorMessage)
	}
	if isPending(track.Status) || isPending(track.State) {
		return nil, ErrProcessing
	}
	return &track, nil
}

// isRedirect reports whether a body is a location pointer rather than a track.
// A 30x status marks one explicitly; a bare location with no track fields
// counts as well.
func isRedirect(track *apiTrack) bool {
	if track.Location == "" {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(track.Status), "30") {
		return true
	}
	return track.Kind == "" && track.StreamURL == nil
}

// isPending reports whether a status or state marks unfinished processing.
func isPending(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "processing") || strings.Contains(s, "pending")
}

// descriptorFromTrack validates a track body and converts it.
func descriptorFromTrack(track *apiTrack) (*TrackDescriptor, error) {
	if track.Kind != "" && track.Kind != kindTrack {
		return nil, fmt.Errorf("%w: resource is a %s", ErrTrackNotFound, track.Kind)
	}
	if track.StreamURL == nil || strings.TrimSpace(*track.StreamURL) == "" {
		return nil, ErrNoStreamURL
	}
	if track.WaveformURL == nil || strings.TrimSpace(*track.WaveformURL) == "" {
		return nil, fmt.Errorf("%w: track has no waveform url", ErrMalformedResponse)
	}

	return &TrackDescriptor{
		StreamURL:   strings.TrimSpace(*track.StreamURL),
		WaveformURL: strings.TrimSpace(*track.WaveformURL),
		Title:       track.Title,
		DurationMs:  track.Duration,
	}, nil
}
