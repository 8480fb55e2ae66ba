package metadata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trackmeta/pkg/soundcloud"
)

const (
	opResolve   = "resolve"
	opWaveform  = "waveform"
	opNormalize = "normalize"
)

// TrackSource is the remote side of the pipeline.
type TrackSource interface {
	Resolve(ctx context.Context, ref soundcloud.TrackReference, credential string) (*soundcloud.TrackDescriptor, error)
	FetchWaveform(ctx context.Context, waveformURL, credential string) ([]float64, error)
}

// Resolver runs the resolve, waveform and normalize steps for one reference.
// It keeps no state between calls and never retries.
type Resolver struct {
	source TrackSource
	fields Fields
	logger *zap.Logger
}

// NewResolver creates a resolver persisting the given optional fields.
func NewResolver(source TrackSource, fields Fields, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source: source,
		fields: fields,
		logger: logger,
	}
}

// Fields returns the optional fields this resolver persists.
func (r *Resolver) Fields() Fields {
	return r.fields
}

// Resolve produces a complete TrackMetadata or a *ResolutionError; a
// partially populated record is never returned.
func (r *Resolver) Resolve(ctx context.Context, ref soundcloud.TrackReference,
	credential string) (*TrackMetadata, error) {
	start := time.Now()

	desc, err := r.source.Resolve(ctx, ref, credential)
	if err != nil {
		return nil, r.fail(ref, opResolve, err)
	}

	raw, err := r.source.FetchWaveform(ctx, desc.WaveformURL, credential)
	if err != nil {
		return nil, r.fail(ref, opWaveform, err)
	}

	samples, err := Normalize(raw)
	if err != nil {
		return nil, r.fail(ref, opNormalize, err)
	}

	md := &TrackMetadata{
		StreamURL: desc.StreamURL,
		Samples:   samples,
	}
	if r.fields.Has(FieldTitle) && desc.Title != nil {
		title := *desc.Title
		md.Title = &title
	}
	if r.fields.Has(FieldDuration) && desc.DurationMs != nil && *desc.DurationMs >= 0 {
		duration := *desc.DurationMs
		md.DurationMs = &duration
	}

	r.logger.Debug("Resolved track metadata",
		zap.String("reference", ref.String()),
		zap.Int("samples", len(samples)),
		zap.Duration("elapsed", time.Since(start)))

	return md, nil
}

func (r *Resolver) fail(ref soundcloud.TrackReference, op string, err error) error {
	resErr := classify(op, err)
	r.logger.Debug("Track resolution failed",
		zap.String("reference", ref.String()),
		zap.String("step", op),
		zap.String("kind", resErr.Kind.String()),
		zap.Error(err))
	return resErr
}
