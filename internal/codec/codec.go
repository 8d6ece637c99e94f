// Package codec defines the boundary to encoders and decoders.
//
// Encode and Decode return lazy, finite sequences that cannot be restarted.
// A call may yield zero items (the codec is buffering) or several (a flush).
// SignalEndOfStream drains everything still buffered; its last item has
// EndOfStream set. Release frees the codec and is safe to call on every exit
// path, more than once.
package codec

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Encoder turns raw units into compressed samples.
type Encoder interface {
	// Configure prepares the encoder for raw input described by in and
	// returns the compressed output format.
	Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error)
	Encode(unit media.RawUnit) iter.Seq2[media.Sample, error]
	SignalEndOfStream() iter.Seq2[media.Sample, error]
	Release() error
}

// Decoder turns compressed samples into raw units.
type Decoder interface {
	// Configure prepares the decoder for samples described by in and
	// returns the raw output format.
	Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error)
	Decode(sample media.Sample) iter.Seq2[media.RawUnit, error]
	SignalEndOfStream() iter.Seq2[media.RawUnit, error]
	Release() error
}

// EncoderFactory allocates a fresh encoder.
type EncoderFactory func() (Encoder, error)

// DecoderFactory allocates a fresh decoder.
type DecoderFactory func() (Decoder, error)

// Registry maps MIME kinds to codec factories.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]EncoderFactory
	decoders map[string]DecoderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[string]EncoderFactory),
		decoders: make(map[string]DecoderFactory),
	}
}

// RegisterEncoder sets the encoder factory for mime, replacing any previous one.
func (r *Registry) RegisterEncoder(mime string, f EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[mime] = f
}

// RegisterDecoder sets the decoder factory for mime, replacing any previous one.
func (r *Registry) RegisterDecoder(mime string, f DecoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[mime] = f
}

// NewEncoder allocates an encoder producing mime. Allocation failures are
// InitErrors.
func (r *Registry) NewEncoder(mime string) (Encoder, error) {
	r.mu.RLock()
	f, ok := r.encoders[mime]
	r.mu.RUnlock()
	if !ok {
		return nil, media.InitError("codec.new_encoder", nil, "no encoder for %s", mime)
	}
	enc, err := f()
	if err != nil {
		return nil, media.Coerce(err, media.ErrCodeInit, "codec.new_encoder")
	}
	return enc, nil
}

// NewDecoder allocates a decoder consuming mime.
func (r *Registry) NewDecoder(mime string) (Decoder, error) {
	r.mu.RLock()
	f, ok := r.decoders[mime]
	r.mu.RUnlock()
	if !ok {
		return nil, media.InitError("codec.new_decoder", nil, "no decoder for %s", mime)
	}
	dec, err := f()
	if err != nil {
		return nil, media.Coerce(err, media.ErrCodeInit, "codec.new_decoder")
	}
	return dec, nil
}

// HasDecoder reports whether mime can be decoded.
func (r *Registry) HasDecoder(mime string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[mime]
	return ok
}

// EncoderMIMEs lists encodable MIME kinds, sorted.
func (r *Registry) EncoderMIMEs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.encoders))
	for m := range r.encoders {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// DecoderMIMEs lists decodable MIME kinds, sorted.
func (r *Registry) DecoderMIMEs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for m := range r.decoders {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Drain calls fn for every item of seq and stops at the first error from
// either side.
func Drain[T any](seq iter.Seq2[T, error], fn func(T) error) error {
	for item, err := range seq {
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// Fail returns a sequence yielding only err.
func Fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
