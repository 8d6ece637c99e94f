package session

import (
	"bufio"
	"context"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// DecodeRequest names the input container and the raw dump paths. An empty
// output path skips that track.
type DecodeRequest struct {
	Input       string `json:"input"`
	VideoOutput string `json:"video_output,omitempty"`
	AudioOutput string `json:"audio_output,omitempty"`
}

// DecodedTrack reports one decoded track.
type DecodedTrack struct {
	Kind    media.Kind        `json:"-"`
	Input   media.TrackFormat `json:"input"`
	Output  media.TrackFormat `json:"output"`
	Path    string            `json:"path"`
	Samples int64             `json:"samples"`
	Units   int64             `json:"units"`
	Bytes   int64             `json:"bytes"`
}

// DecodeSession dumps the tracks of one container as raw streams.
type DecodeSession struct {
	id      string
	req     DecodeRequest
	opts    Options
	logger  logging.Logger
	machine *machine

	tracks atomic.Pointer[[]DecodedTrack]
}

// NewDecodeSession creates an idle session for req.
func NewDecodeSession(req DecodeRequest, opts Options) *DecodeSession {
	opts = opts.withDefaults()
	id := newID(KindDecode)
	return &DecodeSession{
		id:      id,
		req:     req,
		opts:    opts,
		logger:  opts.Logger,
		machine: newMachine(KindDecode, id, opts.OnStateChange),
	}
}

// Decode runs a fresh DecodeSession for req.
func Decode(ctx context.Context, req DecodeRequest, opts Options) error {
	return NewDecodeSession(req, opts).Run(ctx)
}

func (d *DecodeSession) ID() string   { return d.id }
func (d *DecodeSession) State() State { return d.machine.load() }

// Tracks reports the decoded tracks after a successful Run.
func (d *DecodeSession) Tracks() []DecodedTrack {
	if p := d.tracks.Load(); p != nil {
		return *p
	}
	return nil
}

// Run decodes every selected track in parallel. Outputs appear at their
// destinations only if every track reached end-of-stream; otherwise
// nothing is left behind.
func (d *DecodeSession) Run(ctx context.Context) error {
	if !d.machine.transition(StateIdle, StateConfiguring) {
		return media.InitError("decode.run", nil, "session is %s", d.machine.load())
	}
	results, err := d.run(ctx)
	if err != nil {
		d.machine.fail(err)
		d.logger.Warn("Decode failed", "id", d.id, "input", d.req.Input, "error", err)
		return err
	}
	d.tracks.Store(&results)
	d.machine.transition(StateDraining, StateClosed)
	for _, t := range results {
		d.logger.Info("Track decoded", "id", d.id, "track", t.Kind.String(), "path", t.Path,
			"samples", t.Samples, "units", t.Units, "bytes", t.Bytes)
	}
	return nil
}

type decodeTrack struct {
	index   int
	dest    string
	decoder codec.Decoder
	result  DecodedTrack
	eos     bool
}

func (d *DecodeSession) run(ctx context.Context) ([]DecodedTrack, error) {
	const op = "decode.run"

	demux, err := container.OpenWithLogger(d.req.Input, logging.GetLogger("container"))
	if err != nil {
		return nil, err
	}
	defer demux.Close()

	tracks, err := d.plan(demux.Tracks())
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, t := range tracks {
			t.decoder.Release()
		}
	}()

	for _, t := range tracks {
		out, err := t.decoder.Configure(ctx, t.result.Input)
		if err != nil {
			return nil, media.Coerce(err, media.ErrCodeInit, op)
		}
		t.result.Output = out
	}

	files := make([]staged, 0, len(tracks))
	writers := make([]*bufio.Writer, len(tracks))
	temps := make([]func() error, len(tracks))
	for i, t := range tracks {
		f, err := tempFile(op, t.dest)
		if err != nil {
			for _, c := range temps[:i] {
				c()
			}
			discard(files)
			return nil, err
		}
		files = append(files, staged{temp: f.Name(), dest: t.dest})
		writers[i] = bufio.NewWriterSize(f, 1<<20)
		temps[i] = finalizer(op, f, writers[i])
	}

	d.machine.transition(StateConfiguring, StateRunning)

	// Sibling failure stops the other tracks early; the caller's context
	// does not.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for i, t := range tracks {
		g.Go(func() error {
			err := t.decode(gctx, demux.Samples(t.index), writers[i])
			if cerr := temps[i](); err == nil {
				err = cerr
			}
			return err
		})
	}
	err = g.Wait()
	d.machine.transition(StateRunning, StateDraining)
	if err != nil {
		discard(files)
		return nil, err
	}
	if err := commit(op, files); err != nil {
		return nil, err
	}

	results := make([]DecodedTrack, len(tracks))
	for i, t := range tracks {
		results[i] = t.result
	}
	return results, nil
}

// plan picks the first decodable track of each kind that has a
// destination.
func (d *DecodeSession) plan(formats []media.TrackFormat) ([]*decodeTrack, error) {
	const op = "decode.plan"
	dests := map[media.Kind]string{
		media.KindVideo: d.req.VideoOutput,
		media.KindAudio: d.req.AudioOutput,
	}
	if d.req.VideoOutput != "" && filepath.Clean(d.req.VideoOutput) == filepath.Clean(d.req.AudioOutput) {
		return nil, media.InitError(op, nil, "video and audio outputs are the same file")
	}

	var tracks []*decodeTrack
	release := func() {
		for _, t := range tracks {
			t.decoder.Release()
		}
	}
	seen := map[media.Kind]bool{}
	for i, f := range formats {
		dest := dests[f.Kind]
		if dest == "" || seen[f.Kind] || !d.opts.Codecs.HasDecoder(f.MIME) {
			continue
		}
		dec, err := d.opts.Codecs.NewDecoder(f.MIME)
		if err != nil {
			release()
			return nil, err
		}
		seen[f.Kind] = true
		tracks = append(tracks, &decodeTrack{
			index:   i,
			dest:    dest,
			decoder: dec,
			result:  DecodedTrack{Kind: f.Kind, Input: f, Path: dest},
		})
	}
	if len(tracks) == 0 {
		return nil, media.InitError(op, nil, "no decodable track in %s", d.req.Input)
	}
	return tracks, nil
}

func (t *decodeTrack) decode(ctx context.Context, samples iter.Seq2[media.Sample, error], w *bufio.Writer) error {
	const op = "decode.track"
	write := func(u media.RawUnit) error {
		if u.EndOfStream {
			t.eos = true
		}
		if len(u.Payload) == 0 {
			return nil
		}
		if _, err := w.Write(u.Payload); err != nil {
			return media.IOError(op, err, "")
		}
		t.result.Units++
		t.result.Bytes += int64(len(u.Payload))
		return nil
	}

	for s, err := range samples {
		if err != nil {
			return media.Coerce(err, media.ErrCodeIO, op)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t.result.Samples++
		if err := codec.Drain(t.decoder.Decode(s), write); err != nil {
			return media.Coerce(err, media.ErrCodeCodec, op)
		}
	}
	if err := codec.Drain(t.decoder.SignalEndOfStream(), write); err != nil {
		return media.Coerce(err, media.ErrCodeCodec, op)
	}
	if !t.eos {
		return media.CodecError(op, nil, "%s decoder ended without end-of-stream", t.result.Kind)
	}
	return nil
}

// finalizer flushes, syncs and closes f once.
func finalizer(op string, f *os.File, w *bufio.Writer) func() error {
	var done bool
	return func() error {
		if done {
			return nil
		}
		done = true
		err := w.Flush()
		if err == nil {
			err = f.Sync()
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return media.IOError(op, err, "")
		}
		return nil
	}
}
