package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// TranscodeRequest names the input and output containers. Empty targets
// fall back to Options, then to the input codec.
type TranscodeRequest struct {
	Input        string `json:"input"`
	Output       string `json:"output"`
	VideoMIME    string `json:"video_mime,omitempty"`
	AudioMIME    string `json:"audio_mime,omitempty"`
	VideoBitrate int    `json:"video_bitrate,omitempty"`
}

// TranscodedTrack reports one transcoded track.
type TranscodedTrack struct {
	Kind    media.Kind        `json:"-"`
	Input   media.TrackFormat `json:"input"`
	Output  media.TrackFormat `json:"output"`
	Samples int64             `json:"samples"`
	Units   int64             `json:"units"`
	Written int64             `json:"written"`
}

// TranscodeSession re-encodes one container into another. Decoded units go
// straight into the encoders.
type TranscodeSession struct {
	id      string
	req     TranscodeRequest
	opts    Options
	logger  logging.Logger
	machine *machine

	tracks atomic.Pointer[[]TranscodedTrack]
}

var errAborted = errors.New("pipeline aborted")

// NewTranscodeSession creates an idle session for req.
func NewTranscodeSession(req TranscodeRequest, opts Options) *TranscodeSession {
	opts = opts.withDefaults()
	id := newID(KindTranscode)
	return &TranscodeSession{
		id:      id,
		req:     req,
		opts:    opts,
		logger:  opts.Logger,
		machine: newMachine(KindTranscode, id, opts.OnStateChange),
	}
}

// Transcode runs a fresh TranscodeSession for req.
func Transcode(ctx context.Context, req TranscodeRequest, opts Options) error {
	return NewTranscodeSession(req, opts).Run(ctx)
}

func (t *TranscodeSession) ID() string   { return t.id }
func (t *TranscodeSession) State() State { return t.machine.load() }

// Tracks reports the transcoded tracks after a successful Run.
func (t *TranscodeSession) Tracks() []TranscodedTrack {
	if p := t.tracks.Load(); p != nil {
		return *p
	}
	return nil
}

// Run transcodes the input. The output is written to a temporary file in
// the destination directory and renamed only on success.
func (t *TranscodeSession) Run(ctx context.Context) error {
	if !t.machine.transition(StateIdle, StateConfiguring) {
		return media.InitError("transcode.run", nil, "session is %s", t.machine.load())
	}
	results, err := t.run(ctx)
	if err != nil {
		t.machine.fail(err)
		t.logger.Warn("Transcode failed", "id", t.id, "input", t.req.Input, "output", t.req.Output, "error", err)
		return err
	}
	t.tracks.Store(&results)
	t.machine.transition(StateDraining, StateClosed)
	t.logger.Info("Transcode finished", "id", t.id, "input", t.req.Input, "output", t.req.Output, "tracks", len(results))
	return nil
}

type transcodeTrack struct {
	index   int
	decoder codec.Decoder
	encoder codec.Encoder
	target  string
	result  TranscodedTrack
	units   chan media.RawUnit
}

func (t *TranscodeSession) run(ctx context.Context) ([]TranscodedTrack, error) {
	const op = "transcode.run"

	if t.req.Output == "" {
		return nil, media.InitError(op, nil, "missing output path")
	}
	if same(t.req.Input, t.req.Output) {
		return nil, media.InitError(op, nil, "input and output are the same file")
	}
	demux, err := container.OpenWithLogger(t.req.Input, logging.GetLogger("container"))
	if err != nil {
		return nil, err
	}
	defer demux.Close()

	if container.Claimed(t.req.Output) {
		return nil, media.IOError(op, nil, "output %s is in use", t.req.Output)
	}

	tracks, err := t.plan(demux.Tracks())
	defer func() {
		for _, tr := range tracks {
			tr.decoder.Release()
			if tr.encoder != nil {
				tr.encoder.Release()
			}
		}
	}()
	if err != nil {
		return nil, err
	}

	for _, tr := range tracks {
		raw, err := tr.decoder.Configure(ctx, tr.result.Input)
		if err != nil {
			return nil, media.Coerce(err, media.ErrCodeInit, op)
		}
		if raw.Kind == media.KindVideo {
			raw.Bitrate = t.videoBitrate(tr.result.Input)
		}
		tr.result.Output = raw
	}

	tmp, err := tempFile(op, t.req.Output)
	if err != nil {
		return nil, err
	}
	tmp.Close()
	out := staged{temp: tmp.Name(), dest: t.req.Output}

	kinds := make([]media.Kind, len(tracks))
	for i, tr := range tracks {
		kinds[i] = tr.result.Kind
	}
	muxer, err := container.Create(out.temp, container.Options{
		Format:         t.opts.Container,
		ExpectedTracks: len(tracks),
		Logger:         logging.GetLogger("container"),
	})
	if err != nil {
		discard([]staged{out})
		return nil, err
	}

	abort := make(chan struct{})
	var abortOnce sync.Once
	stop := func() { abortOnce.Do(func() { close(abort) }) }
	stage := newMuxStage(muxer, kinds, t.logger, func(error) { stop() })
	workers := make([]*encodeWorker, len(tracks))
	for i, tr := range tracks {
		tr.units = make(chan media.RawUnit, t.opts.QueueDepth)
		workers[i] = &encodeWorker{
			slot:    i,
			encoder: tr.encoder,
			input:   tr.result.Output,
			units:   tr.units,
			stage:   stage,
			logger:  t.logger,
		}
		// The worker releases the encoder.
		tr.encoder = nil
	}

	go stage.run()
	for _, w := range workers {
		go w.run(ctx)
	}
	t.machine.transition(StateConfiguring, StateRunning)

	var g errgroup.Group
	for _, tr := range tracks {
		g.Go(func() error {
			defer close(tr.units)
			err := tr.feed(demux, abort)
			if errors.Is(err, errAborted) {
				// The failure that closed abort is reported by its source.
				return nil
			}
			if err != nil {
				stop()
			}
			return err
		})
	}
	feedErr := g.Wait()
	t.machine.transition(StateRunning, StateDraining)

	err = stage.result()
	if err == nil {
		err = feedErr
	}
	if err != nil {
		discard([]staged{out})
		return nil, err
	}
	if err := commit(op, []staged{out}); err != nil {
		return nil, err
	}

	results := make([]TranscodedTrack, len(tracks))
	for i, tr := range tracks {
		tr.result.Output = stage.formats[i]
		tr.result.Written = stage.stats[i].samples.Load()
		results[i] = tr.result
	}
	return results, nil
}

// plan picks the first decodable track of each kind and allocates its
// decoder and target encoder.
func (t *TranscodeSession) plan(formats []media.TrackFormat) ([]*transcodeTrack, error) {
	const op = "transcode.plan"
	var tracks []*transcodeTrack
	seen := map[media.Kind]bool{}
	for i, f := range formats {
		if seen[f.Kind] || !t.opts.Codecs.HasDecoder(f.MIME) {
			continue
		}
		dec, err := t.opts.Codecs.NewDecoder(f.MIME)
		if err != nil {
			return tracks, err
		}
		tr := &transcodeTrack{
			index:   i,
			decoder: dec,
			target:  t.target(f),
			result:  TranscodedTrack{Kind: f.Kind, Input: f},
		}
		tracks = append(tracks, tr)
		if tr.encoder, err = t.opts.Codecs.NewEncoder(tr.target); err != nil {
			return tracks, err
		}
		seen[f.Kind] = true
	}
	if len(tracks) == 0 {
		return nil, media.InitError(op, nil, "no decodable track in %s", t.req.Input)
	}
	return tracks, nil
}

func (t *TranscodeSession) target(in media.TrackFormat) string {
	var mime string
	switch in.Kind {
	case media.KindVideo:
		mime = firstNonEmpty(t.req.VideoMIME, t.opts.TranscodeVideoMIME)
	case media.KindAudio:
		mime = firstNonEmpty(t.req.AudioMIME, t.opts.TranscodeAudioMIME)
	}
	return firstNonEmpty(mime, in.MIME)
}

func (t *TranscodeSession) videoBitrate(in media.TrackFormat) int {
	switch {
	case t.req.VideoBitrate > 0:
		return t.req.VideoBitrate
	case t.opts.TranscodeVideoBitrate > 0:
		return t.opts.TranscodeVideoBitrate
	}
	return in.Bitrate
}

// feed decodes every sample of the track into the encoder worker.
func (tr *transcodeTrack) feed(demux *container.TrackDemuxer, abort <-chan struct{}) error {
	const op = "transcode.decode"
	eos := false
	forward := func(u media.RawUnit) error {
		if u.EndOfStream {
			eos = true
		}
		if len(u.Payload) == 0 {
			return nil
		}
		u.EndOfStream = false
		select {
		case tr.units <- u:
			tr.result.Units++
			return nil
		case <-abort:
			return errAborted
		}
	}

	for s, err := range demux.Samples(tr.index) {
		if err != nil {
			return media.Coerce(err, media.ErrCodeIO, op)
		}
		tr.result.Samples++
		if err := codec.Drain(tr.decoder.Decode(s), forward); err != nil {
			return media.Coerce(err, media.ErrCodeCodec, op)
		}
	}
	if err := codec.Drain(tr.decoder.SignalEndOfStream(), forward); err != nil {
		return media.Coerce(err, media.ErrCodeCodec, op)
	}
	if !eos {
		return media.CodecError(op, nil, "%s decoder ended without end-of-stream", tr.result.Kind)
	}
	return nil
}

func same(a, b string) bool {
	pa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	pb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return pa == pb
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
