package mkv

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/at-wat/ebml-go"

	"github.com/wasd845/AVGraphics/internal/media"
)

const (
	maxClusterDuration = 1000            // ms
	maxClusterSize     = 4 * 1024 * 1024 // bytes
)

// Output is where a Writer puts the file. The header is rewritten in place
// on Finish, hence WriterAt.
type Output interface {
	io.Writer
	io.WriterAt
}

type trackState struct {
	uid     uint64
	format  media.TrackFormat
	samples int64
	bytes   int64
	first   int64
	last    int64
}

// Writer produces a Matroska file. It is not safe for concurrent use.
type Writer struct {
	out Output

	head      header
	headerLen int
	segStart  int64
	offset    int64

	tracks []trackState
	cur    *cluster
	size   int
	cues   []cuePoint

	first, last int64
	seen        bool
	began       bool
}

// NewWriter creates a writer on out.
func NewWriter(out Output) *Writer {
	return &Writer{out: out}
}

// Begin writes the EBML header, segment info and track entries. Track i of
// formats is written as track number i+1.
func (w *Writer) Begin(formats []media.TrackFormat) error {
	if w.began {
		return fmt.Errorf("mkv: header already written")
	}
	if len(formats) == 0 {
		return fmt.Errorf("mkv: no tracks")
	}

	entries := make([]trackEntry, 0, len(formats))
	for i, f := range formats {
		uid := rand.Uint64() | 1
		e, err := entryFor(i+1, uid, f)
		if err != nil {
			return fmt.Errorf("mkv: %w", err)
		}
		entries = append(entries, e)
		w.tracks = append(w.tracks, trackState{uid: uid, format: f, first: -1})
	}

	w.head = header{
		Header: ebmlHeader(),
		Segment: segmentHead{
			Info: info{
				TimecodeScale: timecodeScale,
				MuxingApp:     appName,
				WritingApp:    appName,
			},
			Tracks: tracks{TrackEntry: entries},
		},
	}

	var buf bytes.Buffer
	if err := ebml.Marshal(&w.head, &buf); err != nil {
		return fmt.Errorf("mkv: marshal header: %w", err)
	}
	// Cue positions are relative to the first byte of Segment data, which
	// is where Info starts.
	start := bytes.Index(buf.Bytes(), idInfo)
	if start < 0 {
		return fmt.Errorf("mkv: segment info missing from header")
	}

	if err := w.write(buf.Bytes()); err != nil {
		return err
	}
	w.headerLen = buf.Len()
	w.segStart = int64(start)
	w.began = true
	return nil
}

// WriteSample appends s to track. The caller enforces per-track ordering.
func (w *Writer) WriteSample(track int, s media.Sample) error {
	if !w.began {
		return fmt.Errorf("mkv: header not written")
	}
	if track < 0 || track >= len(w.tracks) {
		return fmt.Errorf("mkv: unknown track %d", track)
	}

	pts := max(s.PTS, 0)
	ms := pts / 1000

	if w.cur != nil {
		rel := ms - int64(w.cur.Timecode)
		if rel < math.MinInt16 || rel > math.MaxInt16 || rel >= maxClusterDuration || w.size >= maxClusterSize {
			if err := w.flushCluster(); err != nil {
				return err
			}
		}
	}
	if w.cur == nil {
		w.cur = &cluster{Timecode: uint64(ms)}
		w.size = 0
	}

	w.cur.SimpleBlock = append(w.cur.SimpleBlock, ebml.Block{
		TrackNumber: uint64(track + 1),
		Timecode:    int16(ms - int64(w.cur.Timecode)),
		Keyframe:    s.KeyFrame,
		Data:        [][]byte{s.Payload},
	})
	w.size += len(s.Payload)

	t := &w.tracks[track]
	t.samples++
	t.bytes += int64(len(s.Payload))
	if t.first < 0 {
		t.first = pts
	}
	t.last = pts

	if !w.seen || pts < w.first {
		w.first = pts
	}
	w.last = max(w.last, pts)
	w.seen = true
	return nil
}

// Finish writes the last cluster, the cue index and per-track tags, then
// patches the segment duration into the header. The output is not closed.
func (w *Writer) Finish() error {
	if !w.began {
		return fmt.Errorf("mkv: header not written")
	}
	if err := w.flushCluster(); err != nil {
		return err
	}

	trailer := struct {
		Cues cues `ebml:"Cues"`
		Tags tags `ebml:"Tags"`
	}{
		Cues: cues{CuePoint: w.cues},
		Tags: w.trackTags(),
	}
	var buf bytes.Buffer
	if err := ebml.Marshal(&trailer, &buf); err != nil {
		return fmt.Errorf("mkv: marshal trailer: %w", err)
	}
	if err := w.write(buf.Bytes()); err != nil {
		return err
	}

	w.head.Segment.Info.Duration = float64(w.Duration()) / 1000
	buf.Reset()
	if err := ebml.Marshal(&w.head, &buf); err != nil {
		return fmt.Errorf("mkv: marshal header: %w", err)
	}
	if buf.Len() != w.headerLen {
		return fmt.Errorf("mkv: header changed size from %d to %d bytes", w.headerLen, buf.Len())
	}
	if _, err := w.out.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("mkv: rewrite header: %w", err)
	}
	return nil
}

// Duration is the span between the earliest and the latest sample, in
// microseconds.
func (w *Writer) Duration() int64 {
	if !w.seen {
		return 0
	}
	return w.last - w.first
}

// Bitrate is the average bitrate of track in bits per second. Tracks with
// a single sample report the configured format bitrate.
func (w *Writer) Bitrate(track int) int {
	t := w.tracks[track]
	span := t.last - t.first
	if t.samples < 2 || span <= 0 {
		return t.format.Bitrate
	}
	return int(t.bytes * 8 * 1_000_000 / span)
}

func (w *Writer) trackTags() tags {
	var out tags
	for i, t := range w.tracks {
		out.Tag = append(out.Tag, tag{
			Targets: targets{TagTrackUID: []uint64{t.uid}},
			SimpleTag: []simpleTag{
				{TagName: tagBitrate, TagString: strconv.Itoa(w.Bitrate(i))},
				{TagName: tagSampleCount, TagString: strconv.FormatInt(t.samples, 10)},
			},
		})
	}
	return out
}

func (w *Writer) flushCluster() error {
	if w.cur == nil || len(w.cur.SimpleBlock) == 0 {
		w.cur = nil
		return nil
	}

	wrapped := struct {
		Cluster cluster `ebml:"Cluster"`
	}{Cluster: *w.cur}
	var buf bytes.Buffer
	if err := ebml.Marshal(&wrapped, &buf); err != nil {
		return fmt.Errorf("mkv: marshal cluster: %w", err)
	}

	w.cues = append(w.cues, cuePoint{
		CueTime: w.cur.Timecode,
		CueTrackPositions: []cueTrackPosition{{
			CueTrack:           w.cur.SimpleBlock[0].TrackNumber,
			CueClusterPosition: uint64(w.offset - w.segStart),
		}},
	})
	w.cur = nil
	return w.write(buf.Bytes())
}

func (w *Writer) write(b []byte) error {
	n, err := w.out.Write(b)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("mkv: write: %w", err)
	}
	return nil
}
