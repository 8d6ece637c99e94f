package mkv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"

	"github.com/at-wat/ebml-go"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Probe reports whether head looks like the start of an EBML document.
func Probe(head []byte) bool {
	return bytes.HasPrefix(head, idEBML)
}

// Reader holds a parsed Matroska file.
type Reader struct {
	formats  []media.TrackFormat
	samples  [][]media.Sample
	skipped  []error
	duration time.Duration
}

// Read parses the whole document from r. A file cut short after its header,
// such as a recording whose drain failed, yields the samples that made it
// to disk.
func Read(r io.Reader) (*Reader, error) {
	var doc document
	if err := ebml.Unmarshal(r, &doc); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("mkv: %w", err)
	}
	if doc.Header.DocType != "" && doc.Header.DocType != "matroska" && doc.Header.DocType != "webm" {
		return nil, fmt.Errorf("mkv: unsupported doc type %q", doc.Header.DocType)
	}

	rd := &Reader{}
	scale := doc.Segment.Info.TimecodeScale
	if scale == 0 {
		scale = timecodeScale
	}
	rd.duration = time.Duration(doc.Segment.Info.Duration * float64(scale))

	bitrates := make(map[uint64]int)
	for _, t := range doc.Segment.Tags.Tag {
		for _, st := range t.SimpleTag {
			if st.TagName != tagBitrate {
				continue
			}
			bps, err := strconv.Atoi(st.TagString)
			if err != nil {
				continue
			}
			for _, uid := range t.Targets.TagTrackUID {
				bitrates[uid] = bps
			}
		}
	}

	index := make(map[uint64]int)
	for _, e := range doc.Segment.Tracks.TrackEntry {
		f, err := formatFor(e)
		if err != nil {
			rd.skipped = append(rd.skipped, err)
			continue
		}
		f.Bitrate = bitrates[e.TrackUID]
		index[e.TrackNumber] = len(rd.formats)
		rd.formats = append(rd.formats, f)
	}
	rd.samples = make([][]media.Sample, len(rd.formats))

	// Block timecodes are in TimecodeScale units; samples use microseconds.
	toMicros := func(tc int64) int64 {
		return max(tc*int64(scale)/1000, 0)
	}
	for _, cl := range doc.Segment.Cluster {
		for _, b := range cl.SimpleBlock {
			track, ok := index[b.TrackNumber]
			if !ok {
				continue
			}
			pts := toMicros(int64(cl.Timecode) + int64(b.Timecode))
			for _, frame := range b.Data {
				rd.samples[track] = append(rd.samples[track], media.Sample{
					Track:    track,
					Payload:  frame,
					PTS:      pts,
					KeyFrame: b.Keyframe,
				})
			}
		}
	}
	return rd, nil
}

// Tracks returns the formats of the representable tracks.
func (r *Reader) Tracks() []media.TrackFormat {
	return r.formats
}

// Skipped lists why tracks present in the file were left out.
func (r *Reader) Skipped() []error {
	return r.skipped
}

// Duration is the segment duration recorded in the header.
func (r *Reader) Duration() time.Duration {
	return r.duration
}

// Samples yields the samples of track in file order.
func (r *Reader) Samples(track int) iter.Seq2[media.Sample, error] {
	return func(yield func(media.Sample, error) bool) {
		if track < 0 || track >= len(r.samples) {
			yield(media.Sample{}, fmt.Errorf("mkv: unknown track %d", track))
			return
		}
		for _, s := range r.samples[track] {
			if !yield(s, nil) {
				return
			}
		}
	}
}
