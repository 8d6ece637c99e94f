package container

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"os"
	"sync"

	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

const probeSize = 16

// TrackDemuxer reads one input container.
type TrackDemuxer struct {
	path    string
	format  Format
	reader  Reader
	release func()
	once    sync.Once
}

// Open claims and parses path. A missing or unreadable file is an IOError;
// a file with no representable tracks is an InitError.
func Open(path string) (*TrackDemuxer, error) {
	return OpenWithLogger(path, nil)
}

// OpenWithLogger is Open with an explicit logger for skipped tracks.
func OpenWithLogger(path string, logger logging.Logger) (*TrackDemuxer, error) {
	const op = "container.open"
	if logger == nil {
		logger = logging.GetLogger("container")
	}

	abs, release, err := claim(op, claimInput, path)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*TrackDemuxer, error) {
		release()
		return nil, err
	}

	file, err := os.Open(abs)
	if err != nil {
		return fail(media.IOError(op, err, ""))
	}
	defer file.Close()

	br := bufio.NewReader(file)
	head, err := br.Peek(probeSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return fail(media.IOError(op, err, "read header"))
	}
	format, ok := probeFormat(head)
	if !ok {
		return fail(media.InitError(op, nil, "%s is not a known container", abs))
	}

	reader, err := format.Read(br)
	if err != nil {
		return fail(media.InitError(op, err, "parse %s", abs))
	}
	if skipper, ok := reader.(interface{ Skipped() []error }); ok {
		for _, err := range skipper.Skipped() {
			logger.Warn("Skipping track", "path", abs, "error", err)
		}
	}
	if len(reader.Tracks()) == 0 {
		return fail(media.InitError(op, nil, "%s has no decodable tracks", abs))
	}

	logger.Debug("Container opened", "path", abs, "format", format.Name, "tracks", len(reader.Tracks()))
	return &TrackDemuxer{path: abs, format: format, reader: reader, release: release}, nil
}

// Path is the absolute input path.
func (d *TrackDemuxer) Path() string {
	return d.path
}

// Format is the backend name that recognised the file.
func (d *TrackDemuxer) Format() string {
	return d.format.Name
}

// Tracks returns the stored track formats. Index i is the track argument of
// Samples.
func (d *TrackDemuxer) Tracks() []media.TrackFormat {
	return d.reader.Tracks()
}

// Samples yields the samples of one track with non-decreasing PTS. Different
// tracks may be iterated concurrently.
func (d *TrackDemuxer) Samples(track int) iter.Seq2[media.Sample, error] {
	return d.reader.Samples(track)
}

// Close releases the input claim. Safe to call more than once.
func (d *TrackDemuxer) Close() error {
	d.once.Do(d.release)
	return nil
}
