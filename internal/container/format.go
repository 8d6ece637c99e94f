package container

import (
	"io"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/wasd845/AVGraphics/internal/container/mkv"
	"github.com/wasd845/AVGraphics/internal/media"
)

// DefaultFormat is used when Options.Format is empty.
const DefaultFormat = "mkv"

// Output is the file a Writer puts its bytes in.
type Output interface {
	io.Writer
	io.WriterAt
}

// Writer is a container backend for one output file.
type Writer interface {
	// Begin writes the header. Track i of formats is addressed as i.
	Begin(formats []media.TrackFormat) error
	WriteSample(track int, s media.Sample) error
	// Finish writes trailing metadata. The caller closes the file.
	Finish() error
}

// Reader is a container backend for one parsed input file.
type Reader interface {
	Tracks() []media.TrackFormat
	Samples(track int) iter.Seq2[media.Sample, error]
}

// Format is a named container backend.
type Format struct {
	Name    string
	Aliases []string
	// Probe recognises the format from the first bytes of a file.
	Probe     func(head []byte) bool
	NewWriter func(out Output) Writer
	Read      func(r io.Reader) (Reader, error)
}

var registry = struct {
	sync.RWMutex
	formats []Format
}{
	formats: []Format{{
		Name:      "mkv",
		Aliases:   []string{"matroska"},
		Probe:     mkv.Probe,
		NewWriter: func(out Output) Writer { return mkv.NewWriter(out) },
		Read: func(r io.Reader) (Reader, error) {
			return mkv.Read(r)
		},
	}},
}

// RegisterFormat adds a backend, replacing one with the same name.
func RegisterFormat(f Format) {
	registry.Lock()
	defer registry.Unlock()
	registry.formats = slices.DeleteFunc(registry.formats, func(existing Format) bool {
		return existing.Name == f.Name
	})
	registry.formats = append(registry.formats, f)
}

// LookupFormat finds a backend by name or alias, case-insensitively.
func LookupFormat(name string) (Format, bool) {
	name = strings.ToLower(name)
	registry.RLock()
	defer registry.RUnlock()
	for _, f := range registry.formats {
		if f.Name == name || slices.Contains(f.Aliases, name) {
			return f, true
		}
	}
	return Format{}, false
}

// Formats lists the registered backend names.
func Formats() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.formats))
	for _, f := range registry.formats {
		names = append(names, f.Name)
	}
	slices.Sort(names)
	return names
}

func probeFormat(head []byte) (Format, bool) {
	registry.RLock()
	defer registry.RUnlock()
	for _, f := range registry.formats {
		if f.Probe != nil && f.Probe(head) {
			return f, true
		}
	}
	return Format{}, false
}
