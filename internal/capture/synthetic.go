package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/wasd845/AVGraphics/internal/media"
)

// TestPattern generates moving colour bars at a fixed frame rate.
type TestPattern struct {
	Width       int
	Height      int
	PixelFormat media.PixelFormat // defaults to nv21
	FrameRate   int               // defaults to 30
	// Frames stops the source after this many frames. Zero runs until ctx
	// is done.
	Frames int
	Clock  Clock
}

// Kind implements Source.
func (p *TestPattern) Kind() media.Kind { return media.KindVideo }

func (p *TestPattern) pixelFormat() media.PixelFormat {
	if p.PixelFormat == "" {
		return media.PixelNV21
	}
	return p.PixelFormat
}

func (p *TestPattern) frameRate() int {
	if p.FrameRate <= 0 {
		return 30
	}
	return p.FrameRate
}

// Run implements Source.
func (p *TestPattern) Run(ctx context.Context, emit func(media.RawUnit)) error {
	pix := p.pixelFormat()
	switch pix {
	case media.PixelNV21, media.PixelNV12, media.PixelI420:
	default:
		return fmt.Errorf("test pattern does not support %s", pix)
	}
	if pix.FrameSize(p.Width, p.Height) == 0 || p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid geometry %dx%d", p.Width, p.Height)
	}

	clock := clockOr(p.Clock)
	return pace(ctx, time.Second/time.Duration(p.frameRate()), p.Frames, func(i int) {
		emit(media.RawUnit{
			Kind:      media.KindVideo,
			Payload:   p.Frame(i),
			Timestamp: clock(),
		})
	})
}

// bars are BT.601 YUV colour bars: white, yellow, cyan, green, magenta,
// red, blue, black.
var bars = [8][3]byte{
	{235, 128, 128}, {210, 16, 146}, {170, 166, 16}, {145, 54, 34},
	{106, 202, 222}, {81, 90, 240}, {41, 240, 110}, {16, 128, 128},
}

// Frame renders frame i. The bars scroll one column per frame.
func (p *TestPattern) Frame(i int) []byte {
	w, h := p.Width, p.Height
	cw, ch := (w+1)/2, (h+1)/2
	pix := p.pixelFormat()
	buf := make([]byte, pix.FrameSize(w, h))

	bar := func(x int) [3]byte {
		return bars[((x+i)%w)*len(bars)/w]
	}

	for y := range h {
		row := buf[y*w : (y+1)*w]
		for x := range w {
			row[x] = bar(x)[0]
		}
	}

	chroma := buf[w*h:]
	for y := range ch {
		for x := range cw {
			c := bar(2 * x)
			switch pix {
			case media.PixelNV21:
				chroma[2*(y*cw+x)] = c[2]
				chroma[2*(y*cw+x)+1] = c[1]
			case media.PixelNV12:
				chroma[2*(y*cw+x)] = c[1]
				chroma[2*(y*cw+x)+1] = c[2]
			case media.PixelI420:
				chroma[y*cw+x] = c[1]
				chroma[cw*ch+y*cw+x] = c[2]
			}
		}
	}
	return buf
}

// Tone generates an S16LE sine wave in fixed-size chunks.
type Tone struct {
	SampleRate int
	Channels   int
	Frequency  float64       // Hz, defaults to 1000
	Amplitude  float64       // 0..1, defaults to 0.5
	Chunk      time.Duration // defaults to 20ms
	// Chunks stops the source after this many buffers. Zero runs until ctx
	// is done.
	Chunks int
	Clock  Clock
}

// Kind implements Source.
func (t *Tone) Kind() media.Kind { return media.KindAudio }

func (t *Tone) chunk() time.Duration {
	if t.Chunk <= 0 {
		return 20 * time.Millisecond
	}
	return t.Chunk
}

// Run implements Source.
func (t *Tone) Run(ctx context.Context, emit func(media.RawUnit)) error {
	if t.SampleRate <= 0 || t.Channels <= 0 {
		return fmt.Errorf("invalid audio format %d Hz x %d", t.SampleRate, t.Channels)
	}
	clock := clockOr(t.Clock)
	return pace(ctx, t.chunk(), t.Chunks, func(i int) {
		emit(media.RawUnit{
			Kind:      media.KindAudio,
			Payload:   t.Buffer(i),
			Timestamp: clock(),
		})
	})
}

// FramesPerChunk is the number of sample frames in one buffer.
func (t *Tone) FramesPerChunk() int {
	return int(int64(t.SampleRate) * int64(t.chunk()) / int64(time.Second))
}

// Buffer renders chunk i. Phase is continuous across chunks.
func (t *Tone) Buffer(i int) []byte {
	freq := t.Frequency
	if freq <= 0 {
		freq = 1000
	}
	amp := t.Amplitude
	if amp <= 0 || amp > 1 {
		amp = 0.5
	}

	n := t.FramesPerChunk()
	buf := make([]byte, n*t.Channels*media.BytesPerSample)
	first := int64(i) * int64(n)
	for f := range n {
		phase := 2 * math.Pi * freq * float64(first+int64(f)) / float64(t.SampleRate)
		v := uint16(int16(math.Round(amp * math.MaxInt16 * math.Sin(phase))))
		for c := range t.Channels {
			binary.LittleEndian.PutUint16(buf[(f*t.Channels+c)*media.BytesPerSample:], v)
		}
	}
	return buf
}

// pace calls fn once per interval until count calls have been made or ctx
// is done. The first call is immediate.
func pace(ctx context.Context, interval time.Duration, count int, fn func(i int)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; count <= 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(i)
	}
	return nil
}
