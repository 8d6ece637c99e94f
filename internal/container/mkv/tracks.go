package mkv

import (
	"fmt"
	"math"

	"github.com/at-wat/ebml-go/webm"

	"github.com/wasd845/AVGraphics/internal/media"
)

// entryFor maps a track format to its TrackEntry. number is 1-based.
func entryFor(number int, uid uint64, f media.TrackFormat) (trackEntry, error) {
	e := trackEntry{
		TrackNumber: uint64(number),
		TrackUID:    uid,
	}

	switch f.Kind {
	case media.KindVideo:
		e.Name = "Video"
		e.TrackType = trackTypeVideo
		e.Video = &webm.Video{PixelWidth: uint64(f.Width), PixelHeight: uint64(f.Height)}
		if f.FrameRate > 0 {
			e.DefaultDuration = uint64(1e9 / f.FrameRate)
		}
		switch f.MIME {
		case media.MIMEAVC:
			e.CodecID = codecAVC
		case media.MIMERawVideo:
			e.CodecID = codecRawVideo
			e.CodecPrivate = []byte(f.PixelFormat)
		default:
			return e, fmt.Errorf("unsupported video mime %s", f.MIME)
		}
	case media.KindAudio:
		e.Name = "Audio"
		e.TrackType = trackTypeAudio
		e.Audio = &audio{SamplingFrequency: float64(f.SampleRate), Channels: uint64(f.Channels)}
		switch f.MIME {
		case media.MIMERawAudio:
			e.CodecID = codecPCM
			e.Audio.BitDepth = media.BytesPerSample * 8
		case media.MIMEPCMU:
			e.CodecID = codecPCMU
			e.Audio.BitDepth = 8
		case media.MIMEPCMA:
			e.CodecID = codecPCMA
			e.Audio.BitDepth = 8
		default:
			return e, fmt.Errorf("unsupported audio mime %s", f.MIME)
		}
	default:
		return e, fmt.Errorf("unknown track kind %v", f.Kind)
	}
	return e, nil
}

// formatFor is the inverse of entryFor. Tracks that cannot be represented as
// a valid TrackFormat return an error and are skipped by the reader.
func formatFor(e trackEntry) (media.TrackFormat, error) {
	var f media.TrackFormat
	switch e.TrackType {
	case trackTypeVideo:
		if e.Video == nil {
			return f, fmt.Errorf("video track %d has no Video element", e.TrackNumber)
		}
		f.Kind = media.KindVideo
		f.Width = int(e.Video.PixelWidth)
		f.Height = int(e.Video.PixelHeight)
		if e.DefaultDuration > 0 {
			f.FrameRate = int(math.Round(1e9 / float64(e.DefaultDuration)))
		}
		switch e.CodecID {
		case codecAVC:
			f.MIME = media.MIMEAVC
		case codecRawVideo:
			pix, err := media.ParsePixelFormat(string(e.CodecPrivate))
			if err != nil {
				return f, fmt.Errorf("track %d: %w", e.TrackNumber, err)
			}
			f.MIME = media.MIMERawVideo
			f.PixelFormat = pix
		default:
			return f, fmt.Errorf("track %d: unsupported codec %s", e.TrackNumber, e.CodecID)
		}
	case trackTypeAudio:
		if e.Audio == nil {
			return f, fmt.Errorf("audio track %d has no Audio element", e.TrackNumber)
		}
		f.Kind = media.KindAudio
		f.SampleRate = int(e.Audio.SamplingFrequency)
		f.Channels = int(e.Audio.Channels)
		switch e.CodecID {
		case codecPCM:
			if e.Audio.BitDepth != 0 && e.Audio.BitDepth != media.BytesPerSample*8 {
				return f, fmt.Errorf("track %d: unsupported pcm bit depth %d", e.TrackNumber, e.Audio.BitDepth)
			}
			f.MIME = media.MIMERawAudio
		case codecPCMU:
			f.MIME = media.MIMEPCMU
		case codecPCMA:
			f.MIME = media.MIMEPCMA
		default:
			return f, fmt.Errorf("track %d: unsupported codec %s", e.TrackNumber, e.CodecID)
		}
	default:
		return f, fmt.Errorf("track %d: unsupported track type %d", e.TrackNumber, e.TrackType)
	}

	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("track %d: %w", e.TrackNumber, err)
	}
	return f, nil
}
