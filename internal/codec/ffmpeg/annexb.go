package ffmpeg

import (
	"bytes"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// audStartCode is a start code followed by an access unit delimiter header.
var audStartCode = []byte{0, 0, 1, 9}

// auSplitter cuts an Annex B byte stream at access unit delimiters.
// Emulation prevention guarantees 00 00 01 never appears inside a NAL unit,
// so a match is always a real start code.
type auSplitter struct {
	buf  []byte
	scan int
}

// push appends data and returns every access unit completed by it.
func (s *auSplitter) push(data []byte) [][]byte {
	s.buf = append(s.buf, data...)
	var out [][]byte
	for {
		i := bytes.Index(s.buf[s.scan:], audStartCode)
		if i < 0 {
			s.scan = max(len(s.buf)-len(audStartCode)+1, 0)
			return out
		}
		pos := s.scan + i
		cut := pos
		if cut > 0 && s.buf[cut-1] == 0 {
			cut--
		}
		if cut > 0 {
			out = append(out, s.buf[:cut:cut])
			s.buf = s.buf[cut:]
			pos -= cut
		}
		s.scan = pos + len(audStartCode)
	}
}

// flush returns the trailing access unit, if any.
func (s *auSplitter) flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	au := s.buf
	s.buf, s.scan = nil, 0
	return au
}

// isKeyFrame reports whether au carries an IDR slice.
func isKeyFrame(au []byte) bool {
	var ab h264.AnnexB
	if err := ab.Unmarshal(au); err != nil {
		return false
	}
	for _, nalu := range ab {
		if len(nalu) > 0 && h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}

// spsGeometry returns the coded size announced by the SPS in au.
func spsGeometry(au []byte) (width, height int, ok bool) {
	var ab h264.AnnexB
	if err := ab.Unmarshal(au); err != nil {
		return 0, 0, false
	}
	for _, nalu := range ab {
		if len(nalu) == 0 || h264.NALUType(nalu[0]&0x1F) != h264.NALUTypeSPS {
			continue
		}
		var sps h264.SPS
		if err := sps.Unmarshal(nalu); err != nil {
			return 0, 0, false
		}
		return sps.Width(), sps.Height(), true
	}
	return 0, 0, false
}
