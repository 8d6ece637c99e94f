package mkv

import (
	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

// Element IDs looked up in marshalled bytes.
var (
	idInfo = []byte{0x15, 0x49, 0xA9, 0x66}
	idEBML = []byte{0x1A, 0x45, 0xDF, 0xA3}
)

const (
	trackTypeVideo = 1
	trackTypeAudio = 2

	codecAVC       = "V_MPEG4/ISO/AVC"
	codecRawVideo  = "V_UNCOMPRESSED"
	codecPCM       = "A_PCM/INT/LIT"
	codecPCMU      = "A_PCM/MULAW"
	codecPCMA      = "A_PCM/ALAW"
	timecodeScale  = 1_000_000 // one millisecond
	appName        = "AVGraphics"
	tagBitrate     = "BPS"
	tagSampleCount = "NUMBER_OF_FRAMES"
)

type info struct {
	TimecodeScale uint64  `ebml:"TimecodeScale"`
	Duration      float64 `ebml:"Duration"`
	MuxingApp     string  `ebml:"MuxingApp"`
	WritingApp    string  `ebml:"WritingApp"`
}

type audio struct {
	SamplingFrequency float64 `ebml:"SamplingFrequency"`
	Channels          uint64  `ebml:"Channels"`
	BitDepth          uint64  `ebml:"BitDepth,omitempty"`
}

type trackEntry struct {
	Name            string      `ebml:"Name,omitempty"`
	TrackNumber     uint64      `ebml:"TrackNumber"`
	TrackUID        uint64      `ebml:"TrackUID"`
	CodecID         string      `ebml:"CodecID"`
	CodecPrivate    []byte      `ebml:"CodecPrivate,omitempty"`
	TrackType       uint64      `ebml:"TrackType"`
	DefaultDuration uint64      `ebml:"DefaultDuration,omitempty"`
	Video           *webm.Video `ebml:"Video,omitempty"`
	Audio           *audio      `ebml:"Audio,omitempty"`
}

type tracks struct {
	TrackEntry []trackEntry `ebml:"TrackEntry"`
}

type cluster struct {
	Timecode    uint64       `ebml:"Timecode"`
	SimpleBlock []ebml.Block `ebml:"SimpleBlock"`
}

type cueTrackPosition struct {
	CueTrack           uint64 `ebml:"CueTrack"`
	CueClusterPosition uint64 `ebml:"CueClusterPosition"`
}

type cuePoint struct {
	CueTime           uint64             `ebml:"CueTime"`
	CueTrackPositions []cueTrackPosition `ebml:"CueTrackPositions"`
}

type cues struct {
	CuePoint []cuePoint `ebml:"CuePoint"`
}

type targets struct {
	TagTrackUID []uint64 `ebml:"TagTrackUID"`
}

type simpleTag struct {
	TagName   string `ebml:"TagName"`
	TagString string `ebml:"TagString"`
}

type tag struct {
	Targets   targets     `ebml:"Targets"`
	SimpleTag []simpleTag `ebml:"SimpleTag"`
}

type tags struct {
	Tag []tag `ebml:"Tag"`
}

// header is what the writer emits at Begin: the EBML header and an
// unknown-size Segment holding Info and Tracks. Clusters, Cues and Tags
// follow as further Segment children.
type header struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment segmentHead     `ebml:"Segment,size=unknown"`
}

type segmentHead struct {
	Info   info   `ebml:"Info"`
	Tracks tracks `ebml:"Tracks"`
}

// document is the read-side view of a whole file.
type document struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment segment         `ebml:"Segment"`
}

type segment struct {
	Info    info      `ebml:"Info"`
	Tracks  tracks    `ebml:"Tracks"`
	Cluster []cluster `ebml:"Cluster"`
	Cues    cues      `ebml:"Cues"`
	Tags    tags      `ebml:"Tags"`
}

func ebmlHeader() webm.EBMLHeader {
	return webm.EBMLHeader{
		EBMLVersion:        1,
		EBMLReadVersion:    1,
		EBMLMaxIDLength:    4,
		EBMLMaxSizeLength:  8,
		DocType:            "matroska",
		DocTypeVersion:     4,
		DocTypeReadVersion: 2,
	}
}
