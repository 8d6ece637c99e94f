package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "frames",
		Help:      "Frames processed by an ffmpeg codec process",
	}, []string{"process"})

	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current ffmpeg processing rate in frames per second",
	}, []string{"process"})

	ffmpegBitrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "bitrate_kbps",
		Help:      "Current ffmpeg output bitrate",
	}, []string{"process"})

	ffmpegDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by ffmpeg",
	}, []string{"process"})

	ffmpegDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Frames duplicated by ffmpeg",
	}, []string{"process"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "ffmpeg processing speed relative to real time",
	}, []string{"process"})

	// Local cache for the SSE exporter and the API.
	progressCache   = make(map[string]*FFmpegProgress)
	progressCacheMu sync.RWMutex
)

// FFmpegProgress is the last progress block reported by one ffmpeg process.
// Fields ffmpeg did not report keep their previous value.
type FFmpegProgress struct {
	Frames          float64
	FPS             float64
	BitrateKbps     float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetFFmpegFrames sets the processed frame count of a process.
func SetFFmpegFrames(process string, frames float64) {
	ffmpegFrames.WithLabelValues(process).Set(frames)
	updateProgress(process, func(p *FFmpegProgress) { p.Frames = frames })
}

// SetFFmpegFPS sets the current frame rate of a process.
func SetFFmpegFPS(process string, fps float64) {
	ffmpegFPS.WithLabelValues(process).Set(fps)
	updateProgress(process, func(p *FFmpegProgress) { p.FPS = fps })
}

// SetFFmpegBitrate sets the current output bitrate of a process.
func SetFFmpegBitrate(process string, kbps float64) {
	ffmpegBitrate.WithLabelValues(process).Set(kbps)
	updateProgress(process, func(p *FFmpegProgress) { p.BitrateKbps = kbps })
}

// SetFFmpegDroppedFrames sets the dropped frame count of a process.
func SetFFmpegDroppedFrames(process string, count float64) {
	ffmpegDroppedFrames.WithLabelValues(process).Set(count)
	updateProgress(process, func(p *FFmpegProgress) { p.DroppedFrames = count })
}

// SetFFmpegDuplicateFrames sets the duplicated frame count of a process.
func SetFFmpegDuplicateFrames(process string, count float64) {
	ffmpegDuplicateFrames.WithLabelValues(process).Set(count)
	updateProgress(process, func(p *FFmpegProgress) { p.DuplicateFrames = count })
}

// SetFFmpegSpeed sets the processing speed of a process.
func SetFFmpegSpeed(process string, speed float64) {
	ffmpegSpeed.WithLabelValues(process).Set(speed)
	updateProgress(process, func(p *FFmpegProgress) { p.Speed = speed })
}

// DeleteFFmpegProgress removes every series of a process.
func DeleteFFmpegProgress(process string) {
	ffmpegFrames.DeleteLabelValues(process)
	ffmpegFPS.DeleteLabelValues(process)
	ffmpegBitrate.DeleteLabelValues(process)
	ffmpegDroppedFrames.DeleteLabelValues(process)
	ffmpegDuplicateFrames.DeleteLabelValues(process)
	ffmpegSpeed.DeleteLabelValues(process)

	progressCacheMu.Lock()
	delete(progressCache, process)
	progressCacheMu.Unlock()
}

// GetFFmpegProgress returns a copy of the progress of a process, or nil.
func GetFFmpegProgress(process string) *FFmpegProgress {
	progressCacheMu.RLock()
	defer progressCacheMu.RUnlock()
	if p, ok := progressCache[process]; ok {
		dup := *p
		return &dup
	}
	return nil
}

// GetAllFFmpegProgress returns the progress of every live process.
func GetAllFFmpegProgress() map[string]*FFmpegProgress {
	progressCacheMu.RLock()
	defer progressCacheMu.RUnlock()
	result := make(map[string]*FFmpegProgress, len(progressCache))
	for id, p := range progressCache {
		dup := *p
		result[id] = &dup
	}
	return result
}

func updateProgress(process string, update func(*FFmpegProgress)) {
	progressCacheMu.Lock()
	defer progressCacheMu.Unlock()
	p, ok := progressCache[process]
	if !ok {
		p = &FFmpegProgress{}
		progressCache[process] = p
	}
	update(p)
}
