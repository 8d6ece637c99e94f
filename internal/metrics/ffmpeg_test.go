package metrics

import (
	"sync"
	"testing"
)

func TestFFmpegProgressCache(t *testing.T) {
	id := "avc-encode-test-1"
	DeleteFFmpegProgress(id)

	if p := GetFFmpegProgress(id); p != nil {
		t.Error("expected nil for unknown process")
	}

	SetFFmpegFrames(id, 300)
	SetFFmpegFPS(id, 30.0)
	SetFFmpegBitrate(id, 2048.5)
	SetFFmpegDroppedFrames(id, 5)
	SetFFmpegDuplicateFrames(id, 2)
	SetFFmpegSpeed(id, 1.5)

	p := GetFFmpegProgress(id)
	if p == nil {
		t.Fatal("expected progress")
	}
	want := FFmpegProgress{Frames: 300, FPS: 30, BitrateKbps: 2048.5, DroppedFrames: 5, DuplicateFrames: 2, Speed: 1.5}
	if *p != want {
		t.Errorf("progress = %+v, want %+v", *p, want)
	}

	p.FPS = 999
	if GetFFmpegProgress(id).FPS != 30.0 {
		t.Error("cache was modified through a returned copy")
	}

	DeleteFFmpegProgress(id)
	if GetFFmpegProgress(id) != nil {
		t.Error("expected nil after delete")
	}
}

func TestGetAllFFmpegProgress(t *testing.T) {
	DeleteFFmpegProgress("proc-a")
	DeleteFFmpegProgress("proc-b")
	defer DeleteFFmpegProgress("proc-a")
	defer DeleteFFmpegProgress("proc-b")

	SetFFmpegFPS("proc-a", 25.0)
	SetFFmpegFPS("proc-b", 60.0)

	all := GetAllFFmpegProgress()
	if all["proc-a"] == nil || all["proc-a"].FPS != 25.0 {
		t.Errorf("proc-a = %+v, want FPS 25", all["proc-a"])
	}
	if all["proc-b"] == nil || all["proc-b"].FPS != 60.0 {
		t.Errorf("proc-b = %+v, want FPS 60", all["proc-b"])
	}

	all["proc-a"].FPS = 999
	if GetAllFFmpegProgress()["proc-a"].FPS != 25.0 {
		t.Error("cache was modified")
	}
}

func TestFFmpegProgressConcurrency(t *testing.T) {
	id := "concurrent-proc"
	DeleteFFmpegProgress(id)
	defer DeleteFFmpegProgress(id)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(val float64) {
			defer wg.Done()
			SetFFmpegFPS(id, val)
			SetFFmpegFrames(id, val)
			_ = GetFFmpegProgress(id)
			_ = GetAllFFmpegProgress()
		}(float64(i))
	}
	wg.Wait()

	if GetFFmpegProgress(id) == nil {
		t.Error("expected progress after concurrent access")
	}
}
