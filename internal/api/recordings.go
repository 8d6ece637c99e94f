package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/wasd845/AVGraphics/internal/api/models"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/recorder"
	"github.com/wasd845/AVGraphics/internal/session"
)

func (s *Server) registerRecordingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "start-recording",
		Method:        http.MethodPost,
		Path:          "/api/recordings",
		Summary:       "Start Recording",
		Description:   "Start recording the test pattern or the capture devices into a container file. Only one recording runs at a time.",
		Tags:          []string{"recordings"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 409, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.RecordingRequest) (*models.RecordingResponse, error) {
		req, err := recordingRequest(input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}

		// The session outlives the request.
		sess, err := s.recorder.Start(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, mapMediaError(err)
		}
		return &models.RecordingResponse{Body: recordingData(sess.Stats())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-current-recording",
		Method:      http.MethodGet,
		Path:        "/api/recordings/current",
		Summary:     "Current Recording",
		Description: "Get the state and counters of the active recording, or of the last one when nothing is recording",
		Tags:        []string{"recordings"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.RecordingResponse, error) {
		sess, ok := s.recorder.Current()
		if !ok {
			sess, ok = s.recorder.Last()
		}
		if !ok {
			return nil, huma.Error404NotFound(recorder.ErrNoRecording.Error())
		}
		return &models.RecordingResponse{Body: recordingData(sess.Stats())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-recording",
		Method:        http.MethodDelete,
		Path:          "/api/recordings/current",
		Summary:       "Stop Recording",
		Description:   "Stop the active recording. The file is finalized in the background; stop_pending is set while the minimum duration has not elapsed.",
		Tags:          []string{"recordings"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 404, 409, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.RecordingResponse, error) {
		sess, err := s.recorder.Stop()
		if err != nil {
			return nil, mapMediaError(err)
		}
		return &models.RecordingResponse{Body: recordingData(sess.Stats())}, nil
	})
}

func recordingRequest(body models.RecordingRequestData) (recorder.Request, error) {
	req := recorder.Request{
		Source:       recorder.Source(body.Source),
		OutputPath:   body.OutputPath,
		Width:        body.Width,
		Height:       body.Height,
		FrameRate:    body.FrameRate,
		VideoBitrate: body.VideoBitrate,
		SampleRate:   body.SampleRate,
		Channels:     body.Channels,
		VideoDevice:  body.VideoDevice,
		AudioDevice:  body.AudioDevice,
		InputFormat:  body.InputFormat,
		Duration:     time.Duration(body.DurationSeconds * float64(time.Second)),
	}
	if body.PixelFormat != "" {
		pix, err := media.ParsePixelFormat(body.PixelFormat)
		if err != nil {
			return recorder.Request{}, err
		}
		req.PixelFormat = pix
	}
	return req, nil
}

func recordingData(st session.RecordingStats) models.RecordingData {
	return models.RecordingData{
		ID:          st.ID,
		State:       st.State.String(),
		Path:        st.Path,
		StartedAt:   st.StartedAt,
		Seconds:     st.Duration.Seconds(),
		StopPending: st.StopPending,
		Video:       trackData(st.Video),
		Audio:       trackData(st.Audio),
	}
}

func trackData(t session.TrackStats) models.TrackData {
	return models.TrackData{
		Accepted:      t.Accepted,
		DroppedFull:   t.DroppedFull,
		DroppedClosed: t.DroppedClosed,
		DroppedIdle:   t.DroppedIdle,
		Encoded:       t.Encoded,
		Written:       t.Written,
		Bytes:         t.Bytes,
		LastPTS:       float64(t.LastPTS) / 1e6,
	}
}

// mapMediaError maps domain errors to HTTP errors
func mapMediaError(err error) error {
	switch {
	case errors.Is(err, recorder.ErrBusy):
		return huma.Error409Conflict(err.Error(), err)
	case errors.Is(err, recorder.ErrNoRecording):
		return huma.Error404NotFound(err.Error(), err)
	}

	var merr *media.Error
	if !errors.As(err, &merr) {
		return huma.Error500InternalServerError("internal server error", err)
	}
	switch merr.Code {
	case media.ErrCodeInit:
		return huma.Error400BadRequest(merr.Error(), err)
	case media.ErrCodeNotRunning:
		return huma.Error409Conflict(merr.Error(), err)
	default:
		return huma.Error500InternalServerError(merr.Error(), err)
	}
}
