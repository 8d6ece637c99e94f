package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/wasd845/AVGraphics/internal/api/models"
	"github.com/wasd845/AVGraphics/internal/jobs"
	"github.com/wasd845/AVGraphics/internal/session"
)

// Job kinds
const (
	JobDecode    = "decode"
	JobTranscode = "transcode"
)

func (s *Server) registerJobRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submit-decode",
		Method:        http.MethodPost,
		Path:          "/api/decode",
		Summary:       "Decode File",
		Description:   "Queue a job that dumps the tracks of a container file as raw video and raw audio",
		Tags:          []string{"jobs"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 503},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.DecodeRequest) (*models.JobResponse, error) {
		if input.Body.VideoOutput == "" && input.Body.AudioOutput == "" {
			return nil, huma.Error400BadRequest("at least one of video_output and audio_output is required")
		}
		req := session.DecodeRequest{
			Input:       input.Body.Input,
			VideoOutput: input.Body.VideoOutput,
			AudioOutput: input.Body.AudioOutput,
		}
		job, err := s.jobs.Submit(JobDecode, req, decodeJob(req, s.options.Session))
		if err != nil {
			return nil, mapJobError(err)
		}
		return &models.JobResponse{Body: jobData(job)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "submit-transcode",
		Method:        http.MethodPost,
		Path:          "/api/transcode",
		Summary:       "Transcode File",
		Description:   "Queue a job that re-encodes a container file into another container file",
		Tags:          []string{"jobs"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 503},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.TranscodeRequest) (*models.JobResponse, error) {
		if input.Body.Input == input.Body.Output {
			return nil, huma.Error400BadRequest("input and output must differ")
		}
		req := session.TranscodeRequest{
			Input:        input.Body.Input,
			Output:       input.Body.Output,
			VideoMIME:    input.Body.VideoMIME,
			AudioMIME:    input.Body.AudioMIME,
			VideoBitrate: input.Body.VideoBitrate,
		}
		job, err := s.jobs.Submit(JobTranscode, req, transcodeJob(req, s.options.Session))
		if err != nil {
			return nil, mapJobError(err)
		}
		return &models.JobResponse{Body: jobData(job)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/jobs",
		Summary:     "List Jobs",
		Description: "List queued, running and recently finished jobs",
		Tags:        []string{"jobs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.JobListResponse, error) {
		list := s.jobs.List()
		data := make([]models.JobData, len(list))
		for i, job := range list {
			data[i] = jobData(job)
		}
		return &models.JobListResponse{
			Body: models.JobListData{Jobs: data, Count: len(data)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{id}",
		Summary:     "Get Job",
		Description: "Get the state and result of one job",
		Tags:        []string{"jobs"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.JobRequest) (*models.JobResponse, error) {
		job, ok := s.jobs.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("job not found: " + input.ID)
		}
		return &models.JobResponse{Body: jobData(job)}, nil
	})
}

// decodeJob runs a decode session and returns its tracks as the job result.
func decodeJob(req session.DecodeRequest, opts session.Options) jobs.Func {
	return func(ctx context.Context) (any, error) {
		ds := session.NewDecodeSession(req, opts)
		if err := ds.Run(ctx); err != nil {
			return nil, err
		}
		return ds.Tracks(), nil
	}
}

// transcodeJob runs a transcode session and returns its tracks as the job
// result.
func transcodeJob(req session.TranscodeRequest, opts session.Options) jobs.Func {
	return func(ctx context.Context) (any, error) {
		ts := session.NewTranscodeSession(req, opts)
		if err := ts.Run(ctx); err != nil {
			return nil, err
		}
		return ts.Tracks(), nil
	}
}

func jobData(job jobs.Job) models.JobData {
	return models.JobData{
		ID:         job.ID,
		Kind:       job.Kind,
		State:      string(job.State),
		Request:    job.Request,
		Result:     job.Result,
		Error:      job.Error,
		Code:       job.Code,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Seconds:    job.Elapsed().Seconds(),
	}
}

func mapJobError(err error) error {
	if errors.Is(err, jobs.ErrClosed) {
		return huma.Error503ServiceUnavailable(err.Error(), err)
	}
	return huma.Error500InternalServerError("internal server error", err)
}
