package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/wasd845/AVGraphics/internal/api/models"
	"github.com/wasd845/AVGraphics/internal/encoders"
	"github.com/wasd845/AVGraphics/internal/encoders/validation"
	"github.com/wasd845/AVGraphics/internal/media"
)

// GetEncodersData reports the probe results and the encoder recordings use.
// With all set it also lists every video encoder ffmpeg knows.
func (s *Server) GetEncodersData(ctx context.Context, all bool) (models.EncoderData, error) {
	data := models.EncoderData{
		Working: []models.EncoderInfo{},
		Failed:  []string{},
	}

	var available []encoders.Encoder
	if all {
		list, err := encoders.ListEncoders(ctx, s.options.FFmpegPath)
		if err != nil {
			return models.EncoderData{}, err
		}
		available = list
		for _, e := range list {
			data.Available = append(data.Available, encoderInfo(e))
		}
	}

	if results := s.selector.Results(); results != nil {
		data.Probed = true
		data.Timestamp = results.Timestamp
		data.FFmpegVersion = results.FFmpegVersion
		data.TestResolution = results.TestResolution
		data.Failed = append(data.Failed, results.H264.Failed...)
		for _, name := range results.H264.Working {
			data.Working = append(data.Working, workingInfo(name, available))
		}
	}

	pix := s.options.PixelFormat
	if pix == "" {
		pix = string(media.PixelNV21)
	}
	sel, err := s.selector.Select(pix)
	if err != nil {
		return models.EncoderData{}, err
	}
	data.Selected = selectionData(sel)
	return data, nil
}

func workingInfo(name string, available []encoders.Encoder) models.EncoderInfo {
	for _, e := range available {
		if e.Name == name {
			return encoderInfo(e)
		}
	}
	// Not listed by ffmpeg: the validator family decides.
	info := models.EncoderInfo{Name: name}
	if v := validation.DefaultRegistry().Find(name); v != nil {
		_, generic := v.(*validation.GenericValidator)
		info.HWAccel = !generic
	}
	return info
}

func encoderInfo(e encoders.Encoder) models.EncoderInfo {
	return models.EncoderInfo{
		Name:        e.Name,
		Description: e.Description,
		HWAccel:     e.HWAccel,
	}
}

func selectionData(sel *encoders.Selection) *models.SelectionData {
	data := &models.SelectionData{
		Encoder:  sel.Encoder,
		Hardware: sel.Hardware,
	}
	if sel.Settings != nil {
		data.GlobalArgs = sel.Settings.GlobalArgs
		data.OutputParams = sel.Settings.OutputParams
		data.VideoFilters = sel.Settings.VideoFilters
	}
	return data
}

// registerEncoderRoutes registers all encoder-related endpoints
func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List Encoders",
		Description: "H.264 encoder probe results and the encoder selected for recording. Run probe-encoders to produce the results.",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *models.EncodersRequest) (*models.EncodersResponse, error) {
		data, err := s.GetEncodersData(ctx, input.All)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get encoders", err)
		}
		return &models.EncodersResponse{Body: data}, nil
	})
}
