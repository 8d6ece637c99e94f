package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/wasd845/AVGraphics/internal/api/models"
	"github.com/wasd845/AVGraphics/internal/devices"
)

// GetDevicesData lists the capture devices the detector can see.
func GetDevicesData(d *devices.Detector) (models.DevicesData, error) {
	video, err := d.Video()
	if err != nil {
		return models.DevicesData{}, err
	}
	audio, err := d.Audio()
	if err != nil {
		return models.DevicesData{}, err
	}

	data := models.DevicesData{
		Video: make([]models.VideoDeviceData, 0, len(video)),
		Audio: make([]models.AudioDeviceData, 0, len(audio)),
	}
	for _, v := range video {
		data.Video = append(data.Video, models.VideoDeviceData{Path: v.Path, Name: v.Name, ID: v.ID, Index: v.Index})
	}
	for _, a := range audio {
		data.Audio = append(data.Audio, models.AudioDeviceData{ALSA: a.ALSA, CardID: a.CardID, CardName: a.CardName, Name: a.Name})
	}
	return data, nil
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 and ALSA capture devices usable by the device recording source",
		Tags:        []string{"devices"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DevicesResponse, error) {
		data, err := GetDevicesData(s.devices)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list devices", err)
		}
		return &models.DevicesResponse{Body: data}, nil
	})
}
