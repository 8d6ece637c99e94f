package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/wasd845/AVGraphics/internal/api/models"
	"github.com/wasd845/AVGraphics/internal/devices"
	"github.com/wasd845/AVGraphics/internal/encoders"
	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/jobs"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/recorder"
	"github.com/wasd845/AVGraphics/internal/session"
	"github.com/wasd845/AVGraphics/internal/version"
)

const authRealm = `Basic realm="AVGraphics API"`

// Server is the HTTP API in front of the recorder and the job runner.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	recorder   *recorder.Manager
	jobs       *jobs.Runner
	eventBus   *events.Bus
	selector   *encoders.Selector
	devices    *devices.Detector
	logger     *slog.Logger

	// Request contexts derive from baseCtx so Stop can end SSE streams.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// Options wires the server to the rest of the application.
type Options struct {
	AuthUsername string
	AuthPassword string
	// CORSOrigin defaults to "*".
	CORSOrigin string

	Recorder *recorder.Manager
	Jobs     *jobs.Runner
	EventBus *events.Bus
	// Session is used for decode and transcode jobs.
	Session  session.Options
	Selector *encoders.Selector
	// Devices lists capture devices. Nil inspects the running system.
	Devices *devices.Detector
	// PixelFormat is the recording pixel format reported by /api/encoders.
	PixelFormat string
	FFmpegPath  string

	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, msg := requestCredentials(ctx)
		if msg == "" {
			user, pass, ok := strings.Cut(credentials, ":")
			switch {
			case !ok:
				msg = "Invalid credentials format"
			case user != username || pass != password:
				msg = "Invalid credentials"
			}
		}
		if msg != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
			return
		}

		next(ctx)
	}
}

// requestCredentials reads "user:pass" from the Authorization header, or
// from the auth query parameter for EventSource clients that cannot set
// headers. A non-empty message means the request is rejected.
func requestCredentials(ctx huma.Context) (string, string) {
	encoded := ""
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	} else {
		encoded = ctx.Query("auth")
	}
	if encoded == "" {
		return "", "Authentication required"
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "Invalid credentials format"
	}
	return string(decoded), ""
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("AVGraphics API", version.String())
	config.Info.Description = "Audio/video recording, decoding and transcoding service"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	selector := opts.Selector
	if selector == nil {
		selector = encoders.NewSelector(nil, "", logging.GetLogger("encoders"))
	}

	detector := opts.Devices
	if detector == nil {
		detector = devices.NewDetector()
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	server := &Server{
		api:        api,
		mux:        mux,
		options:    opts,
		recorder:   opts.Recorder,
		jobs:       opts.Jobs,
		eventBus:   opts.EventBus,
		selector:   selector,
		devices:    detector,
		logger:     logging.GetLogger("api"),
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}

	// CORS first, then request logging, then auth.
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Prometheus scrapes without auth.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting AVGraphics API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       s.httpBaseContext,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) httpBaseContext(net.Listener) context.Context {
	return s.baseCtx
}

// Stop ends open event streams and shuts the server down, waiting for
// in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	s.cancelBase()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		recording := false
		if s.recorder != nil {
			_, recording = s.recorder.Current()
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:    "ok",
				Message:   "API is healthy",
				Recording: recording,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	if s.recorder != nil {
		s.registerRecordingRoutes()
	}
	if s.jobs != nil {
		s.registerJobRoutes()
	}
	s.registerEncoderRoutes()
	s.registerDeviceRoutes()
	s.registerLogRoutes()
	if s.eventBus != nil {
		s.registerSSERoutes()
	}
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
