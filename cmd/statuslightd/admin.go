package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dev.acmcsuf.com/statuslight"
	"dev.acmcsuf.com/statuslight/credentials"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"libdb.so/hrt"
)

type adminHandler struct {
	*chi.Mux
	service *statuslight.Service
	users   *credentials.Store
	logger  *slog.Logger
}

func newAdminHandler(service *statuslight.Service, users *credentials.Store, logger *slog.Logger) *adminHandler {
	h := &adminHandler{
		Mux:     chi.NewRouter(),
		service: service,
		users:   users,
		logger:  logger,
	}

	h.Use(httplog.RequestLogger(
		&httplog.Logger{
			Logger: logger,
			Options: httplog.Options{
				LogLevel: slog.LevelDebug,
				Concise:  true,
			},
		},
		[]string{"/healthz", "/metrics"},
	))

	h.Get("/healthz", h.healthz)
	h.Handle("/metrics", promhttp.Handler())

	h.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Use(hrt.Use(hrt.Opts{
			Encoder: hrt.CombinedEncoder{
				Encoder: hrt.JSONEncoder,
				Decoder: hrt.URLDecoder,
			},
			ErrorWriter: hrt.TextErrorWriter,
		}))

		r.Get("/config", hrt.Wrap(h.getConfig))
		r.Post("/render", hrt.Wrap(h.render))
		r.Post("/clear", hrt.Wrap(h.clear))
		r.Get("/schedule", hrt.Wrap(h.getSchedule))
		r.Post("/schedule/reload", hrt.Wrap(h.reloadSchedule))
		r.Get("/strip", hrt.Wrap(h.getStrip))
	})

	h.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Use(hrt.Use(hrt.Opts{
			Encoder:     hrt.JSONEncoder,
			ErrorWriter: hrt.TextErrorWriter,
		}))

		r.Put("/config", hrt.Wrap(h.putConfig))
	})

	return h
}

// authenticate requires HTTP basic auth against the users file. A missing or
// unreadable users file rejects everyone. A nil users store disables the check.
func (h *adminHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.users == nil {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if ok {
			valid, err := h.users.Verify(username, password)
			if err != nil {
				h.logger.Error(
					"failed to verify user, denying",
					"username", username,
					"error", err)
			}
			if valid {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="statuslight"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func (h *adminHandler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok\n"))
}

func (h *adminHandler) getConfig(ctx context.Context, _ hrt.None) (*statuslight.Config, error) {
	cfg, err := h.service.Config()
	if err != nil {
		return nil, httpError(err)
	}
	return cfg, nil
}

func (h *adminHandler) putConfig(ctx context.Context, cfg statuslight.Config) (hrt.None, error) {
	if err := h.service.Apply(ctx, &cfg); err != nil {
		return hrt.Empty, httpError(err)
	}
	return hrt.Empty, nil
}

type renderRequest struct {
	Segment string `query:"segment"`
}

func (h *adminHandler) render(ctx context.Context, req renderRequest) (hrt.None, error) {
	if err := h.service.Strip().RenderSegment(ctx, req.Segment); err != nil {
		return hrt.Empty, httpError(err)
	}
	return hrt.Empty, nil
}

func (h *adminHandler) clear(ctx context.Context, _ hrt.None) (hrt.None, error) {
	if err := h.service.Strip().ClearAll(ctx); err != nil {
		return hrt.Empty, httpError(err)
	}
	return hrt.Empty, nil
}

type scheduleResponse struct {
	Generation uuid.UUID         `json:"generation"`
	Triggers   []triggerResponse `json:"triggers"`
	LastFires  []fireResponse    `json:"last_fires"`
}

type triggerResponse struct {
	Segment string    `json:"segment"`
	Minute  int       `json:"minute"`
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next,omitzero"`
}

type fireResponse struct {
	Segment    string    `json:"segment"`
	Generation uuid.UUID `json:"generation"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}

func (h *adminHandler) getSchedule(ctx context.Context, _ hrt.None) (scheduleResponse, error) {
	scheduler := h.service.Scheduler()

	resp := scheduleResponse{
		Generation: scheduler.Generation(),
		Triggers:   []triggerResponse{},
		LastFires:  []fireResponse{},
	}

	for _, t := range scheduler.Triggers() {
		resp.Triggers = append(resp.Triggers, triggerResponse{
			Segment: t.Segment,
			Minute:  t.Minute,
			Spec:    t.Spec,
			Next:    t.Next,
		})
	}

	for _, s := range scheduler.Status() {
		fire := fireResponse{
			Segment:    s.Segment,
			Generation: s.Generation,
			At:         s.At,
		}
		if s.Err != nil {
			fire.Error = s.Err.Error()
		}
		resp.LastFires = append(resp.LastFires, fire)
	}

	return resp, nil
}

func (h *adminHandler) reloadSchedule(ctx context.Context, _ hrt.None) (hrt.None, error) {
	if err := h.service.Reload(ctx); err != nil {
		return hrt.Empty, httpError(err)
	}
	return hrt.Empty, nil
}

func (h *adminHandler) getStrip(ctx context.Context, _ hrt.None) ([]string, error) {
	leds := h.service.Strip().LEDs()

	colors := make([]string, len(leds))
	for i, c := range leds {
		colors[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return colors, nil
}

// httpError attaches the HTTP status matching the statuslight error kind.
func httpError(err error) error {
	var (
		validationErr *statuslight.ValidationError
		unknownErr    *statuslight.UnknownSegmentError
		deviceErr     *statuslight.DeviceError
	)
	switch {
	case errors.As(err, &validationErr):
		return hrt.WrapHTTPError(http.StatusBadRequest, err)
	case errors.As(err, &unknownErr):
		return hrt.WrapHTTPError(http.StatusNotFound, err)
	case errors.As(err, &deviceErr):
		return hrt.WrapHTTPError(http.StatusServiceUnavailable, err)
	default:
		return hrt.WrapHTTPError(http.StatusInternalServerError, err)
	}
}
