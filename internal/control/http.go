package control

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ivlev/shotplayer/internal/command"
	"github.com/ivlev/shotplayer/internal/sink"
)

const maxRequestBody = 1 << 16

// Snapshotter serves the preview image.
type Snapshotter interface {
	Snapshot() ([]byte, int, error)
}

type API struct {
	Player  Player
	Preview Snapshotter
	Logger  *slog.Logger
}

// NewRouter builds the HTTP control API. preview may be nil.
func NewRouter(player Player, preview Snapshotter, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	api := &API{Player: player, Preview: preview, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/status", api.StatusHandler)
	r.Get("/shots", api.ShotsHandler)
	r.Get("/departments", api.DepartmentsHandler)
	r.Get("/preview.jpg", api.PreviewHandler)

	r.Post("/command", api.CommandHandler)
	r.Post("/play", api.action(func(p Player) error { return p.Play() }))
	r.Post("/pause", api.action(func(p Player) error { p.Pause(); return nil }))
	r.Post("/stop", api.action(func(p Player) error { p.Stop(); return nil }))
	r.Post("/loop", api.action(func(p Player) error { p.ToggleLoop(); return nil }))
	r.Post("/mode", api.action(func(p Player) error { p.ToggleMode(); return nil }))
	r.Post("/seek/{index}", api.SeekHandler)
	r.Post("/trim/{start}/{end}", api.TrimHandler)
	r.Delete("/trim", api.action(func(p Player) error { return p.Send(command.NewTrimOff()) }))
	r.Post("/shots/{id}/select", api.SelectShotHandler)
	r.Post("/departments/next", api.action(func(p Player) error { _, err := p.ToggleDepartment(); return err }))
	r.Post("/departments/{name}", api.DepartmentHandler)

	return r
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (api *API) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Player.Status())
}

func (api *API) ShotsHandler(w http.ResponseWriter, r *http.Request) {
	type shot struct {
		ID            string `json:"shot_id"`
		Department    string `json:"department"`
		StartFrame    int    `json:"start_frame"`
		EndFrame      int    `json:"end_frame"`
		AbsoluteStart int    `json:"absolute_start"`
	}
	shots := api.Player.Shots()
	out := make([]shot, 0, len(shots))
	for _, s := range shots {
		out = append(out, shot{s.ID, s.Department, s.StartFrame, s.EndFrame, s.AbsoluteStart})
	}
	writeJSON(w, http.StatusOK, out)
}

func (api *API) DepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"departments": api.Player.Departments(),
		"current":     api.Player.Status().Department,
	})
}

func (api *API) CommandHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		api.fail(w, ErrBadRequest)
		return
	}
	st, err := Dispatch(api.Player, data)
	if err != nil {
		api.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (api *API) SeekHandler(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		api.fail(w, ErrBadRequest)
		return
	}
	api.respond(w, api.Player.Send(command.NewSeek(idx)))
}

func (api *API) TrimHandler(w http.ResponseWriter, r *http.Request) {
	start, err1 := strconv.Atoi(chi.URLParam(r, "start"))
	end, err2 := strconv.Atoi(chi.URLParam(r, "end"))
	if err1 != nil || err2 != nil {
		api.fail(w, ErrBadRequest)
		return
	}
	api.respond(w, api.Player.Send(command.NewTrim(start, end)))
}

func (api *API) SelectShotHandler(w http.ResponseWriter, r *http.Request) {
	api.respond(w, api.Player.SelectShot(chi.URLParam(r, "id")))
}

func (api *API) DepartmentHandler(w http.ResponseWriter, r *http.Request) {
	api.respond(w, api.Player.SetDepartment(chi.URLParam(r, "name")))
}

func (api *API) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	if api.Preview == nil {
		http.Error(w, "preview disabled", http.StatusNotFound)
		return
	}
	data, idx, err := api.Preview.Snapshot()
	if errors.Is(err, sink.ErrNoFrame) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		api.Logger.Error("preview encode failed", "error", err)
		http.Error(w, "preview failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Index", strconv.Itoa(idx))
	w.Write(data)
}

func (api *API) action(fn func(Player) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.respond(w, fn(api.Player))
	}
}

func (api *API) respond(w http.ResponseWriter, err error) {
	if err != nil {
		api.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Player.Status())
}

func (api *API) fail(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		api.Logger.Error("control request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
