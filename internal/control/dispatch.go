// Package control exposes the review controller over HTTP (chi) and MQTT
// (paho). Both surfaces accept the same JSON request envelope.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ivlev/shotplayer/internal/catalog"
	"github.com/ivlev/shotplayer/internal/command"
	"github.com/ivlev/shotplayer/internal/review"
)

// Player is the controller surface driven remotely. *review.Controller
// satisfies it.
type Player interface {
	Play() error
	Pause()
	Stop()
	Send(cmd command.Command) error
	SelectShot(id string) error
	ToggleMode() review.Mode
	ToggleLoop() bool
	ToggleDepartment() (string, error)
	SetDepartment(d string) error
	Departments() []string
	Shots() []catalog.Shot
	Status() review.Status
}

// Request is the envelope shared by POST /command and the MQTT control topic.
// Scheduler commands use the command wire shape; the rest are controller actions:
//
//	{"command":"play"}
//	{"command":"select_shot","value":"sh010"}
//	{"command":"department","value":"render"}
type Request struct {
	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`
}

var ErrBadRequest = errors.New("bad request")

// Dispatch applies one request and returns the controller status afterwards.
func Dispatch(p Player, data []byte) (review.Status, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return review.Status{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	switch req.Command {
	case "seek", "trim", "trim_off", "loop":
		cmd, err := command.Parse(data)
		if err != nil {
			return review.Status{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		if err := p.Send(cmd); err != nil {
			return review.Status{}, err
		}
	case "play":
		if err := p.Play(); err != nil {
			return review.Status{}, err
		}
	case "pause":
		p.Pause()
	case "stop":
		p.Stop()
	case "toggle_mode":
		p.ToggleMode()
	case "toggle_loop":
		p.ToggleLoop()
	case "toggle_department":
		if _, err := p.ToggleDepartment(); err != nil {
			return review.Status{}, err
		}
	case "select_shot", "department":
		var s string
		if err := json.Unmarshal(req.Value, &s); err != nil || s == "" {
			return review.Status{}, fmt.Errorf("%w: %s needs a string value", ErrBadRequest, req.Command)
		}
		var err error
		if req.Command == "select_shot" {
			err = p.SelectShot(s)
		} else {
			err = p.SetDepartment(s)
		}
		if err != nil {
			return review.Status{}, err
		}
	case "status":
	default:
		return review.Status{}, fmt.Errorf("%w: %q", command.ErrUnknownCommand, req.Command)
	}
	return p.Status(), nil
}

// statusCode maps controller errors onto HTTP statuses.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, command.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrUnknownShot), errors.Is(err, review.ErrUnknownDepartment):
		return http.StatusNotFound
	case errors.Is(err, review.ErrNotPlaying), errors.Is(err, review.ErrPlaying), errors.Is(err, review.ErrNoShot),
		errors.Is(err, catalog.ErrEmptyPlaylist):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
