package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

// StateResponse is the body of GET /api/v1/device/state and the payload of
// state events on the WebSocket.
type StateResponse struct {
	DeviceID  string               `json:"device_id"`
	Available bool                 `json:"available"`
	State     devialet.DeviceState `json:"state"`
}

// AvailabilityEvent is broadcast when the speaker comes or goes.
type AvailabilityEvent struct {
	DeviceID  string `json:"device_id"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) stateResponse(state devialet.DeviceState) StateResponse {
	return StateResponse{
		DeviceID:  s.deviceID,
		Available: s.coord.Available(),
		State:     state,
	}
}

// handleGetState returns the last polled state. Before the first
// successful poll there is nothing to return.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	state, ok := s.coord.State()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNoState, "no state has been polled yet")
		return
	}
	writeJSON(w, http.StatusOK, s.stateResponse(state))
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.coord.Info(r.Context())
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": devialet.Commands(),
	})
}

// handleCommand runs a device command. The body, if any, is a JSON object
// of parameters.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")

	var params devialet.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	res, err := s.coord.Execute(ctx, command, params)
	if err != nil {
		s.logger.Warn("device command failed",
			"command", command,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeDeviceError(w, err)
		return
	}

	s.logger.Info("device command executed", "command", command)
	writeJSON(w, http.StatusOK, res)
}
