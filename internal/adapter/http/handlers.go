package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/session"
	geojson "github.com/paulmach/go.geojson"
)

const maxBodyBytes = 1 << 16

type sessionResponse struct {
	ID string `json:"id"`
	session.Snapshot
	WindKmh *float64 `json:"wind_kmh,omitempty"`
}

func newSessionResponse(id string, snap session.Snapshot) sessionResponse {
	resp := sessionResponse{ID: id, Snapshot: snap}
	if snap.Observation != nil {
		kmh := snap.Observation.WindSpeedKmh()
		resp.WindKmh = &kmh
	}
	return resp
}

type queryRequest struct {
	Text *string `json:"text" validate:"required"`
}

type searchRequest struct {
	Query *string `json:"query"`
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

type viewportRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Zoom      *float64 `json:"zoom" validate:"required,gte=0,lte=22"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, c *session.Coordinator)

// withSession resolves the {id} path value, answering 404 for unknown sessions.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.sessions.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		next(w, r, c)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	c := s.sessions.Create()
	writeJSON(w, http.StatusCreated, newSessionResponse(c.ID(), c.Snapshot()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, c *session.Coordinator) {
	writeJSON(w, http.StatusOK, newSessionResponse(c.ID(), c.Snapshot()))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request, c *session.Coordinator) {
	var req queryRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	c.SetQueryText(*req.Text)
	writeJSON(w, http.StatusAccepted, newSessionResponse(c.ID(), c.Snapshot()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, c *session.Coordinator) {
	var req searchRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	var err error
	if req.Query != nil {
		err = c.SubmitQuery(r.Context(), *req.Query)
	} else {
		err = c.SubmitSearch(r.Context())
	}
	// Weather failures are part of the snapshot, not a transport error.
	if err != nil {
		s.logger.Debug("search failed", "session_id", c.ID(), "error", err)
	}
	writeJSON(w, http.StatusOK, newSessionResponse(c.ID(), c.Snapshot()))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, c *session.Coordinator) {
	var req selectRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	err := c.SelectSuggestion(r.Context(), req.ID)
	if errors.Is(err, domain.ErrSuggestionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(c.ID(), c.Snapshot()))
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request, c *session.Coordinator) {
	var req viewportRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	v := domain.ViewState{Latitude: *req.Latitude, Longitude: *req.Longitude, Zoom: *req.Zoom}
	if err := c.UpdateViewport(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(c.ID(), c.Snapshot()))
}

// handleMarker renders the current assessment as a GeoJSON point feature.
func (s *Server) handleMarker(w http.ResponseWriter, _ *http.Request, c *session.Coordinator) {
	snap := c.Snapshot()
	if snap.Observation == nil || snap.Assessment == nil {
		writeError(w, http.StatusNotFound, "no assessment yet")
		return
	}
	obs, a := snap.Observation, snap.Assessment

	f := geojson.NewPointFeature([]float64{obs.Coordinates.Lon, obs.Coordinates.Lat})
	f.ID = c.ID()
	f.SetProperty("place_name", obs.PlaceName)
	f.SetProperty("risk_level", string(a.Level))
	f.SetProperty("score", a.Score)
	f.SetProperty("advisory", a.Advisory)
	f.SetProperty("temperature", obs.Temperature)
	f.SetProperty("humidity", obs.Humidity)
	f.SetProperty("wind_kmh", obs.WindSpeedKmh())

	body, err := f.MarshalJSON()
	if err != nil {
		s.logger.Error("encode marker", "session_id", c.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "encode marker")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client went away
}

// decode reads a JSON body into v and validates it. An empty body is
// accepted only when optional is set. It writes a 400 and returns false on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	switch {
	case errors.Is(err, io.EOF) && optional:
		return true
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
