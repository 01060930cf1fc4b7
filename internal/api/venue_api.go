package api

import (
	"net/http"

	"venuepark/internal/models"
)

type venueIDRequest struct {
	VenueID string `json:"venueId"`
}

// handleVenue serves POST /api/venue. The read actions are public.
func (s *HTTPServer) handleVenue(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "venue", map[string]actionHandler{
		"getList":      s.venueList,
		"getDetail":    s.venueDetail,
		"getTimeSlots": s.venueTimeSlots,
		"add":          s.venueAdd,
		"update":       s.venueUpdate,
		"disable":      s.venueToggle(false),
		"enable":       s.venueToggle(true),
	})
}

func (s *HTTPServer) venueList(r *http.Request, body []byte) (any, error) {
	var req struct {
		Type string `json:"type"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Venues.GetList(r.Context(), req.Type)
}

func (s *HTTPServer) venueDetail(r *http.Request, body []byte) (any, error) {
	var req venueIDRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Venues.GetDetail(r.Context(), req.VenueID)
}

func (s *HTTPServer) venueTimeSlots(r *http.Request, body []byte) (any, error) {
	var req struct {
		VenueID string `json:"venueId"`
		Date    string `json:"date"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Venues.GetTimeSlots(r.Context(), req.VenueID, req.Date)
}

func (s *HTTPServer) venueAdd(r *http.Request, body []byte) (any, error) {
	var req struct {
		VenueData models.Venue `json:"venueData"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	v, err := s.svc.Venues.Add(r.Context(), s.session(r), req.VenueData)
	if err != nil {
		return nil, err
	}
	return map[string]any{"venueId": v.ID}, nil
}

func (s *HTTPServer) venueUpdate(r *http.Request, body []byte) (any, error) {
	var req struct {
		VenueID   string            `json:"venueId"`
		VenueData models.VenuePatch `json:"venueData"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	_, err := s.svc.Venues.Update(r.Context(), s.session(r), req.VenueID, req.VenueData)
	return nil, err
}

func (s *HTTPServer) venueToggle(enabled bool) actionHandler {
	return func(r *http.Request, body []byte) (any, error) {
		var req venueIDRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		var err error
		if enabled {
			_, err = s.svc.Venues.Enable(r.Context(), s.session(r), req.VenueID)
		} else {
			_, err = s.svc.Venues.Disable(r.Context(), s.session(r), req.VenueID)
		}
		return nil, err
	}
}
