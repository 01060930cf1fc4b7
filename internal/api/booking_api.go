package api

import (
	"net/http"

	"venuepark/internal/service"
)

type bookingIDRequest struct {
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason"`
}

// handleBooking serves POST /api/booking.
func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "booking", map[string]actionHandler{
		"create":            s.bookingCreate,
		"cancel":            s.bookingCancel,
		"getMyList":         s.bookingMyList,
		"getDetail":         s.bookingDetail,
		"getAllList":        s.bookingAllList,
		"approve":           s.bookingApprove,
		"reject":            s.bookingReject,
		"getAvailableSlots": s.bookingSlots,
	})
}

func (s *HTTPServer) bookingCreate(r *http.Request, body []byte) (any, error) {
	var req struct {
		BookingData service.CreateBookingInput `json:"bookingData"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	b, err := s.svc.Bookings.Create(r.Context(), s.session(r), req.BookingData)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bookingId": b.ID, "status": b.Status}, nil
}

func (s *HTTPServer) bookingCancel(r *http.Request, body []byte) (any, error) {
	var req bookingIDRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	_, err := s.svc.Bookings.Cancel(r.Context(), s.session(r), req.BookingID)
	return nil, err
}

func (s *HTTPServer) bookingMyList(r *http.Request, body []byte) (any, error) {
	var req service.BookingListInput
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Bookings.GetMyList(r.Context(), s.session(r), req)
}

func (s *HTTPServer) bookingDetail(r *http.Request, body []byte) (any, error) {
	var req bookingIDRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Bookings.GetDetail(r.Context(), s.session(r), req.BookingID)
}

func (s *HTTPServer) bookingAllList(r *http.Request, body []byte) (any, error) {
	var req service.AdminBookingListInput
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Bookings.GetAllList(r.Context(), s.session(r), req)
}

func (s *HTTPServer) bookingApprove(r *http.Request, body []byte) (any, error) {
	var req bookingIDRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	_, err := s.svc.Bookings.Approve(r.Context(), s.session(r), req.BookingID)
	return nil, err
}

func (s *HTTPServer) bookingReject(r *http.Request, body []byte) (any, error) {
	var req bookingIDRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	_, err := s.svc.Bookings.Reject(r.Context(), s.session(r), req.BookingID, req.Reason)
	return nil, err
}

func (s *HTTPServer) bookingSlots(r *http.Request, body []byte) (any, error) {
	var req struct {
		VenueID string `json:"venueId"`
		Date    string `json:"date"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Bookings.GetAvailableSlots(r.Context(), req.VenueID, req.Date)
}
