// Package api exposes the booking, parking, venue and user operations as
// action-dispatched JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"venuepark/internal/apperr"
	"venuepark/internal/config"
	"venuepark/internal/metrics"
	"venuepark/internal/service"
	"venuepark/shared/access"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Exporter writes the admin report for a creation range.
type Exporter interface {
	Export(ctx context.Context, from, to time.Time) (string, error)
}

// Services bundles the operations the server dispatches to.
type Services struct {
	Bookings *service.BookingService
	Parking  *service.ParkingService
	Venues   *service.VenueService
	Users    *service.UserService
	Access   *access.Service
	Exporter Exporter // optional
}

type HTTPServer struct {
	svc     Services
	auth    *Auth
	limiter *rateLimiter
	loc     *time.Location
	log     zerolog.Logger
	srv     *http.Server
}

func NewHTTPServer(cfg config.HTTPConfig, svc Services, auth *Auth, loc *time.Location, logger zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.Local
	}
	s := &HTTPServer{
		svc:     svc,
		auth:    auth,
		limiter: newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		loc:     loc,
		log:     logger.With().Str("component", "api").Logger(),
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/booking", s.handleBooking)
	mux.HandleFunc("/api/parking", s.handleParking)
	mux.HandleFunc("/api/venue", s.handleVenue)
	mux.HandleFunc("/api/user", s.handleUser)
	mux.HandleFunc("/api/admin/export", s.handleExport)

	var h http.Handler = mux
	h = s.withRateLimit(h)
	h = s.withAuth(h)
	h = s.withRecover(h)
	h = s.withAccessLog(h)
	return withRequestID(h)
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) session(r *http.Request) service.Session {
	return service.Session{CallerID: callerFrom(r.Context()), RequestID: requestIDFrom(r.Context())}
}

// actionHandler serves one action. body is the full request document.
type actionHandler func(r *http.Request, body []byte) (any, error)

// dispatch reads {"action": ...} from a POST body and runs the matching handler.
func (s *HTTPServer) dispatch(w http.ResponseWriter, r *http.Request, resource string, actions map[string]actionHandler) {
	start := time.Now()
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed", apperr.KindValidation)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "request body too large or unreadable", apperr.KindValidation)
		return
	}
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body", apperr.KindValidation)
		return
	}

	handler, ok := actions[envelope.Action]
	if !ok {
		metrics.ObserveHTTP(resource, "unknown", "400", time.Since(start).Seconds())
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", envelope.Action), apperr.KindValidation)
		return
	}

	result, err := handler(r, body)
	status := http.StatusOK
	if err != nil {
		status = statusFor(apperr.KindOf(err))
		if status == http.StatusInternalServerError {
			s.log.Error().Err(err).
				Str("resource", resource).
				Str("action", envelope.Action).
				Str("request_id", requestIDFrom(r.Context())).
				Msg("operation failed")
		}
		writeError(w, err)
	} else {
		writeSuccess(w, result)
	}
	metrics.ObserveHTTP(resource, envelope.Action, fmt.Sprint(status), time.Since(start).Seconds())
}

// decode unmarshals the action payload into dst.
func decode(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("invalid request payload")
	}
	return nil
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindInvalidState, apperr.KindSlotUnavailable, apperr.KindCapacityExceeded:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindTooLateToCancel:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, data any) {
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeFailure(w, statusFor(kind), apperr.Message(err), kind)
}

func writeFailure(w http.ResponseWriter, status int, message string, code apperr.Kind) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
		"code":    code,
	})
}
