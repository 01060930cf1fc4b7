package api

import (
	"context"
	"net/http"

	"venuepark/internal/models"
	"venuepark/internal/service"
)

type recordIDRequest struct {
	RecordID string `json:"recordId"`
}

// handleParking serves POST /api/parking.
func (s *HTTPServer) handleParking(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "parking", map[string]actionHandler{
		"register":          s.parkingRegister,
		"reserve":           s.parkingReserve,
		"cancelReserve":     s.recordAction(s.svc.Parking.CancelReserve),
		"confirmEntry":      s.recordAction(s.svc.Parking.ConfirmEntry),
		"confirmExit":       s.parkingExit(s.svc.Parking.ConfirmExit),
		"getMyRecords":      s.parkingMyRecords,
		"getCurrentParking": s.parkingCurrent,
		"getParkingStatus":  s.parkingStatus,
		"getAllRecords":     s.parkingAllRecords,
		"adminRegister":     s.parkingAdminRegister,
		"adminConfirmEntry": s.recordAction(s.svc.Parking.AdminConfirmEntry),
		"adminConfirmExit":  s.parkingExit(s.svc.Parking.AdminConfirmExit),
		"getConfig":         s.parkingGetConfig,
		"updateConfig":      s.parkingUpdateConfig,
	})
}

type recordOp func(ctx context.Context, sess service.Session, recordID string) (*models.ParkingRecord, error)

func admission(rec *models.ParkingRecord) map[string]any {
	return map[string]any{"recordId": rec.ID, "qrCode": rec.QRCode}
}

func (s *HTTPServer) parkingRegister(r *http.Request, body []byte) (any, error) {
	var req struct {
		RegisterData service.RegisterInput `json:"registerData"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	rec, err := s.svc.Parking.Register(r.Context(), s.session(r), req.RegisterData)
	if err != nil {
		return nil, err
	}
	return admission(rec), nil
}

func (s *HTTPServer) parkingAdminRegister(r *http.Request, body []byte) (any, error) {
	var req struct {
		RegisterData service.RegisterInput `json:"registerData"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	rec, err := s.svc.Parking.AdminRegister(r.Context(), s.session(r), req.RegisterData)
	if err != nil {
		return nil, err
	}
	return admission(rec), nil
}

func (s *HTTPServer) parkingReserve(r *http.Request, body []byte) (any, error) {
	var req struct {
		ReserveData service.ReserveInput `json:"reserveData"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	rec, err := s.svc.Parking.Reserve(r.Context(), s.session(r), req.ReserveData)
	if err != nil {
		return nil, err
	}
	return admission(rec), nil
}

func (s *HTTPServer) recordAction(op recordOp) actionHandler {
	return func(r *http.Request, body []byte) (any, error) {
		var req recordIDRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		_, err := op(r.Context(), s.session(r), req.RecordID)
		return nil, err
	}
}

// parkingExit answers with the stay in minutes.
func (s *HTTPServer) parkingExit(op recordOp) actionHandler {
	return func(r *http.Request, body []byte) (any, error) {
		var req recordIDRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		rec, err := op(r.Context(), s.session(r), req.RecordID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"duration": rec.Duration}, nil
	}
}

func (s *HTTPServer) parkingMyRecords(r *http.Request, body []byte) (any, error) {
	var req service.ParkingListInput
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Parking.GetMyRecords(r.Context(), s.session(r), req)
}

func (s *HTTPServer) parkingCurrent(r *http.Request, _ []byte) (any, error) {
	return s.svc.Parking.GetCurrentParking(r.Context(), s.session(r))
}

func (s *HTTPServer) parkingStatus(r *http.Request, _ []byte) (any, error) {
	return s.svc.Parking.GetParkingStatus(r.Context())
}

func (s *HTTPServer) parkingAllRecords(r *http.Request, body []byte) (any, error) {
	var req service.AdminParkingListInput
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Parking.GetAllRecords(r.Context(), s.session(r), req)
}

func (s *HTTPServer) parkingGetConfig(r *http.Request, _ []byte) (any, error) {
	return s.svc.Parking.GetConfig(r.Context())
}

func (s *HTTPServer) parkingUpdateConfig(r *http.Request, body []byte) (any, error) {
	var req struct {
		Config models.ParkingConfig `json:"config"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Parking.UpdateConfig(r.Context(), s.session(r), req.Config)
}
