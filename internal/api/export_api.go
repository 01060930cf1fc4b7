package api

import (
	"net/http"
	"path/filepath"
	"time"

	"venuepark/internal/apperr"
	"venuepark/internal/metrics"
	"venuepark/internal/models"
)

// handleExport streams the xlsx report of records created in [from, to].
// GET /api/admin/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed", apperr.KindValidation)
		return
	}
	if s.svc.Exporter == nil {
		writeFailure(w, http.StatusNotFound, "export is disabled", apperr.KindNotFound)
		return
	}
	if err := s.svc.Access.RequireAdmin(r.Context(), callerFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	from, err := time.ParseInLocation(models.DateLayout, r.URL.Query().Get("from"), s.loc)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "from must be YYYY-MM-DD", apperr.KindValidation)
		return
	}
	to, err := time.ParseInLocation(models.DateLayout, r.URL.Query().Get("to"), s.loc)
	if err != nil || to.Before(from) {
		writeFailure(w, http.StatusBadRequest, "to must be YYYY-MM-DD and not before from", apperr.KindValidation)
		return
	}

	path, err := s.svc.Exporter.Export(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("export failed")
		metrics.ObserveHTTP("admin", "export", "500", time.Since(start).Seconds())
		writeFailure(w, http.StatusInternalServerError, "export failed, please retry later", apperr.KindStore)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
	metrics.ObserveHTTP("admin", "export", "200", time.Since(start).Seconds())
}
