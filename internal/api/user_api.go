package api

import (
	"net/http"

	"venuepark/internal/models"
)

// handleUser serves POST /api/user. login is the only anonymous action.
func (s *HTTPServer) handleUser(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "user", map[string]actionHandler{
		"login":          s.userLogin,
		"getUserInfo":    s.userInfo,
		"updateUserInfo": s.userUpdate,
	})
}

// userLogin exchanges a platform-signed identity assertion for a session token.
// A bare userId in the body is ignored.
func (s *HTTPServer) userLogin(r *http.Request, body []byte) (any, error) {
	var req struct {
		IdentityToken string             `json:"identityToken"`
		UserInfo      models.UserProfile `json:"userInfo"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Users.Login(r.Context(), req.IdentityToken, req.UserInfo)
}

func (s *HTTPServer) userInfo(r *http.Request, _ []byte) (any, error) {
	return s.svc.Users.GetUserInfo(r.Context(), s.session(r))
}

func (s *HTTPServer) userUpdate(r *http.Request, body []byte) (any, error) {
	var req struct {
		UserInfo models.UserProfile `json:"userInfo"`
	}
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.svc.Users.UpdateUserInfo(r.Context(), s.session(r), req.UserInfo)
}
