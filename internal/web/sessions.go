package web

import (
	"encoding/json"
	"net/http"

	"github.com/raine/petition-web/internal/actions"
	"github.com/rs/zerolog/hlog"
)

type sessionStatus struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// handleSessionCheck reports whether the browser still has a usable session.
// The page script polls it and calls handleSessionRefresh on 401.
func (s *Server) handleSessionCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	res := s.actions.CurrentUser(r.Context(), sessionFrom(r))
	if !res.Ok() {
		switch res.Failure.Kind {
		case actions.KindUnauthenticated:
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(sessionStatus{
		UserID:      res.Value.ID,
		Email:       res.Value.Email,
		DisplayName: res.Value.DisplayName,
	})
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("failed to write session status")
	}
}

func (s *Server) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if _, err := sessionFrom(r).Refresh(r.Context()); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("session refresh failed")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
