package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"authsystem/internal/auth"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	u, err := s.Auth.Profile(r.Context(), claims.UserID())
	if err != nil {
		s.writeError(w, r, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u.Public()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "message": "Server is running"})
}

func (s *Server) handleAdminHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.ErrorContext(r.Context(), "admin health: database ping failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "ERROR", "message": "Database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "message": "Admin area is healthy"})
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Auth.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, "admin list users", err)
		return
	}
	out := make([]auth.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Users fetched successfully",
		"data":    out,
	})
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeMessage(w, http.StatusNotFound, auth.CodeUserNotFound, "User not found")
		return
	}
	u, err := s.Auth.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "admin get user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "User fetched successfully",
		"data":    u.Public(),
	})
}

func (s *Server) handleAdminUserAudit(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, auth.CodeValidation, "limit must be a positive number")
			return
		}
		limit = n
	}

	events, err := s.Auth.Audit.Recent(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "admin audit: read events failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, auth.CodeInternal, "Internal server error")
		return
	}
	if events == nil {
		events = []auth.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Audit events fetched successfully",
		"data":    events,
	})
}
