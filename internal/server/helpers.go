package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"authsystem/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeError maps a Manager error onto its status and body. Internal
// failures are logged here and reach the client only as a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := auth.AsError(err)
	status := e.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.Logger.ErrorContext(r.Context(), op+": request failed", "err", err, "path", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: e.Code, Message: e.Message, Errors: e.Fields})
}

func (s *Server) writeTooManyRequests(w http.ResponseWriter, message string, retry time.Duration) {
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":    "TOO_MANY_REQUESTS",
		"message":  message,
		"cooldown": int64(retry.Seconds()),
	})
}

// decodeJSON rejects unknown fields. An empty body decodes to the zero
// value so validation can report the missing fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeMessage(w, http.StatusBadRequest, auth.CodeValidation, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) clientMeta(r *http.Request) auth.ClientMeta {
	return auth.ClientMeta{
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
	}
}

// logLimiterError keeps a redis outage from blocking sign-in.
func (s *Server) logLimiterError(r *http.Request, op string, err error) {
	if err != nil {
		s.Logger.WarnContext(r.Context(), op+": rate limit check failed", "err", err)
	}
}

func clientIP(r *http.Request, trusted []net.IPNet) string {
	remoteHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || remoteHost == "" {
		remoteHost = r.RemoteAddr
	}

	// Only trust forwarded headers when the immediate sender is a trusted proxy.
	if remoteHost != "" && isTrustedProxy(remoteHost, trusted) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}

	return remoteHost
}

func parseProxyCIDRs(values []string) []net.IPNet {
	var nets []net.IPNet
	for _, v := range values {
		val := strings.TrimSpace(v)
		if val == "" {
			continue
		}
		if ip := net.ParseIP(val); ip != nil {
			mask := net.CIDRMask(128, 128)
			if ip.To4() != nil {
				mask = net.CIDRMask(32, 32)
			}
			nets = append(nets, net.IPNet{IP: ip, Mask: mask})
			continue
		}
		if _, cidr, err := net.ParseCIDR(val); err == nil {
			nets = append(nets, *cidr)
		} else {
			slog.Warn("ignoring invalid trusted proxy", "value", val)
		}
	}
	return nets
}

func isTrustedProxy(ipStr string, proxies []net.IPNet) bool {
	if len(proxies) == 0 {
		return false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
