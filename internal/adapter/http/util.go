package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"

	"weighttrack/internal/app"
	"weighttrack/internal/domain"
)

// Error codes returned in the error body.
const (
	codeUnauthorized  = "UNAUTHORIZED"
	codeValidation    = "VALIDATION_ERROR"
	codeNotFound      = "ENTRY_NOT_FOUND"
	codeForbidden     = "FORBIDDEN"
	codeEmailExists   = "EMAIL_ALREADY_EXISTS"
	codeInternal      = "INTERNAL_ERROR"
	codeInvalidToken  = "INVALID_TOKEN"
	codeNotConfigured = "NOT_CONFIGURED"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type errorResponse struct {
	Error  errorBody         `json:"error"`
	Errors []app.ImportError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeError maps err onto the error body. Errors that are not part of the
// API contract are logged and reported as INTERNAL_ERROR.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve     *domain.ValidationError
		failed *app.ImportFailedError
	)
	switch {
	case errors.As(err, &failed):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  errorBody{Code: codeValidation, Message: failed.Error()},
			Errors: failed.Result.Errors,
		})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: errorBody{Code: codeValidation, Message: ve.Error(), Details: ve.Details()},
		})
	case errors.Is(err, app.ErrEntryNotFound):
		writeErrorCode(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrSessionExpired),
		errors.Is(err, app.ErrUserNotFound):
		writeErrorCode(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, app.ErrEmailTaken):
		writeErrorCode(w, http.StatusConflict, codeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidResetToken):
		writeErrorCode(w, http.StatusBadRequest, codeInvalidToken, err.Error())
	case errors.Is(err, app.ErrResetUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, codeNotConfigured, err.Error())
	default:
		s.log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeErrorCode(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("invalid json: %v", err))
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// clientIP strips the port from the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// spaFromDisk serves static files from dir and falls back to index.html so
// client-side routes such as /dashboard and /reset-password resolve.
func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := path.Join(dir, reqPath)
		if fi, err := os.Stat(staticPath); err == nil && !fi.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}
