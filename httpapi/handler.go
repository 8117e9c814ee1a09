package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/middleware"
	"github.com/sirupsen/logrus"
)

// Prefix is the mount point of every route.
const Prefix = "/api/auth"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

// Handler serves the authentication API.
type Handler struct {
	engine *authcore.Engine
	log    logrus.FieldLogger
}

// New returns a Handler. A nil logger discards output.
func New(engine *authcore.Engine, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Handler{engine: engine, log: logger.WithField("component", "httpapi")}
}

// Routes returns a mux with every endpoint registered under Prefix.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

// Register adds the endpoints to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	authed := middleware.RequireSession(h.engine)
	admin := middleware.RequireRole(h.engine, account.RoleAdmin)

	mux.HandleFunc("POST "+Prefix+"/login", h.login)
	mux.HandleFunc("GET "+Prefix+"/check", h.check)
	mux.HandleFunc("POST "+Prefix+"/logout", h.logout)
	mux.Handle("GET "+Prefix+"/user", authed(http.HandlerFunc(h.user)))
	mux.Handle("POST "+Prefix+"/change-password", authed(http.HandlerFunc(h.changePassword)))
	mux.Handle("POST "+Prefix+"/refresh", authed(http.HandlerFunc(h.refresh)))
	mux.Handle("GET "+Prefix+"/rate-limit/status", authed(http.HandlerFunc(h.rateLimitStatus)))
	mux.Handle("GET "+Prefix+"/users", admin(http.HandlerFunc(h.listUsers)))
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type loginResponse struct {
	Success      bool               `json:"success"`
	SessionToken string             `json:"session_token,omitempty"`
	User         *authcore.UserInfo `json:"user,omitempty"`
	Message      string             `json:"message,omitempty"`
}

type sessionResponse struct {
	Valid bool               `json:"valid"`
	User  *authcore.UserInfo `json:"user"`
}

type passwordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type refreshResponse struct {
	SessionToken string `json:"session_token"`
	Rotated      bool   `json:"rotated"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := middleware.RequestContext(r)
	tok, err := h.engine.Authenticate(ctx, req.Username, req.Password, "")
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	info, err := h.engine.GetUserInfo(ctx, tok)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	middleware.SetSessionCookie(w, r, tok, req.RememberMe)
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		SessionToken: tok,
		User:         info,
		Message:      "Login successful",
	})
}

// check never fails with 401; an absent or invalid session reports valid=false.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.TokenFromRequest(r)
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	info, err := h.engine.GetUserInfo(middleware.RequestContext(r), tok)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, sessionResponse{Valid: true, User: info})
	case errors.Is(err, authcore.ErrStoreUnavailable), errors.Is(err, authcore.ErrEngineNotReady):
		h.writeEngineError(w, err)
	default:
		middleware.WriteJSON(w, http.StatusOK, sessionResponse{})
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := middleware.TokenFromRequest(r); ok {
		h.engine.Logout(middleware.RequestContext(r), tok)
	}
	middleware.ClearSessionCookie(w, r)
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out"})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) {
	info, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if !decode(w, r, &req) {
		return
	}
	info, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	err := h.engine.ChangePassword(r.Context(), info.Username, req.OldPassword, req.NewPassword)
	if errors.Is(err, authcore.ErrInvalidCredentials) {
		middleware.WriteError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password changed successfully"})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	tok, _ := middleware.TokenFromContext(r.Context())
	newTok, err := h.engine.RefreshToken(r.Context(), tok, "")
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	rotated := newTok != tok
	if rotated {
		middleware.SetSessionCookie(w, r, newTok, false)
	}
	middleware.WriteJSON(w, http.StatusOK, refreshResponse{SessionToken: newTok, Rotated: rotated})
}

func (h *Handler) rateLimitStatus(w http.ResponseWriter, r *http.Request) {
	info, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	attempts, err := h.engine.GetLoginAttempts(r.Context(), info.Username)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"ip_address":     middleware.ClientIP(r),
		"user_id":        info.UserID,
		"login_attempts": attempts,
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.ListUsers(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if users == nil {
		users = []account.Summary{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*authcore.UserInfo, bool) {
	tok, _ := middleware.TokenFromContext(r.Context())
	info, err := h.engine.GetUserInfo(r.Context(), tok)
	if errors.Is(err, authcore.ErrUserNotFound) {
		middleware.WriteError(w, http.StatusUnauthorized, "User not found. Session may be invalid.")
		return nil, false
	}
	if err != nil {
		h.writeEngineError(w, err)
		return nil, false
	}
	return info, true
}

// writeEngineError maps Engine errors onto status codes. Backend details
// are logged, never returned.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, authcore.ErrUnauthorized):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid or expired session. Please log in again.")
	case errors.Is(err, authcore.ErrLoginRateLimited):
		middleware.WriteError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	case errors.Is(err, authcore.ErrPasswordPolicy):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authcore.ErrPermissionDenied):
		middleware.WriteError(w, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, authcore.ErrStoreUnavailable), errors.Is(err, authcore.ErrEngineNotReady):
		h.log.WithError(err).Error("backend unavailable")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		h.log.WithError(err).Error("unhandled engine error")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
