package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-core/errors"
	"chat-core/services"

	"github.com/gorilla/mux"
)

const refreshCookie = "refreshToken"

type Handlers struct {
	chat            services.IChatService
	authSvc         services.IAuthService
	refreshDuration time.Duration
	log             *slog.Logger
}

func NewHandlers(chat services.IChatService, authSvc services.IAuthService,
	refreshDuration time.Duration, log *slog.Logger) *Handlers {
	return &Handlers{chat: chat, authSvc: authSvc, refreshDuration: refreshDuration, log: log}
}

// --- credential store ---

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	session, err := h.authSvc.Register(req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	session, err := h.authSvc.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, session)
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil {
		writeError(w, fmt.Errorf("no refresh token: %w", errors.ErrAuthenticationFailed))
		return
	}
	session, err := h.authSvc.Refresh(cookie.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, session)
}

func (h *Handlers) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeSession sets the rotating refresh cookie and returns the access
// token with the user record.
func (h *Handlers) writeSession(w http.ResponseWriter, status int, session services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    session.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.refreshDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, status, map[string]any{
		"accessToken": session.AccessToken,
		"user":        session.User,
	})
}

// --- conversations ---

type startConversationRequest struct {
	ParticipantID string `json:"participantId"`
}

func (h *Handlers) StartConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, errors.ErrAuthenticationFailed)
		return
	}
	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	conv, err := h.chat.StartConversation(r.Context(), id.LocalID, req.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type createConversationRequest struct {
	IsGroup        bool     `json:"isGroup"`
	Title          string   `json:"title"`
	ParticipantIDs []string `json:"participantIds"`
}

func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, errors.ErrAuthenticationFailed)
		return
	}
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	conv, err := h.chat.CreateConversation(r.Context(), id.LocalID, services.CreateConversationInput{
		IsGroup:        req.IsGroup,
		Title:          req.Title,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type addParticipantsRequest struct {
	UserIDs []string `json:"userIds"`
}

func (h *Handlers) AddParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, errors.ErrAuthenticationFailed)
		return
	}
	var req addParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	conv, err := h.chat.AddParticipants(r.Context(), id.LocalID, mux.Vars(r)["id"], req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, errors.ErrAuthenticationFailed)
		return
	}
	views, err := h.chat.ListConversations(r.Context(), id.LocalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, errors.ErrAuthenticationFailed)
		return
	}

	page := intQuery(r, "page", 1)
	limit := intQuery(r, "limit", 0)
	messages, hasMore, err := h.chat.ListMessages(r.Context(), id.LocalID, mux.Vars(r)["id"], page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"hasMore":  hasMore,
	})
}

func intQuery(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
