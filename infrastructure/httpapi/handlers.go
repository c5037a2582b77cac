package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper/domain"
	"whisper/repositories"
	"whisper/services"
)

var validate = validator.New()

// Handler exposes the messaging core over REST. The live push path is the
// WebSocket server; everything here is the authoritative request/response
// side clients reconcile against.
type Handler struct {
	log  *slog.Logger
	chat services.IChatService
	auth services.IAuthService
}

func NewHandler(log *slog.Logger, chat services.IChatService, auth services.IAuthService) *Handler {
	return &Handler{log: log, chat: chat, auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type sendRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Text        string `json:"text" validate:"required"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		State:     string(m.State),
		CreatedAt: m.CreatedAt,
	}
}

type chatResponse struct {
	ChatID         uuid.UUID `json:"chat_id"`
	Counterpart    string    `json:"counterpart"`
	LastText       string    `json:"last_text"`
	LastSenderID   string    `json:"last_sender_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type searchHitResponse struct {
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Lang      string    `json:"lang"`
	CreatedAt time.Time `json:"created_at"`
}

func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Signup(req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req sendRequest
	if err := decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.chat.SendMessage(r.Context(), domain.SendCommand{
		SenderID:    userID,
		RecipientID: req.RecipientID,
		Text:        req.Text,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	summaries, err := h.chat.ListChats(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	payload := lo.Map(summaries, func(s services.ChatSummary, _ int) chatResponse {
		return chatResponse{
			ChatID:         s.ChatID,
			Counterpart:    s.Counterpart,
			LastText:       s.LastText,
			LastSenderID:   s.LastSenderID,
			LastActivityAt: s.LastActivityAt,
		}
	})
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	transcript, err := h.chat.FetchMessages(r.Context(), domain.FetchCommand{
		ChatID:      chatID,
		RequesterID: userID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, lo.Map(transcript, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (h *Handler) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	hits, err := h.chat.SearchMessages(r.Context(), chatID, userID, query)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, lo.Map(hits, func(hit repositories.SearchHit, _ int) searchHitResponse {
		return searchHitResponse{
			MessageID: hit.MessageID,
			SenderID:  hit.SenderID,
			Text:      hit.Text,
			Lang:      hit.Lang,
			CreatedAt: hit.CreatedAt,
		}
	}))
}
