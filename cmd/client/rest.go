package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper/client"
	"whisper/domain"
)

// restClient talks to the authoritative REST surface. Every reconciliation
// described in the client package starts from one of these calls.
type restClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func (m messageResponse) toDomain() domain.Message {
	return domain.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		State:     domain.DeliveryState(m.State),
		CreatedAt: m.CreatedAt,
	}
}

type chatResponse struct {
	ChatID       uuid.UUID `json:"chat_id"`
	Counterpart  string    `json:"counterpart"`
	LastText     string    `json:"last_text"`
	LastSenderID string    `json:"last_sender_id"`
}

type searchHit struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

func (c *restClient) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server: %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// authenticate tries login first and falls back to signup, so first runs
// do not need a separate registration step.
func (c *restClient) authenticate(email, password string) (string, error) {
	creds := map[string]string{"email": email, "password": password}

	var resp tokenResponse
	if err := c.do(http.MethodPost, "/api/auth/login", creds, &resp); err == nil {
		return resp.Token, nil
	}
	if err := c.do(http.MethodPost, "/api/auth/signup", creds, &resp); err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	return resp.Token, nil
}

func (c *restClient) sendMessage(recipientID, text string) (domain.Message, error) {
	var resp messageResponse
	err := c.do(http.MethodPost, "/api/messages",
		map[string]string{"recipient_id": recipientID, "text": text}, &resp)
	if err != nil {
		return domain.Message{}, err
	}
	return resp.toDomain(), nil
}

func (c *restClient) listChats() ([]client.Summary, error) {
	var resp []chatResponse
	if err := c.do(http.MethodGet, "/api/chats", nil, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp, func(r chatResponse, _ int) client.Summary {
		return client.Summary{
			ChatID:      r.ChatID,
			Counterpart: r.Counterpart,
			LastText:    r.LastText,
			LastSender:  r.LastSenderID,
		}
	}), nil
}

func (c *restClient) fetchMessages(chatID uuid.UUID) ([]domain.Message, error) {
	var resp []messageResponse
	if err := c.do(http.MethodGet, "/api/chats/"+chatID.String()+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp, func(r messageResponse, _ int) domain.Message {
		return r.toDomain()
	}), nil
}

func (c *restClient) search(chatID uuid.UUID, query string) ([]searchHit, error) {
	var resp []searchHit
	path := "/api/chats/" + chatID.String() + "/search?q=" + url.QueryEscape(query)
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// userIDFromToken extracts the identity claim without verifying the
// signature; the server is the only party that needs to trust it.
func userIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("cannot parse token: %w", err)
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("token has no user identity")
	}
	return userID, nil
}
