package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"whisper/client"
	"whisper/domain"
	"whisper/domain/event"
	"whisper/infrastructure/ws"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL string `envconfig:"WHISPER_SERVER_URL" default:"http://localhost:8080"`
	Email     string `envconfig:"WHISPER_EMAIL" required:"true"`
	Password  string `envconfig:"WHISPER_PASSWORD" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := &restClient{baseURL: config.ServerURL, http: &http.Client{Timeout: 10 * time.Second}}

	// Login, falling back to signup for a fresh account.
	token, err := api.authenticate(config.Email, config.Password)
	if err != nil {
		return exitRuntime, err
	}
	api.token = token

	selfID, err := userIDFromToken(token)
	if err != nil {
		return exitRuntime, err
	}

	session := &session{
		log:        log,
		api:        api,
		transcript: client.NewTranscript(selfID),
		typing:     client.NewTypingTracker(),
		chats:      make(map[uuid.UUID]string),
	}

	conn, err := session.connect(ctx, config.ServerURL, token)
	if err != nil {
		return exitRuntime, err
	}
	defer conn.Close()

	go session.readPump(ctx, conn)

	color.Green.Printf("Connected as %s. Commands: /chats, /open <n>, /search <query>, /quit\n", config.Email)
	session.repl(ctx, conn)
	return exitOK, nil
}

// session owns everything the REPL and the read pump share.
type session struct {
	log        *slog.Logger
	api        *restClient
	transcript *client.Transcript
	typing     *client.TypingTracker

	// chats maps known chat ids to counterparts; refreshed by /chats.
	chats       map[uuid.UUID]string
	counterpart string
	listed      []client.Summary
}

func (s *session) connect(ctx context.Context, serverURL, token string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	env, err := ws.NewEnvelope(ws.EventIdentify, ws.IdentifyPayload{Token: token})
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(env); err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	return conn, nil
}

// readPump applies every server push onto the local transcript and echoes
// it for the terminal.
func (s *session) readPump(ctx context.Context, conn *websocket.Conn) {
	for ctx.Err() == nil {
		var env ws.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			s.log.Debug("connection lost", "error", err)
			return
		}

		switch env.Event {
		case event.NameNewMessage:
			var msg ws.MessageDTO
			if json.Unmarshal(env.Data, &msg) != nil {
				continue
			}
			s.transcript.ApplyIncoming(domain.Message{
				ID:        msg.ID,
				ChatID:    msg.ChatID,
				SenderID:  msg.SenderID,
				Text:      msg.Text,
				State:     domain.DeliveryState(msg.State),
				CreatedAt: msg.CreatedAt,
			})
			if msg.ChatID == s.transcript.ActiveChat() {
				color.Cyan.Printf("%s: %s\n", msg.SenderID, msg.Text)
			} else {
				color.Gray.Printf("(new message from %s)\n", msg.SenderID)
			}

		case event.NameMessageSeen:
			var payload struct {
				ChatID uuid.UUID `json:"chat_id"`
			}
			if json.Unmarshal(env.Data, &payload) != nil {
				continue
			}
			s.transcript.ApplySeen(payload.ChatID)
			if payload.ChatID == s.transcript.ActiveChat() {
				color.Gray.Println("(seen)")
			}

		case event.NameTyping, event.NameStopTyping:
			var payload struct {
				ChatID uuid.UUID `json:"chat_id"`
				UserID string    `json:"user_id"`
			}
			if json.Unmarshal(env.Data, &payload) != nil {
				continue
			}
			if env.Event == event.NameTyping {
				s.typing.Start(payload.ChatID, payload.UserID)
				color.Gray.Printf("%s is typing...\n", payload.UserID)
			} else {
				s.typing.Stop(payload.ChatID, payload.UserID)
			}

		case event.NameOnlineUsers:
			var payload struct {
				Online []string `json:"online"`
			}
			if json.Unmarshal(env.Data, &payload) != nil {
				continue
			}
			color.Gray.Printf("online: %s\n", strings.Join(payload.Online, ", "))
		}
	}
}

func (s *session) repl(ctx context.Context, conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/chats":
			s.showChats()
		case strings.HasPrefix(line, "/open "):
			s.openChat(conn, strings.TrimPrefix(line, "/open "))
		case strings.HasPrefix(line, "/search "):
			s.search(strings.TrimPrefix(line, "/search "))
		case strings.HasPrefix(line, "/msg "):
			// /msg <user> <text> starts a brand-new conversation.
			parts := strings.SplitN(strings.TrimPrefix(line, "/msg "), " ", 2)
			if len(parts) == 2 {
				s.send(parts[0], parts[1])
			}
		default:
			if s.counterpart == "" {
				color.Red.Println("no chat open; use /chats then /open <n>, or /msg <user> <text>")
				continue
			}
			s.send(s.counterpart, line)
		}
	}
}

func (s *session) showChats() {
	summaries, err := s.api.listChats()
	if err != nil {
		color.Red.Println(err)
		return
	}
	s.listed = summaries
	s.transcript.SetSummaries(summaries)
	for _, sum := range summaries {
		s.chats[sum.ChatID] = sum.Counterpart
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "With", "Last message", "Unread"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for i, sum := range summaries {
		table.Append([]string{
			strconv.Itoa(i + 1),
			sum.Counterpart,
			sum.LastText,
			strconv.Itoa(sum.Unread),
		})
	}
	table.Render()
}

func (s *session) openChat(conn *websocket.Conn, arg string) {
	idx, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || idx < 1 || idx > len(s.listed) {
		color.Red.Println("usage: /chats first, then /open <row number>")
		return
	}
	target := s.listed[idx-1]

	transcript, err := s.api.fetchMessages(target.ChatID)
	if err != nil {
		color.Red.Println(err)
		return
	}
	s.transcript.Activate(target.ChatID, transcript)
	s.counterpart = target.Counterpart

	env, err := ws.NewEnvelope(ws.EventJoin, ws.JoinPayload{ChatID: target.ChatID})
	if err == nil {
		_ = conn.WriteJSON(env)
	}

	color.Green.Printf("--- chat with %s ---\n", target.Counterpart)
	for _, entry := range s.transcript.Entries() {
		s.printEntry(entry)
	}
}

func (s *session) search(query string) {
	chatID := s.transcript.ActiveChat()
	if chatID == uuid.Nil {
		color.Red.Println("open a chat before searching")
		return
	}
	hits, err := s.api.search(chatID, query)
	if err != nil {
		color.Red.Println(err)
		return
	}
	for _, hit := range hits {
		color.Yellow.Printf("%s: %s\n", hit.SenderID, hit.Text)
	}
}

// send renders optimistically, then reconciles with the server's answer.
func (s *session) send(recipient, text string) {
	chatID := s.transcript.ActiveChat()
	localID := s.transcript.BeginSend(chatID, text, time.Now())

	msg, err := s.api.sendMessage(recipient, text)
	if err != nil {
		s.transcript.Fail(localID)
		color.Red.Printf("send failed: %v\n", err)
		return
	}
	s.transcript.Confirm(localID, msg)
	s.printEntry(client.Entry{Message: msg, Status: client.StatusConfirmed})
}

func (s *session) printEntry(entry client.Entry) {
	marker := ""
	switch {
	case entry.Status == client.StatusPending:
		marker = " (sending)"
	case entry.Status == client.StatusFailed:
		marker = " (failed)"
	case entry.Message.State == domain.StateSeen:
		marker = " (seen)"
	}
	color.Cyan.Printf("%s: %s%s\n", entry.Message.SenderID, entry.Message.Text, marker)
}
