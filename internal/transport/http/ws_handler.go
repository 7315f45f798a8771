package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// WSHandler is the event router: it dispatches inbound transport events
// to registry/room operations and relays outbound events through the hub.
type WSHandler struct {
	hub      *Hub
	registry *app.Registry
	catalog  app.QuizCatalog
	strict   bool
	upgrader websocket.Upgrader
}

// NewWSHandler wires the router. With strict enabled, rejected quiz
// questions are reported to the host instead of dropped silently.
func NewWSHandler(hub *Hub, registry *app.Registry, catalog app.QuizCatalog, strict bool) *WSHandler {
	return &WSHandler{
		hub:      hub,
		registry: registry,
		catalog:  catalog,
		strict:   strict,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type pinPayload struct {
	PIN string `json:"pin"`
}

type joinPayload struct {
	PIN  string `json:"pin"`
	Name string `json:"name"`
}

type answerPayload struct {
	PIN         string `json:"pin"`
	OptionIndex int    `json:"optionIndex"`
}

type loadQuizPayload struct {
	PIN       string                 `json:"pin"`
	QuizID    string                 `json:"quizId,omitempty"`
	Questions []domain.QuestionInput `json:"questions,omitempty"`
}

// ServeWS upgrades the request and runs the connection's read loop. The
// connection ID minted here is the participant identity for the whole
// connection; it is never persisted.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := h.hub.Register(conn)
	defer h.hub.Unregister(connID)
	defer h.registry.Disconnect(connID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(r.Context(), connID, inbound)
	}
}

// dispatch routes one inbound event. A panic in a handler is contained to
// this event so one malformed message cannot take down unrelated sessions.
func (h *WSHandler) dispatch(ctx context.Context, connID string, msg inboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ws dispatch panic for %s (%s): %v", connID, msg.Type, rec)
		}
	}()

	switch msg.Type {
	case "create-session":
		room := h.registry.Create(connID)
		h.hub.Send(connID, app.EventSessionCreated, app.SessionCreatedPayload{PIN: room.PIN()})

	case "load-quiz":
		var payload loadQuizPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(connID, "invalid load-quiz payload")
			return
		}
		h.loadQuiz(ctx, connID, payload)

	case "next-question":
		var payload pinPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(connID, "invalid next-question payload")
			return
		}
		if room, ok := h.registry.Get(payload.PIN); ok {
			room.NextQuestion(connID)
		}

	case "reveal":
		var payload pinPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(connID, "invalid reveal payload")
			return
		}
		if room, ok := h.registry.Get(payload.PIN); ok {
			room.Reveal(connID)
		}

	case "attach":
		var payload pinPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(connID, "invalid attach payload")
			return
		}
		if room, ok := h.registry.Get(payload.PIN); ok {
			room.AttachHost(connID)
		}

	case "join":
		var payload joinPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(connID, "invalid join payload")
			return
		}
		room, ok := h.registry.Get(payload.PIN)
		if !ok {
			h.sendError(connID, domain.ErrSessionNotFound.Error())
			return
		}
		room.Join(connID, payload.Name)

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(connID, "invalid answer payload")
			return
		}
		if room, ok := h.registry.Get(payload.PIN); ok {
			room.SubmitAnswer(connID, payload.OptionIndex)
		}

	default:
		h.sendError(connID, "unsupported message type")
	}
}

func (h *WSHandler) loadQuiz(ctx context.Context, connID string, payload loadQuizPayload) {
	room, ok := h.registry.Get(payload.PIN)
	if !ok {
		return
	}

	inputs := payload.Questions
	if payload.QuizID != "" && h.catalog != nil {
		quiz, err := h.catalog.GetQuiz(ctx, payload.QuizID)
		if err != nil {
			log.Printf("load-quiz: catalog lookup %q failed: %v", payload.QuizID, err)
			h.sendError(connID, domain.ErrQuizNotFound.Error())
			return
		}
		inputs = quiz.Questions
	}

	questions, rejected := domain.ValidateQuestions(inputs)
	if h.strict && len(rejected) > 0 {
		for _, rej := range rejected {
			h.sendError(connID, fmt.Sprintf("question %d rejected: %s", rej.Index, rej.Reason))
		}
	}
	room.LoadQuiz(connID, questions)
}

func (h *WSHandler) sendError(connID, message string) {
	h.hub.Send(connID, app.EventError, app.ErrorPayload{Message: message})
}
