package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"placement-quiz-service/internal/app"
	"placement-quiz-service/internal/auth"
	"placement-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	tick     time.Duration
}

func NewWSHandler(service *app.QuizService, tick time.Duration) *WSHandler {
	if tick <= 0 {
		tick = time.Second
	}
	return &WSHandler{
		service: service,
		tick:    tick,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func errorMessage(err error) outboundMessage[any] {
	status, msg := statusOf(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg, Status: status}}
}

// ServeWS upgrades the request and serves answer and remaining-time messages
// for the caller's active session. Timed sessions also receive a tick with the
// time left and a single expired message when it runs out.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, domain.ErrUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(tickerDone)
		h.runTicker(ctx, who.ID, send, closeSignals)
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Status: http.StatusBadRequest}})
				continue
			}
			outcome, err := h.service.SubmitAnswer(ctx, who.ID, payload.toSubmission())
			if err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "answerResult", Payload: outcome})
		case "remaining":
			left, timed, err := h.service.Remaining(ctx, who.ID)
			if err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "remaining", Payload: remainingOf(left.Seconds(), timed)})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Status: http.StatusBadRequest}})
		}
	}

	close(closeSignals)
	cancel()
	<-tickerDone
	close(send)
	<-writerDone
}

// runTicker pushes the time left of a timed session until it expires, the
// session ends or the connection closes. Untimed sessions get no ticks.
func (h *WSHandler) runTicker(ctx context.Context, key string, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	for {
		select {
		case <-closeSignals:
			return
		case <-ticker.C:
		}

		left, timed, err := h.service.Remaining(ctx, key)
		if errors.Is(err, domain.ErrSessionExpired) {
			// Not started yet or already finished; keep waiting for a session.
			continue
		}
		if err != nil {
			log.Printf("ws tick for %s: %v", key, err)
			continue
		}
		if !timed {
			continue
		}

		msg := outboundMessage[any]{Type: "tick", Payload: remainingOf(left.Seconds(), true)}
		expired := left <= 0
		if expired {
			msg = outboundMessage[any]{Type: "expired", Payload: remainingOf(0, true)}
		}
		select {
		case send <- msg:
		case <-closeSignals:
			return
		}
		if expired {
			return
		}
	}
}
