package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/app"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// LeaderboardSubscriber delivers leaderboard updates for a session until the
// cancel function is called.
type LeaderboardSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan domain.Leaderboard, func(), error)
}

// WSHandler streams status and leaderboard updates over a websocket. It is
// a delivery optimization only: every pushed status is recomputed through
// the pure resolver, so clients that fall back to HTTP polling see exactly
// the same states.
type WSHandler struct {
	service    *app.GameService
	subscriber LeaderboardSubscriber
	clock      clockwork.Clock
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	tick       time.Duration
}

func NewWSHandler(service *app.GameService, subscriber LeaderboardSubscriber, clock clockwork.Clock, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:    service,
		subscriber: subscriber,
		clock:      clock,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick: time.Second,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game
// use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")
	if sessionID == "" || userID == "" {
		http.Error(w, "missing sessionId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	status, err := h.service.GetStatus(r.Context(), sessionID, userID, h.clock.Now())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: wsError(err)})
		return
	}

	updates, cancelUpdates, err := h.subscriber.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: wsError(err)})
		return
	}
	defer cancelUpdates()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	// Pump leaderboard updates and tick the resolver so the client sees
	// phase changes without polling. Status is only re-sent when the
	// resolved phase or slot actually changed.
	go func() {
		defer close(pumpDone)
		ticker := h.clock.NewTicker(h.tick)
		defer ticker.Stop()
		lastPhase := status.Phase
		lastSlot := status.SlotIndex
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-ticker.Chan():
				current, err := h.service.GetStatus(r.Context(), sessionID, userID, h.clock.Now())
				if err != nil {
					continue
				}
				if current.Phase == lastPhase && current.SlotIndex == lastSlot {
					continue
				}
				lastPhase = current.Phase
				lastSlot = current.SlotIndex
				select {
				case send <- outboundMessage[any]{Type: "status", Payload: current}:
				case <-closeSignals:
					return
				}
				if current.Phase == domain.PhaseEnded {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "status", Payload: status}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "BAD_REQUEST", Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.Submit(r.Context(), userID, sessionID, payload.QuestionID, payload.Answer, h.clock.Now())
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsError(err)}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		case "status":
			current, err := h.service.GetStatus(r.Context(), sessionID, userID, h.clock.Now())
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsError(err)}
				continue
			}
			send <- outboundMessage[any]{Type: "status", Payload: current}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "BAD_REQUEST", Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}

func wsError(err error) errorPayload {
	code := classify(err)
	return errorPayload{Code: code, Message: err.Error()}
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfWindow):
		return "OUT_OF_WINDOW"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return "DUPLICATE_SUBMISSION"
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrOptionNotFound):
		return "OPTION_NOT_FOUND"
	case errors.Is(err, domain.ErrUnavailable):
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
