package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/app"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/game"
)

const storageTimeout = 5 * time.Second

// GameDefaults are the configured fallback timings applied when a create
// request leaves them out.
type GameDefaults struct {
	AnswerTime   time.Duration
	ResultTime   time.Duration
	IntervalTime time.Duration
}

// Handler exposes the game use cases over HTTP. Polling GET /status is the
// baseline delivery mechanism; the WebSocket push layer is optional on top.
type Handler struct {
	service  *app.GameService
	defaults GameDefaults
	clock    clockwork.Clock
	log      zerolog.Logger
}

func NewHandler(service *app.GameService, defaults GameDefaults, clock clockwork.Clock, log zerolog.Logger) *Handler {
	return &Handler{service: service, defaults: defaults, clock: clock, log: log}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("POST /sessions/{id}/activate", h.transition((*app.GameService).ActivateSession))
	mux.HandleFunc("POST /sessions/{id}/complete", h.transition((*app.GameService).CompleteSession))
	mux.HandleFunc("POST /sessions/{id}/cancel", h.transition((*app.GameService).CancelSession))
	mux.HandleFunc("GET /sessions/{id}/status", h.status)
	mux.HandleFunc("POST /sessions/{id}/answers", h.submit)
	mux.HandleFunc("GET /sessions/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /leaderboard", h.historicalLeaderboard)
}

type createSessionRequest struct {
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	AnswerTimeSec   int       `json:"answerTimeSec"`
	ResultTimeSec   int       `json:"resultTimeSec"`
	IntervalTimeSec int       `json:"intervalTimeSec"`
	Category        string    `json:"category"`
	Difficulty      string    `json:"difficulty"`
	QuestionIDs     []string  `json:"questionIds"`
}

type createSessionResponse struct {
	Session domain.Session        `json:"session"`
	Slots   []domain.QuestionSlot `json:"slots"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	ctx, cancel := h.storageCtx(r)
	defer cancel()

	params := game.ScheduleParams{
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		AnswerTime:   secondsOrDefault(req.AnswerTimeSec, h.defaults.AnswerTime),
		ResultTime:   secondsOrDefault(req.ResultTimeSec, h.defaults.ResultTime),
		IntervalTime: secondsOrDefault(req.IntervalTimeSec, h.defaults.IntervalTime),
		Category:     req.Category,
		Difficulty:   req.Difficulty,
	}
	session, slots, err := h.service.CreateSession(ctx, params, req.QuestionIDs)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, createSessionResponse{Session: session, Slots: slots})
}

func secondsOrDefault(sec int, fallback time.Duration) time.Duration {
	if sec == 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}

func (h *Handler) transition(op func(*app.GameService, context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := h.storageCtx(r)
		defer cancel()
		if err := op(h.service, ctx, r.PathValue("id")); err != nil {
			h.writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing userId")
		return
	}
	ctx, cancel := h.storageCtx(r)
	defer cancel()

	status, err := h.service.GetStatus(ctx, r.PathValue("id"), userID, h.clock.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

type submitRequest struct {
	UserID     string `json:"userId"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.UserID == "" || req.QuestionID == "" {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing userId or questionId")
		return
	}
	ctx, cancel := h.storageCtx(r)
	defer cancel()

	result, err := h.service.Submit(ctx, req.UserID, r.PathValue("id"), req.QuestionID, req.Answer, h.clock.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storageCtx(r)
	defer cancel()

	lb, err := h.service.Leaderboard(ctx, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) historicalLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LeaderboardFilter{
		SessionID:  q.Get("sessionId"),
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from timestamp")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to timestamp")
			return
		}
		filter.To = t
	}
	ctx, cancel := h.storageCtx(r)
	defer cancel()

	lb, err := h.service.HistoricalLeaderboard(ctx, filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) storageCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storageTimeout)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeDomainError maps the core taxonomy to HTTP. OutOfWindow and
// DuplicateSubmission are the expected player-facing conditions and get
// codes distinct from genuine failures.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOutOfWindow):
		h.writeError(w, http.StatusUnprocessableEntity, "OUT_OF_WINDOW", "answer window is not open for this question")
	case errors.Is(err, domain.ErrDuplicateSubmission):
		h.writeError(w, http.StatusConflict, "DUPLICATE_SUBMISSION", "question already answered")
	case errors.Is(err, domain.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
	case errors.Is(err, domain.ErrQuestionNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "question not found")
	case errors.Is(err, domain.ErrOptionNotFound):
		h.writeError(w, http.StatusUnprocessableEntity, "OPTION_NOT_FOUND", "answer matches no option")
	case errors.Is(err, domain.ErrInvalidSchedule):
		h.writeError(w, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		h.log.Error().Err(err).Msg("storage unavailable")
		h.writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "temporarily unavailable, retry")
	default:
		h.log.Error().Err(err).Msg("unclassified error")
		h.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("encode response")
	}
}
