package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"histosaga-service/internal/app"
	"histosaga-service/internal/domain"
	"histosaga-service/internal/question"
)

// RateLimit bounds how fast a client may send messages on one connection.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type WSHandler struct {
	service  *app.ActivityService
	upgrader websocket.Upgrader
	limit    RateLimit
	log      *zap.Logger
}

func NewWSHandler(service *app.ActivityService, limit RateLimit, log *zap.Logger) *WSHandler {
	if limit.PerSecond <= 0 {
		limit.PerSecond = 10
	}
	if limit.Burst <= 0 {
		limit.Burst = 20
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		limit: limit,
		log:   log,
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

type reviewIntroPayload struct {
	Missed int `json:"missed"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

// errorCode maps domain errors to stable client-facing codes.
func errorCode(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrResetCodeNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrActivityEmpty):
		return "empty_activity"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrResetCodeExpired), errors.Is(err, domain.ErrResetCodeAttempts),
		errors.Is(err, domain.ErrResetCodeIncorrect), errors.Is(err, domain.ErrResetCodeUnverified):
		return "reset_code"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "unavailable"
	}
	return "internal"
}

// ServeWS upgrades HTTP requests to websockets and runs one activity session
// per connection. Closing the connection abandons an unfinished session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	activityID := r.URL.Query().Get("activityId")
	userID := r.URL.Query().Get("userId")
	if activityID == "" || userID == "" {
		http.Error(w, "missing activityId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	opened, err := h.service.Open(ctx, userID, activityID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	sessionID := opened.SessionID
	defer h.service.Abandon(ctx, sessionID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	}()
	defer func() {
		close(send)
		<-writerDone
	}()
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	push(outboundMessage[any]{Type: "session", Payload: opened})

	limiter := rate.NewLimiter(rate.Limit(h.limit.PerSecond), h.limit.Burst)
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if !limiter.Allow() {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "rate_limited", Message: "too many messages"}})
			continue
		}
		switch inbound.Type {
		case "answer":
			var answer question.Answer
			if err := json.Unmarshal(inbound.Payload, &answer); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid answer payload"}})
				continue
			}
			feedback, err := h.service.Answer(ctx, sessionID, answer)
			if err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "feedback", Payload: feedback})
		case "continue":
			progressed, err := h.service.Continue(ctx, sessionID)
			if err != nil {
				push(errorMessage(err))
				continue
			}
			switch progressed.Kind {
			case app.StepQuestion:
				push(outboundMessage[any]{Type: "question", Payload: progressed.Prompt})
			case app.StepReviewIntro:
				push(outboundMessage[any]{Type: "reviewIntro", Payload: reviewIntroPayload{Missed: progressed.Missed}})
			case app.StepCompleted:
				push(outboundMessage[any]{Type: "completed", Payload: progressed.Outcome})
			}
		case "review":
			prompt, err := h.service.BeginReview(ctx, sessionID)
			if err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "question", Payload: prompt})
		case "exit":
			return
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}})
		}
	}
}
