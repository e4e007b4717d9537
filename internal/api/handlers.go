package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/service"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.svc.Users.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) listHabits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	habits, err := s.svc.Habits.List(r.Context(), UserID(r.Context()),
		queryBool(q.Get("include_archived")), queryBool(q.Get("include_deleted")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (s *Server) createHabit(w http.ResponseWriter, r *http.Request) {
	var in service.HabitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.svc.Habits.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) getHabit(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Habits.Get(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) updateHabit(w http.ResponseWriter, r *http.Request) {
	var in service.HabitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	userID, habitID := UserID(ctx), mux.Vars(r)["id"]
	h, policyChanged, err := s.svc.Habits.Update(ctx, userID, habitID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if policyChanged {
		if _, err := s.svc.Streaks.Recalculate(ctx, userID, habitID); err != nil {
			s.log.Error("Streak recalculation after update failed", "habit_id", habitID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, h)
}

// habitAction adapts a habit lifecycle call to a handler answering 204.
func (s *Server) habitAction(fn func(ctx context.Context, userID, habitID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) completeHabit(w http.ResponseWriter, r *http.Request) {
	var in service.CompletionInput
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
	}
	res, err := s.svc.Streaks.RecordCompletion(r.Context(), UserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) listCompletions(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.Habits.Completions(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) countCompletions(w http.ResponseWriter, r *http.Request) {
	start, end, err := queryRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.svc.Habits.CompletionCount(r.Context(), UserID(r.Context()), mux.Vars(r)["id"], start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) getStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Streaks.Get(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) recalculateStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Streaks.Recalculate(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listStreaks(w http.ResponseWriter, r *http.Request) {
	streaks, err := s.svc.Streaks.List(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streaks)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, apperrors.Invalid("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	list, err := s.svc.Notifications.List(r.Context(), UserID(r.Context()), queryBool(q.Get("unread")), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.UnreadCount(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Notifications.MarkRead(r.Context(), UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.MarkAllRead(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "realtime push is disabled"})
		return
	}
	if err := s.hub.ServeWS(w, r, UserID(r.Context())); err != nil {
		s.log.Debug("Websocket upgrade failed", "error", err)
	}
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// queryRange parses the from/to RFC 3339 query parameters.
func queryRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.Invalid("from must be an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.Invalid("to must be an RFC 3339 timestamp")
	}
	return start, end, nil
}
