package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"zuppa/internal/timeform"
	"zuppa/pkg/logx"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, nil); err != nil {
		s.log.Error("render form", logx.Err(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleCreateReminder accepts the submission form. Field names:
//
//	message        free text, required
//	event_time     local wall clock, "YYYY-MM-DDTHH:MM" (datetime-local)
//	offset_minutes lead offset in minutes, >= 0
//	target_user    opaque recipient handle
//	tz_offset      client UTC offset in minutes, as reported by
//	               Date.prototype.getTimezoneOffset()
//
// Invalid input is rejected before anything is persisted.
func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	message := strings.TrimSpace(r.PostFormValue("message"))
	target := strings.TrimSpace(r.PostFormValue("target_user"))
	if message == "" || target == "" {
		http.Error(w, "message and target_user are required", http.StatusBadRequest)
		return
	}

	lead, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("offset_minutes")))
	if err != nil {
		http.Error(w, "offset_minutes must be an integer", http.StatusBadRequest)
		return
	}
	tzOffset, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("tz_offset")))
	if err != nil {
		http.Error(w, "tz_offset must be an integer", http.StatusBadRequest)
		return
	}

	dueAt, eventAt, err := timeform.Normalize(r.PostFormValue("event_time"), tzOffset, lead)
	if err != nil {
		if errors.Is(err, timeform.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	id, err := s.store.Create(r.Context(), message, dueAt, eventAt, target)
	if err != nil {
		s.log.Error("create reminder", logx.Err(err))
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	s.met.ReminderCreated()
	s.log.Info("reminder created",
		logx.Int64("id", id),
		logx.String("target", target),
		logx.Time("due_at", dueAt),
		logx.Time("event_at", eventAt))

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
