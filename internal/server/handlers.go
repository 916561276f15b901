package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/popgate/popgate/internal/engine"
)

type HealthResponse struct {
	Status           string `json:"status"`
	ExperiencesCount int    `json:"experiences_count"`
	Sessions         int    `json:"sessions"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	exps, err := s.store.ListExperiences(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := HealthResponse{
		Status:           "ok",
		ExperiencesCount: len(exps),
		Sessions:         s.sessions.count(),
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// BrowserEvent is one raw event observed by the pg.js collector.
type BrowserEvent struct {
	Type string `json:"type"` // load, pointer, pointerleave, scroll, hidden, visible

	// load
	Mobile bool `json:"mobile,omitempty"`

	// pointer
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	// pointerleave
	Target string `json:"target,omitempty"`

	// scroll
	Top      int `json:"top,omitempty"`
	Viewport int `json:"viewport,omitempty"`
	Doc      int `json:"doc,omitempty"`
}

// BeaconRequest is a batch of events for one visitor session.
type BeaconRequest struct {
	SessionID string         `json:"sid"`
	URL       string         `json:"url"`
	Events    []BrowserEvent `json:"events"`
}

// ShowItem is one experience the page should present.
type ShowItem struct {
	DecisionID   string         `json:"decisionId"`
	ExperienceID string         `json:"experienceId"`
	Kind         string         `json:"kind"`
	Content      map[string]any `json:"content,omitempty"`
}

type BeaconResponse struct {
	SessionID string     `json:"sid"`
	Show      []ShowItem `json:"show"`
}

// handleBeacon feeds a batch of browser events into the visitor's engine
// session and returns any show=true decisions produced along the way.
func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	// The collector script runs on customer pages.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req BeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.acquire(req.SessionID)
	if err != nil {
		s.log.Error("session setup failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sess.mu.Lock()
	if req.URL != "" {
		sess.eng.SetLocation(req.URL)
	}
	for _, ev := range req.Events {
		sess.apply(ev)
	}
	shown := sess.drainPending()
	sess.mu.Unlock()

	resp := BeaconResponse{SessionID: sess.id, Show: make([]ShowItem, 0, len(shown))}
	for _, dec := range shown {
		item := ShowItem{
			DecisionID:   dec.ID,
			ExperienceID: dec.ExperienceID,
			Kind:         string(dec.Kind),
		}
		if exp := s.experienceContent(r.Context(), dec.ExperienceID); exp != nil {
			item.Content = exp
		}
		resp.Show = append(resp.Show, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// apply dispatches one browser event to the matching signal source.
// Call with the session lock held.
func (sess *session) apply(ev BrowserEvent) {
	switch ev.Type {
	case "load":
		if !sess.loaded {
			sess.loaded = true
			sess.exit.Start(ev.Mobile)
			sess.scroll.Start()
			sess.delay.Start()
		}
		sess.visits.Observe()
	case "pointer":
		sess.exit.ObservePointer(ev.X, ev.Y)
	case "pointerleave":
		sess.exit.PointerLeave(ev.Target)
	case "scroll":
		sess.scroll.Observe(ev.Top, ev.Viewport, ev.Doc)
	case "hidden":
		sess.delay.PageHidden()
	case "visible":
		sess.delay.PageVisible()
	}
}

func (s *Server) experienceContent(ctx context.Context, id string) map[string]any {
	exp, err := s.store.GetExperience(ctx, id)
	if err != nil {
		return nil
	}
	return exp.Content
}

func (s *Server) handleExperiences(w http.ResponseWriter, r *http.Request) {
	exps, err := s.store.ListExperiences(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type item struct {
		ID        string            `json:"id"`
		Kind      string            `json:"kind"`
		Priority  int               `json:"priority"`
		Targeting engine.Targeting  `json:"targeting"`
		Frequency *engine.Frequency `json:"frequency,omitempty"`
	}
	out := make([]item, 0, len(exps))
	for _, exp := range exps {
		out = append(out, item{
			ID:        exp.ID,
			Kind:      exp.Kind,
			Priority:  exp.Priority,
			Targeting: exp.Targeting,
			Frequency: exp.Frequency,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := s.store.ListDecisions(r.Context(), limit)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
