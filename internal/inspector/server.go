// Package inspector serves a read-only HTTP view of agent mode: live wait
// events as Server-Sent Events plus JSON snapshots of status and history.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/wait"
)

// HistorySource lists recorded waits, newest first. *session.Store implements it.
type HistorySource interface {
	History(limit int) ([]wait.Record, error)
}

// Server is the inspector HTTP server.
type Server struct {
	bus       *events.MemoryBus
	history   HistorySource
	logger    *slog.Logger
	mux       *http.ServeMux
	startTime time.Time
}

// New creates an inspector over bus and history. history may be nil.
func New(bus *events.MemoryBus, history HistorySource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		bus:       bus,
		history:   history,
		logger:    logger,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
	}

	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/waits/{id}", s.handleWait)
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("inspector listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("inspector: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("inspector shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("inspector: %w", err)
		}
		return nil
	}
}

// handleEvents replays retained events and then streams new ones.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	past, ch := s.bus.SubscribeWithHistory()
	defer s.bus.Unsubscribe(ch)

	for _, ev := range past {
		writeEvent(w, ev)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	counts := map[wait.Outcome]int{}
	retained := s.bus.History(time.Time{})
	for _, ev := range retained {
		switch ev.Type {
		case events.EventWaitSatisfied:
			counts[wait.OutcomeSatisfied]++
		case events.EventWaitTimeout:
			counts[wait.OutcomeTimeout]++
		case events.EventWaitError:
			counts[wait.OutcomeError]++
		}
	}

	writeJSON(w, map[string]any{
		"uptime":    time.Since(s.startTime).Round(time.Millisecond).String(),
		"events":    len(retained),
		"satisfied": counts[wait.OutcomeSatisfied],
		"timeouts":  counts[wait.OutcomeTimeout],
		"errors":    counts[wait.OutcomeError],
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, []wait.Record{})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.history.History(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []wait.Record{}
	}
	writeJSON(w, records)
}

// handleWait returns the retained event trail of one wait invocation.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	trail := s.bus.ForWait(r.PathValue("id"))
	if len(trail) == 0 {
		http.Error(w, "unknown wait", http.StatusNotFound)
		return
	}
	writeJSON(w, trail)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
