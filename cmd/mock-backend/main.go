// Command mock-backend runs a deterministic answer backend for manual
// testing. It speaks the session wire protocol: clients register an
// event stream, ask a question, and receive a canned answer as a
// sequence of server-pushed events.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	b := newBackend()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /register-client", b.handleRegister)
	mux.HandleFunc("POST /ask", b.handleAsk)
	mux.HandleFunc("GET /stop", b.handleStop)
	mux.HandleFunc("POST /feedback", b.handleFeedback)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// frame is one SSE frame queued for a session's stream.
type frame struct {
	event string
	data  string
}

type backend struct {
	mu       sync.Mutex
	sessions map[string]chan frame
}

func newBackend() *backend {
	return &backend{sessions: make(map[string]chan frame)}
}

func (b *backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	if uuid == "" {
		writeError(w, http.StatusBadRequest, "uuid is required")
		return
	}

	ch := make(chan frame, 32)
	b.mu.Lock()
	if prev, ok := b.sessions[uuid]; ok {
		close(prev)
	}
	b.sessions[uuid] = ch
	b.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher := w.(http.Flusher)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	slog.Info("session registered", "uuid", uuid)

	defer b.release(uuid, ch)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (b *backend) handleAsk(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	b.mu.Lock()
	ch, ok := b.sessions[uuid]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	go b.answer(ch, req.Question)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"accepted"}`)
}

// answer emits a deterministic event sequence for the question. Sends
// to a closed or full channel are abandoned; the session went away.
func (b *backend) answer(ch chan frame, question string) {
	defer func() { recover() }()

	send := func(f frame) bool {
		select {
		case ch <- f:
			return true
		case <-time.After(time.Second):
			return false
		}
	}

	send(frame{"telemetry", `{"telemetry":{"model":"mock-1","retrieval_ms":12}}`})

	words := fmt.Sprintf("You asked %q. This mock backend always answers with a fixed passage about retrieval.", question)
	for _, fragment := range splitFragments(words, 5) {
		if !send(frame{"answer", fragment}) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	send(frame{"passages", `{"passages":[` +
		`{"id":"mock-1","text":["Retrieval narrows the corpus before generation."],"score":0.93,"metadata":{"title":["Mock Handbook"],"date":["2025-06-01"]}},` +
		`{"id":"mock-2","text":["Scores below the threshold are hidden by default."],"score":0.61,"metadata":{"title":["Mock Appendix"],"date":["2024-11-20"]}}]}`})
	send(frame{"related", `{"questions":["What is a passage score?","How are sources ranked?"]}`})
	send(frame{"complete", ""})
}

func splitFragments(s string, wordsPer int) []string {
	words := strings.Fields(s)
	var out []string
	for len(words) > 0 {
		n := wordsPer
		if n > len(words) {
			n = len(words)
		}
		out = append(out, strings.Join(words[:n], " "))
		words = words[n:]
	}
	return out
}

func (b *backend) handleStop(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	b.mu.Lock()
	ch, ok := b.sessions[uuid]
	if ok {
		delete(b.sessions, uuid)
	}
	b.mu.Unlock()
	if !ok {
		// Stopping an unknown session is fine; the client retries stops.
		w.WriteHeader(http.StatusNotFound)
		return
	}
	close(ch)
	slog.Info("session stopped", "uuid", uuid)
	w.WriteHeader(http.StatusOK)
}

func (b *backend) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.Feedback {
	case "thumbs_up", "thumbs_down":
	default:
		writeError(w, http.StatusBadRequest, "feedback must be thumbs_up or thumbs_down")
		return
	}
	slog.Info("feedback received", "uuid", r.URL.Query().Get("uuid"), "feedback", req.Feedback)
	w.WriteHeader(http.StatusOK)
}

func (b *backend) release(uuid string, ch chan frame) {
	b.mu.Lock()
	if b.sessions[uuid] == ch {
		delete(b.sessions, uuid)
	}
	b.mu.Unlock()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
