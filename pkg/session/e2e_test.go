package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/transport"
)

// answerBackend is an httptest backend speaking the real wire protocol:
// the event stream for a session stays silent until the question arrives.
type answerBackend struct {
	mu       sync.Mutex
	sessions map[string]chan string
	stops    int
}

func newAnswerBackend() *answerBackend {
	return &answerBackend{sessions: make(map[string]chan string)}
}

func (b *answerBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /register-client", func(w http.ResponseWriter, r *http.Request) {
		uuid := r.URL.Query().Get("uuid")
		ch := make(chan string, 16)
		b.mu.Lock()
		b.sessions[uuid] = ch
		b.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case f, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprint(w, f)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"question is required"}`)
			return
		}
		b.mu.Lock()
		ch := b.sessions[r.URL.Query().Get("uuid")]
		b.mu.Unlock()
		if ch == nil {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"unknown session"}`)
			return
		}

		ch <- "event: telemetry\ndata: {\"telemetry\":{\"model\":\"test\"}}\n\n"
		ch <- "event: answer\ndata: Streams compose\n\n"
		ch <- "event: answer\ndata: into answers.\n\n"
		ch <- "event: passages\ndata: {\"passages\":[{\"id\":\"p1\",\"text\":[\"context\"],\"score\":0.88,\"metadata\":{\"title\":[\"Doc\"]}}]}\n\n"
		ch <- "event: related\ndata: {\"questions\":[\"And then?\"]}\n\n"
		ch <- "event: complete\ndata: \n\n"
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"accepted"}`)
	})
	mux.HandleFunc("GET /stop", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.stops++
		if ch, ok := b.sessions[r.URL.Query().Get("uuid")]; ok {
			close(ch)
			delete(b.sessions, r.URL.Query().Get("uuid"))
		}
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /feedback", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestExchangeOverWireTransport(t *testing.T) {
	backend := newAnswerBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	completed := make(chan *api.AssembledResponse, 1)
	c := NewController(Config{
		Transport: transport.NewSSE(srv.URL),
		Callbacks: Callbacks{
			OnComplete: func(r *api.AssembledResponse) { completed <- r },
		},
	})
	defer c.Close()

	sid, err := c.Ask(context.Background(), "do streams compose?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	var resp *api.AssembledResponse
	select {
	case resp = <-completed:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	if resp.Text != "Streams compose into answers." {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Passages) != 1 || resp.Passages[0].Title() != "Doc" {
		t.Errorf("Passages = %+v", resp.Passages)
	}
	if len(resp.RelatedQuestions) != 1 {
		t.Errorf("RelatedQuestions = %v", resp.RelatedQuestions)
	}
	if resp.Telemetry["model"] != "test" {
		t.Errorf("Telemetry = %v", resp.Telemetry)
	}

	// Completion released the backend session.
	if backend.stops != 1 {
		t.Errorf("stops = %d, want 1", backend.stops)
	}
	if c.State() != api.StateIdle {
		t.Errorf("state = %s, want %s", c.State(), api.StateIdle)
	}

	if err := c.SubmitFeedback(context.Background(), sid, api.FeedbackUp); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
}
