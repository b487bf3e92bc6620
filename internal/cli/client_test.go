package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kindred/internal/models"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user/register", func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.UserID == "dup" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"duplicate user: dup"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"success","message":"User vector stored"}`))
	})
	mux.HandleFunc("/matches", func(w http.ResponseWriter, r *http.Request) {
		var req models.MatchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.UserID == "empty" {
			_, _ = w.Write([]byte(`{"matches":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"matches":[{"rollno":"B","similarity":100}]}`))
	})
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("plain failure"))
	})
	mux.HandleFunc("/api/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/users/A B/submissions" {
			_, _ = w.Write([]byte(`{"rollno":"A B","submissions":[{"id":"s1","rollno":"A B","partition":"male","responses":{"q1":"x"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"rollno":"none","submissions":null}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Register(t *testing.T) {
	c := NewClient(newFakeServer(t).URL + "/")
	resp, err := c.Register(context.Background(), &models.RegisterRequest{UserID: "A", Responses: map[string]string{"q1": "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Errorf("status: %s", resp.Status)
	}

	_, err = c.Register(context.Background(), &models.RegisterRequest{UserID: "dup"})
	if err == nil || !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "duplicate user") {
		t.Errorf("expected 409 error with message, got %v", err)
	}
}

func TestClient_Matches(t *testing.T) {
	c := NewClient(newFakeServer(t).URL)
	resp, err := c.Matches(context.Background(), &models.MatchRequest{UserID: "A", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].UserID != "B" {
		t.Errorf("matches: %+v", resp.Matches)
	}

	resp, err = c.Matches(context.Background(), &models.MatchRequest{UserID: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Matches == nil {
		t.Error("matches should never be nil")
	}
}

func TestClient_Submissions(t *testing.T) {
	c := NewClient(newFakeServer(t).URL)
	resp, err := c.Submissions(context.Background(), "A B")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Submissions) != 1 || resp.Submissions[0].ID != "s1" {
		t.Errorf("submissions: %+v", resp.Submissions)
	}

	resp, err = c.Submissions(context.Background(), "none")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Submissions == nil {
		t.Error("submissions should never be nil")
	}
}

func TestClient_StatusError(t *testing.T) {
	c := NewClient(newFakeServer(t).URL)
	_, err := c.Status(context.Background())
	if err == nil || !strings.Contains(err.Error(), "plain failure") {
		t.Errorf("expected raw body in error, got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.Status(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}
