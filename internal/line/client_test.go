package line

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPushTextAccepted(t *testing.T) {
	var gotAuth string
	var gotPayload pushRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/push" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL, nil)
	if err := client.PushText(context.Background(), "token-1", "U123", "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotAuth != "Bearer token-1" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotPayload.To != "U123" {
		t.Fatalf("unexpected recipient %q", gotPayload.To)
	}
	if len(gotPayload.Messages) != 1 || gotPayload.Messages[0].Text != "hello" {
		t.Fatalf("unexpected messages: %+v", gotPayload.Messages)
	}
}

func TestPushTextRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"The user hasn't added the LINE Official Account as a friend"}`))
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL, nil)
	err := client.PushText(context.Background(), "token-1", "U123", "hello")
	if err == nil {
		t.Fatalf("expected an error for rejected push")
	}
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *RejectedError, got %T", err)
	}
	if rejected.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rejected.StatusCode)
	}
}

func TestPushTextTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClientWithEndpoint(server.URL, &http.Client{Timeout: 50 * time.Millisecond})
	err := client.PushText(context.Background(), "token-1", "U123", "hello")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestPushTextContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClientWithEndpoint(server.URL, nil)
	err := client.PushText(ctx, "token-1", "U123", "hello")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/profile/U123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Profile{UserID: "U123", DisplayName: "Alice"})
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL, nil)
	profile, err := client.GetProfile(context.Background(), "token-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.DisplayName != "Alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL, nil)
	if _, err := client.GetProfile(context.Background(), "token-1", "U404"); err == nil {
		t.Fatalf("expected an error for missing profile")
	}
}
