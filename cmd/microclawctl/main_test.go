package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoRequestSendsBearerTokenAndBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	data, status, err := doRequest(http.MethodPost, srv.URL, "secret-token", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, status)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected the bearer token to be forwarded, got %q", gotAuth)
	}
	if gotBody["text"] != "hi" {
		t.Fatalf("expected the request body to be forwarded, got %v", gotBody)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected response body: %s", data)
	}
}

func TestDoRequestOmitsAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if _, _, err := doRequest(http.MethodGet, srv.URL, "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no Authorization header without a token, got %q", gotAuth)
	}
}

func TestGlobalFlagsDefaultURL(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	serverURL, _ := globalFlags(fs)
	if *serverURL != "http://localhost:8080" {
		t.Fatalf("expected the default server url, got %q", *serverURL)
	}
}
