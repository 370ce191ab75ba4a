package gcs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newFakeUploadClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Client{
		httpClient:    srv.Client(),
		defaultBucket: "pf-media",
		objectPrefix:  "store-media",
		tokenSource: &tokenSource{
			fetch: func(context.Context) (string, time.Time, error) {
				return "fake-token", time.Now().Add(time.Hour), nil
			},
		},
		apiBase:    srv.URL,
		uploadBase: srv.URL,
		publicBase: "https://storage.googleapis.com",
	}
}

func TestUploadReturnsDurableURL(t *testing.T) {
	var gotAuth, gotContentType, gotName string
	client := newFakeUploadClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotName = r.URL.Query().Get("name")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"whatever"}`))
	}))

	url, err := client.Upload(context.Background(), []byte{0x89, 0x50}, "logo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer fake-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotContentType != "image/png" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if !strings.HasPrefix(gotName, "store-media/") || !strings.HasSuffix(gotName, "-logo.png") {
		t.Fatalf("unexpected object name %q", gotName)
	}
	if !strings.HasPrefix(url, "https://storage.googleapis.com/pf-media/store-media/") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	client := newFakeUploadClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	if _, err := client.Upload(context.Background(), nil, "logo.png"); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestUploadSurfacesServerFailure(t *testing.T) {
	client := newFakeUploadClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))

	if _, err := client.Upload(context.Background(), []byte("data"), "logo.png"); err == nil {
		t.Fatalf("expected error for rejected upload")
	}
}

func TestPingChecksBucket(t *testing.T) {
	var gotPath string
	client := newFakeUploadClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if gotPath != "/b/pf-media/o" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	if _, err := parsePrivateKey("not a pem"); err == nil {
		t.Fatalf("expected error for invalid pem")
	}
}
