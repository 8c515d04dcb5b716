package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPublishSuccess(t *testing.T) {
	var gotPath string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Fatalf("expected multipart form upload, got %q", r.Header.Get("Content-Type"))
		}
		reader, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("multipart reader: %v (boundary %q)", err, params["boundary"])
		}
		part, err := reader.NextPart()
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		body, _ := io.ReadAll(part)
		gotBody = string(body)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"Name": "payload.json",
			"Hash": "QmTestHash123",
			"Size": "42",
		})
	}))
	defer srv.Close()

	client := NewClient(Options{APIURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	cid, err := client.Publish(context.Background(), map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if cid != "QmTestHash123" {
		t.Fatalf("unexpected cid: %q", cid)
	}
	if gotPath != "/api/v0/add" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if !strings.Contains(gotBody, `"hello":"world"`) {
		t.Fatalf("payload not serialized into upload: %q", gotBody)
	}
}

func TestPublishAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"Message": "node overloaded", "Code": 0})
	}))
	defer srv.Close()

	client := NewClient(Options{APIURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := client.Publish(context.Background(), map[string]string{"hello": "world"})
	if err == nil {
		t.Fatal("api error should fail the publish")
	}

	var publishErr *PublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected *PublishError, got %T", err)
	}
	if !strings.Contains(err.Error(), "node overloaded") {
		t.Fatalf("api message should surface in the error: %v", err)
	}
}

func TestPublishMissingHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Name": "payload.json"})
	}))
	defer srv.Close()

	client := NewClient(Options{APIURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	if _, err := client.Publish(context.Background(), map[string]string{}); err == nil {
		t.Fatal("response without hash should fail")
	}
}
