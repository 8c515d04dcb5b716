package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"liquidation-alerts/internal/monitor"
)

func triggerRequest(t *testing.T, server *Server, body string, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/channels/liquidation/send_message", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestSendMessageTriggersCycle(t *testing.T) {
	var gotSimulate bool
	server := NewServer(func(_ context.Context, simulate bool) (monitor.CycleSummary, error) {
		gotSimulate = simulate
		return monitor.CycleSummary{
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
			Processed:  4,
			Alerted:    1,
			Dispatched: 1,
		}, nil
	}, zerolog.Nop())

	rec := triggerRequest(t, server, `{"simulate": true}`, "127.0.0.1:4321")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !gotSimulate {
		t.Fatal("simulate flag should pass through to the trigger")
	}

	var summary monitor.CycleSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("response should be a cycle summary: %v", err)
	}
	if summary.Processed != 4 {
		t.Fatalf("unexpected summary in response: %+v", summary)
	}
}

func TestSendMessageEmptyBodyDefaultsToLive(t *testing.T) {
	var gotSimulate bool
	server := NewServer(func(_ context.Context, simulate bool) (monitor.CycleSummary, error) {
		gotSimulate = simulate
		return monitor.CycleSummary{}, nil
	}, zerolog.Nop())

	rec := triggerRequest(t, server, "", "127.0.0.1:4321")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotSimulate {
		t.Fatal("empty body should not enable simulate mode")
	}
}

func TestSendMessageCycleAlreadyRunning(t *testing.T) {
	server := NewServer(func(_ context.Context, _ bool) (monitor.CycleSummary, error) {
		return monitor.CycleSummary{}, monitor.ErrCycleRunning
	}, zerolog.Nop())

	rec := triggerRequest(t, server, "{}", "127.0.0.1:4321")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSendMessageDiscoveryFailure(t *testing.T) {
	server := NewServer(func(_ context.Context, _ bool) (monitor.CycleSummary, error) {
		return monitor.CycleSummary{}, &monitor.DiscoveryError{Err: errors.New("rpc down")}
	}, zerolog.Nop())

	rec := triggerRequest(t, server, "{}", "127.0.0.1:4321")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestSendMessageRejectsRemoteClients(t *testing.T) {
	called := false
	server := NewServer(func(_ context.Context, _ bool) (monitor.CycleSummary, error) {
		called = true
		return monitor.CycleSummary{}, nil
	}, zerolog.Nop())

	rec := triggerRequest(t, server, "{}", "192.0.2.1:4321")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-loopback client, got %d", rec.Code)
	}
	if called {
		t.Fatal("trigger must not run for remote clients")
	}
}

func TestHealthz(t *testing.T) {
	server := NewServer(nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
