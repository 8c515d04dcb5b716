package payload

import (
	"testing"

	"liquidation-alerts/internal/risk"
)

func TestBuild(t *testing.T) {
	p := Build("alice.eth", risk.Decision{PercentRemaining: 5})

	if p.Data.Type != NotificationTypeLiquidation {
		t.Fatalf("expected notification type %d, got %d", NotificationTypeLiquidation, p.Data.Type)
	}
	if p.Notification.Body != "alice.eth your account has %5 left before it gets liquidated" {
		t.Fatalf("unexpected plain body: %q", p.Notification.Body)
	}
	if p.Data.Message != "Dear [d:alice.eth] your account has %5 left before it gets liquidated" {
		t.Fatalf("unexpected marked message: %q", p.Data.Message)
	}
	if p.Data.Subject != p.Notification.Title {
		t.Fatalf("subject %q should match title %q", p.Data.Subject, p.Notification.Title)
	}
}
