package context

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := ActorFromContext(ctx); got != "" {
		t.Fatalf("expected empty actor, got %q", got)
	}
}

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "alice")
	if got := ActorFromContext(ctx); got != "alice" {
		t.Fatalf("expected alice, got %q", got)
	}
}
