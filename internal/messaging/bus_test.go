package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBusRoundtrip(t *testing.T) {
	t.Parallel()

	bus := New(time.Second)
	bus.Register("tab-1", func(_ context.Context, req Request) Response {
		if req.Action != ActionPing {
			t.Errorf("action = %q, want ping", req.Action)
		}
		return Response{Success: true, Data: map[string]any{"pong": true}}
	})

	resp, err := bus.Send(context.Background(), "tab-1", ActionPing, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.ID == "" {
		t.Fatal("expected correlation ID on response")
	}
}

func TestBusNoHandler(t *testing.T) {
	t.Parallel()

	bus := New(time.Second)
	_, err := bus.Send(context.Background(), "unknown", ActionPing, nil)
	if !errors.Is(err, ErrNoHandler) {
		t.Fatalf("err = %v, want ErrNoHandler", err)
	}
}

func TestBusTimeout(t *testing.T) {
	t.Parallel()

	bus := New(20 * time.Millisecond)
	bus.Register("slow", func(ctx context.Context, _ Request) Response {
		<-ctx.Done()
		return Response{Success: false}
	})

	_, err := bus.Send(context.Background(), "slow", ActionGetTranscript, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestBusUnregister(t *testing.T) {
	t.Parallel()

	bus := New(time.Second)
	bus.Register("tab-1", func(_ context.Context, _ Request) Response {
		return Response{Success: true}
	})
	bus.Unregister("tab-1")

	if bus.Registered("tab-1") {
		t.Fatal("expected handler to be unregistered")
	}
	if _, err := bus.Send(context.Background(), "tab-1", ActionPing, nil); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("err = %v, want ErrNoHandler", err)
	}
}

func TestBusDistinctCorrelationIDs(t *testing.T) {
	t.Parallel()

	bus := New(time.Second)
	bus.Register("tab-1", func(_ context.Context, _ Request) Response {
		return Response{Success: true}
	})

	first, err := bus.Send(context.Background(), "tab-1", ActionPing, nil)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := bus.Send(context.Background(), "tab-1", ActionPing, nil)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct correlation IDs, both %q", first.ID)
	}
}
