package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// testClient connects to TEST_REDIS_ADDR or skips.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{Addr: addr})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockManager(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c, "test:"+uuid.NewString()+":")
	ctx := context.Background()

	release, err := lm.Acquire(ctx, "deploy:tusca-2022:1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := lm.Acquire(ctx, "deploy:tusca-2022:1", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	release()
	release()

	again, err := lm.Acquire(ctx, "deploy:tusca-2022:1", time.Minute)
	if err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}
	again()
}

func TestEventBusStream(t *testing.T) {
	c := testClient(t)
	bus := NewEventBus(c, 10)
	ctx := context.Background()
	stream := "test:deployments:" + uuid.NewString()
	t.Cleanup(func() { c.Underlying().Del(context.Background(), stream) })

	msgs, err := bus.StreamRead(ctx, stream, "0", 10)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("expected empty stream, got %v %v", msgs, err)
	}

	for _, p := range []string{`{"id":"a"}`, `{"id":"b"}`} {
		if err := bus.StreamAppend(ctx, stream, []byte(p)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	msgs, err = bus.StreamRead(ctx, stream, "0", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 2 || string(msgs[1].Payload) != `{"id":"b"}` {
		t.Fatalf("unexpected messages %+v", msgs)
	}

	tail, err := bus.StreamRead(ctx, stream, msgs[0].ID, 10)
	if err != nil || len(tail) != 1 {
		t.Fatalf("expected one message after first id, got %d %v", len(tail), err)
	}

	if err := bus.Publish(ctx, "test:deployments", []byte("{}")); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestLockKeyPrefix(t *testing.T) {
	t.Parallel()
	lm := &LockManager{prefix: "ticketdeploy:lock:"}
	if got := lm.Key("deploy:tusca-2022:5"); got != "ticketdeploy:lock:deploy:tusca-2022:5" {
		t.Fatalf("unexpected key %s", got)
	}
}
