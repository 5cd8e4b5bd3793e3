package presence

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Push(event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := New()
	a1 := &fakeConn{id: "a1"}
	a2 := &fakeConn{id: "a2"}

	if prev := r.Register("alice", a1); prev != nil {
		t.Fatalf("first register should have no previous, got %v", prev.ID())
	}
	if prev := r.Register("alice", a2); prev != a1 {
		t.Fatalf("expected a1 returned as superseded, got %v", prev)
	}
	if r.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", r.Len())
	}
	c, ok := r.Lookup("alice")
	if !ok || c != a2 {
		t.Fatalf("lookup should return newest handle")
	}
	// re-registering the same handle is not a supersede
	if prev := r.Register("alice", a2); prev != nil {
		t.Fatalf("same handle should not be reported as superseded")
	}
}

func TestRegistry_StaleUnregisterIsNoop(t *testing.T) {
	r := New()
	old := &fakeConn{id: "old"}
	cur := &fakeConn{id: "new"}
	r.Register("alice", old)
	r.Register("alice", cur)

	if r.Unregister("alice", old) {
		t.Fatalf("stale handle must not evict the current entry")
	}
	if !r.IsOnline("alice") {
		t.Fatalf("alice should still be online")
	}
	if !r.Unregister("alice", cur) {
		t.Fatalf("current handle should unregister")
	}
	if r.IsOnline("alice") || r.Len() != 0 {
		t.Fatalf("registry should be empty")
	}
	if r.Unregister("alice", cur) {
		t.Fatalf("second unregister should be a no-op")
	}
}

func TestRegistry_Push(t *testing.T) {
	r := New()
	c := &fakeConn{id: "b"}
	r.Register("bob", c)

	ok, err := r.Push("bob", "ping", nil)
	if !ok || err != nil {
		t.Fatalf("push online: ok=%v err=%v", ok, err)
	}
	if ok, _ := r.Push("carol", "ping", nil); ok {
		t.Fatalf("push to offline user should report not found")
	}

	c.err = errors.New("closed")
	if _, err := r.Push("bob", "ping", nil); err == nil {
		t.Fatalf("expected push error to surface")
	}
	if len(c.events) != 2 {
		t.Fatalf("expected 2 pushes recorded, got %d", len(c.events))
	}
}

func TestRegistry_ConcurrentAtMostOneEntryPerUser(t *testing.T) {
	r := New()
	const users = 8
	const rounds = 200

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(u, w int) {
				defer wg.Done()
				uid := fmt.Sprintf("u%d", u)
				for i := 0; i < rounds; i++ {
					c := &fakeConn{id: fmt.Sprintf("%s-%d-%d", uid, w, i)}
					r.Register(uid, c)
					_ = r.IsOnline(uid)
					if i%3 == 0 {
						r.Unregister(uid, c)
					}
				}
			}(u, w)
		}
	}
	wg.Wait()

	if n := r.Len(); n > users {
		t.Fatalf("registry holds %d entries for %d users", n, users)
	}
}
