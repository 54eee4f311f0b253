package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
)

func TestManagerCapacity(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Capacity = 2

	mgr := newTestManager(engine.NewMock(24000), cfg)
	defer mgr.Stop()

	first, err := mgr.Admit(newFakeTransport())
	if err != nil {
		t.Fatalf("first Admit failed: %v", err)
	}
	if _, err := mgr.Admit(newFakeTransport()); err != nil {
		t.Fatalf("second Admit failed: %v", err)
	}

	_, err = mgr.Admit(newFakeTransport())
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("third Admit error = %v, want ErrCapacityExceeded", err)
	}
	if got := mgr.ActiveCount(); got != 2 {
		t.Errorf("active count = %d, want 2", got)
	}

	// Closing a session frees capacity for a new admission
	first.Close("test")
	<-first.Done()

	waitFor(t, time.Second, func() bool {
		return mgr.ActiveCount() == 1
	}, "registry entry removal")

	if _, err := mgr.Admit(newFakeTransport()); err != nil {
		t.Errorf("Admit after removal failed: %v", err)
	}
}

func TestManagerGet(t *testing.T) {
	mgr := newTestManager(engine.NewMock(24000), defaultTestConfig())
	defer mgr.Stop()

	session, err := mgr.Admit(newFakeTransport())
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	got, exists := mgr.Get(session.ID)
	if !exists || got != session {
		t.Errorf("Get(%q) = %v, %v", session.ID, got, exists)
	}

	if _, exists := mgr.Get("no-such-session"); exists {
		t.Error("Get on unknown id reported a session")
	}
}

func TestManagerRemove(t *testing.T) {
	mgr := newTestManager(engine.NewMock(24000), defaultTestConfig())
	defer mgr.Stop()

	session, err := mgr.Admit(newFakeTransport())
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	mgr.Remove(session.ID)
	<-session.Done()

	waitFor(t, time.Second, func() bool {
		_, exists := mgr.Get(session.ID)
		return !exists
	}, "session deregistration")

	// Idempotent on unknown and already-removed ids
	mgr.Remove(session.ID)
	mgr.Remove("no-such-session")
}

func TestManagerBroadcast(t *testing.T) {
	mgr := newTestManager(engine.NewMock(24000), defaultTestConfig())
	defer mgr.Stop()

	healthy := newFakeTransport()
	broken := newFakeTransport()

	if _, err := mgr.Admit(healthy); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	sick, err := mgr.Admit(broken)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	broken.setFailWrites(true)

	mgr.Broadcast(protocol.Success("service restarting soon"))

	if got := healthy.countFrames(protocol.TypeSuccess); got != 1 {
		t.Errorf("healthy session received %d frames, want 1", got)
	}

	// The failed session is torn down after the pass
	select {
	case <-sick.Done():
	case <-time.After(time.Second):
		t.Fatal("failed session not closed after broadcast")
	}

	waitFor(t, time.Second, func() bool {
		return mgr.ActiveCount() == 1
	}, "failed session removal")
}

func TestManagerStop(t *testing.T) {
	mgr := newTestManager(engine.NewMock(24000), defaultTestConfig())

	var sessions []*Session
	for i := 0; i < 5; i++ {
		s, err := mgr.Admit(newFakeTransport())
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
		sessions = append(sessions, s)
	}

	mgr.Stop()

	for _, s := range sessions {
		if s.State() != StateClosed {
			t.Errorf("session %s state = %s, want closed", s.ID, s.State())
		}
	}

	waitFor(t, time.Second, func() bool {
		return mgr.ActiveCount() == 0
	}, "empty registry")
}

func TestManagerSessions(t *testing.T) {
	mgr := newTestManager(engine.NewMock(24000), defaultTestConfig())
	defer mgr.Stop()

	for i := 0; i < 3; i++ {
		if _, err := mgr.Admit(newFakeTransport()); err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
	}

	infos := mgr.Sessions()
	if len(infos) != 3 {
		t.Fatalf("snapshot size = %d, want 3", len(infos))
	}
	for _, info := range infos {
		if info.SessionID == "" {
			t.Error("snapshot entry missing session id")
		}
	}
}
