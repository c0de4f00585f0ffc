package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/habitlog/internal/store"
)

func TestSessionsCreatesControllerPerDevice(t *testing.T) {
	docs := store.NewGormDocuments(setupServiceDB(t))
	sessions := NewSessions(t.TempDir(), docs, testDefaults())
	t.Cleanup(sessions.Close)
	ctx := context.Background()

	a, err := sessions.Get(ctx, "device-a", "")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	again, _ := sessions.Get(ctx, "device-a", "")
	if a != again {
		t.Fatal("expected the same controller for the same device")
	}
	b, _ := sessions.Get(ctx, "device-b", "")
	if a == b {
		t.Fatal("devices must not share controllers")
	}
	if sessions.Len() != 2 {
		t.Fatalf("expected 2 controllers, got %d", sessions.Len())
	}

	if _, _, err := a.AddHabit("ヨガ"); err != nil {
		t.Fatalf("AddHabit returned error: %v", err)
	}
	if len(b.Snapshot().State.Habits) != 2 {
		t.Fatal("guest data must stay on its own device")
	}

	if _, err := sessions.Get(ctx, " ", ""); !errors.Is(err, ErrDeviceRequired) {
		t.Fatalf("expected ErrDeviceRequired, got %v", err)
	}
}

func TestSessionsSwitchesIdentity(t *testing.T) {
	docs := store.NewGormDocuments(setupServiceDB(t))
	sessions := NewSessions(t.TempDir(), docs, testDefaults())
	sessions.SetLocalOpener(func(string) (store.LocalStorage, error) { return store.NewMemoryLocal(), nil })
	t.Cleanup(sessions.Close)
	ctx := context.Background()

	ctrl, err := sessions.Get(ctx, "device-a", "")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if ctrl.Phase() != PhaseGuestLoaded {
		t.Fatalf("expected guest phase, got %s", ctrl.Phase())
	}

	same, err := sessions.Get(ctx, "device-a", "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if same != ctrl || same.Identity() != "alice" {
		t.Fatal("identity change should be pushed into the existing controller")
	}
	waitLoaded(t, same)
	if same.Phase() != PhaseRemoteSynced {
		t.Fatalf("expected remote phase, got %s", same.Phase())
	}

	if _, err := sessions.Get(ctx, "device-a", ""); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if ctrl.Phase() != PhaseGuestLoaded || ctrl.Identity() != "" {
		t.Fatal("empty identity should sign the controller out")
	}
}

func TestSessionsEvictIdle(t *testing.T) {
	docs := store.NewGormDocuments(setupServiceDB(t))
	sessions := NewSessions(t.TempDir(), docs, testDefaults())
	locals := map[string]*store.MemoryLocal{}
	sessions.SetLocalOpener(func(deviceID string) (store.LocalStorage, error) {
		if local, ok := locals[deviceID]; ok {
			return local, nil
		}
		local := store.NewMemoryLocal()
		locals[deviceID] = local
		return local, nil
	})
	now := testNow
	sessions.SetClock(func() time.Time { return now })
	t.Cleanup(sessions.Close)
	ctx := context.Background()

	idle, err := sessions.Get(ctx, "device-idle", "")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if _, _, err := idle.AddHabit("ヨガ"); err != nil {
		t.Fatalf("AddHabit returned error: %v", err)
	}
	if _, err := sessions.Get(ctx, "device-busy", ""); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	now = now.Add(20 * time.Minute)
	if _, err := sessions.Get(ctx, "device-busy", ""); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	now = now.Add(15 * time.Minute)

	if n := sessions.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 evicted controller, got %d", n)
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected the busy device to stay, got %d", sessions.Len())
	}

	// 回收后再次访问会从本机存储重新加载
	reloaded, err := sessions.Get(ctx, "device-idle", "")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded == idle {
		t.Fatal("expected a fresh controller after eviction")
	}
	if got := len(reloaded.Snapshot().State.Habits); got != 3 {
		t.Fatalf("guest data should survive eviction, got %d habits", got)
	}
}

func TestSessionsConcurrentGetSharesController(t *testing.T) {
	docs := store.NewGormDocuments(setupServiceDB(t))
	sessions := NewSessions(t.TempDir(), docs, testDefaults())
	sessions.SetLocalOpener(func(string) (store.LocalStorage, error) { return store.NewMemoryLocal(), nil })
	t.Cleanup(sessions.Close)
	ctx := context.Background()

	const workers = 8
	got := make([]*SyncController, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrl, err := sessions.Get(ctx, "device-a", "")
			if err != nil {
				t.Errorf("Get returned error: %v", err)
				return
			}
			got[i] = ctrl
		}(i)
	}
	wg.Wait()

	for i, ctrl := range got {
		if ctrl != got[0] {
			t.Fatalf("worker %d got a different controller", i)
		}
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected 1 controller, got %d", sessions.Len())
	}
}

func TestSessionsTransientIsNotRegistered(t *testing.T) {
	sessions := NewSessions(t.TempDir(), nil, testDefaults())
	ctrl, err := sessions.Transient(context.Background())
	if err != nil {
		t.Fatalf("Transient returned error: %v", err)
	}
	if ctrl.Phase() != PhaseGuestLoaded || len(ctrl.Snapshot().State.Habits) != 2 {
		t.Fatalf("transient controller should hold defaults, got %s", ctrl.Phase())
	}
	if sessions.Len() != 0 {
		t.Fatalf("transient controller must not be registered, got %d", sessions.Len())
	}
}
