package viewer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/pkg/math"
)

func TestScene_SnapshotOnlyReturnsChanges(t *testing.T) {
	s := NewScene()
	s.Put(Item{Name: "a", Type: Mesh, Mesh: mesh.Cube(1)})
	s.Put(Item{Name: "b", Type: PointCloud, Mesh: mesh.RandomPointCloud(10, 1)})

	changes, v := s.Snapshot(0)
	if len(changes) != 2 || changes[0].Item.Name != "a" || changes[1].Item.Name != "b" {
		t.Fatalf("first snapshot = %+v", changes)
	}
	if changes[0].Item.Pose != math.RigidIdentity() {
		t.Error("zero pose not replaced by identity")
	}

	if changes, _ := s.Snapshot(v); len(changes) != 0 {
		t.Errorf("expected no changes, got %d", len(changes))
	}

	s.SetPose("a", math.Translation(mgl64.Vec3{1, 0, 0}))
	s.Remove("b")
	changes, _ = s.Snapshot(v)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	if changes[0].Item.Name != "a" || changes[0].Removed {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1].Item.Name != "b" || !changes[1].Removed {
		t.Errorf("second change = %+v", changes[1])
	}
}

func TestScene_UnknownNames(t *testing.T) {
	s := NewScene()
	if s.SetPose("ghost", math.RigidIdentity()) {
		t.Error("SetPose succeeded on a missing item")
	}
	if s.Remove("ghost") {
		t.Error("Remove succeeded on a missing item")
	}
	if s.Version() != 0 {
		t.Errorf("version moved to %d", s.Version())
	}
}

func TestScene_PutAfterRemove(t *testing.T) {
	s := NewScene()
	s.Put(Item{Name: "a"})
	s.Remove("a")
	s.Put(Item{Name: "a"})
	changes, _ := s.Snapshot(0)
	if len(changes) != 1 || changes[0].Removed {
		t.Errorf("changes = %+v", changes)
	}
}

func TestScene_Follow(t *testing.T) {
	s := NewScene()
	if _, ok := s.Follow(); ok {
		t.Error("follow pose reported before any was set")
	}
	want := math.Translation(mgl64.Vec3{0, 1, 0})
	s.SetFollow(want)
	if got, ok := s.Follow(); !ok || got != want {
		t.Errorf("Follow = %v, %v", got, ok)
	}
}

func TestNotifier_WaitBlocksWhilePaused(t *testing.T) {
	n := NewNotifier()
	if err := n.Wait(context.Background()); err != nil {
		t.Fatalf("running notifier blocked: %v", err)
	}

	n.SetRunning(false)
	done := make(chan error, 1)
	go func() { done <- n.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	if !n.Toggle() {
		t.Fatal("Toggle did not resume")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestNotifier_WaitHonorsContext(t *testing.T) {
	n := NewNotifier()
	n.SetRunning(false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- n.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait ignored cancellation")
	}
}

func TestFrameLimiter(t *testing.T) {
	clock := time.Unix(0, 0)
	var slept time.Duration
	l := NewFrameLimiter(50)
	l.now = func() time.Time { return clock }
	l.sleep = func(d time.Duration) { slept += d }

	l.Wait()
	clock = clock.Add(5 * time.Millisecond)
	if dt := l.Wait(); dt != 20*time.Millisecond {
		t.Errorf("dt = %v, want 20ms", dt)
	}
	if slept != 15*time.Millisecond {
		t.Errorf("slept %v, want 15ms", slept)
	}

	l.SetTarget(0)
	slept = 0
	clock = clock.Add(50 * time.Millisecond)
	if dt := l.Wait(); dt != 35*time.Millisecond || slept != 0 {
		t.Errorf("unlimited: dt = %v slept = %v", dt, slept)
	}
}
