package picking

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/liteviz/pkg/math"
)

func TestResolveDepth(t *testing.T) {
	tests := []struct {
		name    string
		sampler DepthSampler
		want    float64
		hit     bool
	}{
		{"nil sampler", nil, 0.8, false},
		{"geometry", DepthFunc(func(x, y float64) (float64, bool) { return 0.5, true }), 0.5, true},
		{"background", DepthFunc(func(x, y float64) (float64, bool) { return FarDepth, true }), 0.8, false},
		{"unavailable", DepthFunc(func(x, y float64) (float64, bool) { return 0.3, false }), 0.8, false},
		{"negative", DepthFunc(func(x, y float64) (float64, bool) { return -0.1, true }), 0.8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := ResolveDepth(tt.sampler, mgl64.Vec2{10, 10}, 0.8)
			if got != tt.want || hit != tt.hit {
				t.Errorf("ResolveDepth = (%v, %v), want (%v, %v)", got, hit, tt.want, tt.hit)
			}
		})
	}
}

func TestResolveDepthPassesCursorCoordinates(t *testing.T) {
	var gotX, gotY float64
	s := DepthFunc(func(x, y float64) (float64, bool) {
		gotX, gotY = x, y
		return 0.4, true
	})
	ResolveDepth(s, mgl64.Vec2{12.5, 99}, 0.8)
	if gotX != 12.5 || gotY != 99 {
		t.Errorf("sampler saw (%v, %v), want (12.5, 99)", gotX, gotY)
	}
}

func testUnprojector() Unprojector {
	return Unprojector{
		Projection: math.Perspective(90, 1, 1, 10),
		Width:      200,
		Height:     200,
		Pose:       math.Translation(mgl64.Vec3{0, 0, 5}),
	}
}

func TestUnprojectCenter(t *testing.T) {
	res := testUnprojector().Unproject(mgl64.Vec2{100, 100}, 0)
	if !res.OK {
		t.Fatal("unproject failed")
	}
	if !math.Vec3Near(res.Camera, mgl64.Vec3{0, 0, -1}, 1e-9) {
		t.Errorf("camera point = %v, want (0,0,-1)", res.Camera)
	}
	if !math.Vec3Near(res.World, mgl64.Vec3{0, 0, 4}, 1e-9) {
		t.Errorf("world point = %v, want (0,0,4)", res.World)
	}
}

func TestUnprojectFlipsCursorY(t *testing.T) {
	// Top edge of the window at the near plane: y = +tan(45) * near.
	res := testUnprojector().Unproject(mgl64.Vec2{100, 0}, 0)
	if gomath.Abs(res.Camera[1]-1) > 1e-9 {
		t.Errorf("top edge y = %v, want 1", res.Camera[1])
	}
}

func TestUnprojectSingularFallsBack(t *testing.T) {
	u := testUnprojector()
	u.Projection = math.Perspective(90, 1, 3, 3)

	res := u.Unproject(mgl64.Vec2{50, 50}, 0.5)
	if res.OK {
		t.Fatal("expected failure for a degenerate projection")
	}
	if res.Camera != (mgl64.Vec3{}) {
		t.Errorf("camera point = %v, want zero", res.Camera)
	}
	if res.World != u.Pose.Position() {
		t.Errorf("world point = %v, want the camera position", res.World)
	}
}

func TestPickReportsHit(t *testing.T) {
	u := testUnprojector()
	res := u.Pick(DepthFunc(func(x, y float64) (float64, bool) { return FarDepth, true }), mgl64.Vec2{100, 100}, 0.25)
	if res.Hit || res.Depth != 0.25 {
		t.Errorf("background pick: hit=%v depth=%v", res.Hit, res.Depth)
	}
	res = u.Pick(DepthFunc(func(x, y float64) (float64, bool) { return 0.6, true }), mgl64.Vec2{100, 100}, 0.25)
	if !res.Hit || res.Depth != 0.6 {
		t.Errorf("geometry pick: hit=%v depth=%v", res.Hit, res.Depth)
	}
}

func TestFramebufferPixel(t *testing.T) {
	tests := []struct {
		name         string
		x, y         float64
		winW, winH   int
		fbW, fbH     int
		wantX, wantY int
		wantOK       bool
	}{
		{"top-left", 0, 0, 100, 50, 100, 50, 0, 49, true},
		{"bottom-right", 99.9, 49.9, 100, 50, 100, 50, 99, 0, true},
		{"hidpi", 10, 10, 100, 50, 200, 100, 20, 79, true},
		{"outside right", 100, 10, 100, 50, 100, 50, 0, 0, false},
		{"negative", -1, 10, 100, 50, 100, 50, 0, 0, false},
		{"empty window", 1, 1, 0, 0, 100, 50, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := FramebufferPixel(tt.x, tt.y, tt.winW, tt.winH, tt.fbW, tt.fbH)
			if ok != tt.wantOK || (ok && (x != tt.wantX || y != tt.wantY)) {
				t.Errorf("got (%d, %d, %v), want (%d, %d, %v)", x, y, ok, tt.wantX, tt.wantY, tt.wantOK)
			}
		})
	}
}
