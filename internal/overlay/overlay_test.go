package overlay

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bdougie/swingvision/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type line struct {
	x1, y1, x2, y2, width float64
	c                     color.Color
}

type dot struct {
	x, y, r float64
	c       color.Color
}

// fakeSurface records draw calls since the last Clear
type fakeSurface struct {
	mu     sync.Mutex
	w, h   int
	scale  float64
	lines  []line
	dots   []dot
	clears int
}

func (s *fakeSurface) PixelSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *fakeSurface) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines, s.dots = nil, nil
	s.clears++
}

func (s *fakeSurface) Line(x1, y1, x2, y2, width float64, c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line{x1, y1, x2, y2, width, c})
}

func (s *fakeSurface) Dot(x, y, r float64, c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dots = append(s.dots, dot{x, y, r, c})
}

func (s *fakeSurface) resize(w, h int, scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w, s.h, s.scale = w, h, scale
}

func (s *fakeSurface) snapshot() ([]line, []dot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]line(nil), s.lines...), append([]dot(nil), s.dots...), s.clears
}

type fakeClock struct {
	bits atomic.Uint64
}

func (c *fakeClock) set(t float64) { c.bits.Store(math.Float64bits(t)) }
func (c *fakeClock) CurrentTime() float64 { return math.Float64frombits(c.bits.Load()) }

// visiblePose returns a pose with every landmark at (x, y) and full visibility
func visiblePose(x, y float64) []models.Landmark {
	pts := make([]models.Landmark, models.LandmarkCount)
	for i := range pts {
		pts[i] = models.Landmark{X: x, Y: y, Visibility: 1}
	}
	return pts
}

func sequence(n int) *models.PoseSequence {
	seq := &models.PoseSequence{Width: 100, Height: 100, Duration: float64(n) / 30}
	for i := 0; i < n; i++ {
		pts := visiblePose(0.5, 0.5)
		// spread the shoulders so bones have length
		pts[models.LeftShoulder].X = float64(i) / float64(n)
		seq.Frames = append(seq.Frames, models.PoseFrame{Timestamp: float64(i) / 30, Landmarks: pts})
	}
	return seq
}

func TestClosestFrame(t *testing.T) {
	frames := sequence(4).Frames // 0, 1/30, 2/30, 3/30
	assert.Equal(t, 0, ClosestFrame(frames, -1))
	assert.Equal(t, 0, ClosestFrame(frames, 0))
	assert.Equal(t, 1, ClosestFrame(frames, 0.03))
	assert.Equal(t, 2, ClosestFrame(frames, 2.0/30))
	assert.Equal(t, 3, ClosestFrame(frames, 10))
	// exact midpoint goes to the earlier frame
	assert.Equal(t, 0, ClosestFrame(frames, 0.5/30))
}

func TestSideAndColors(t *testing.T) {
	assert.Equal(t, SideCenter, SideOf(models.Nose))
	assert.Equal(t, SideLeft, SideOf(models.LeftKnee))
	assert.Equal(t, SideRight, SideOf(models.RightKnee))
	assert.Equal(t, SideLeft, SideOf(2))
	assert.Equal(t, SideRight, SideOf(5))

	assert.Equal(t, LeftColor, BoneColor(Bone{models.LeftHip, models.LeftKnee}))
	assert.Equal(t, RightColor, BoneColor(Bone{models.RightHip, models.RightKnee}))
	assert.Equal(t, CenterColor, BoneColor(Bone{models.LeftHip, models.RightHip}))
}

func TestLowVisibilityBoneNeverDrawn(t *testing.T) {
	seq := sequence(3)
	for i := range seq.Frames {
		seq.Frames[i].Landmarks[models.LeftKnee].Visibility = 0.3
	}

	surface := &fakeSurface{w: 200, h: 100, scale: 1}
	r := NewRenderer(surface, &fakeClock{})
	defer r.Close()

	for _, ts := range []float64{0, 1.0 / 30, 2.0 / 30, 5} {
		r.Update(Input{Sequence: seq, CurrentTime: ts, Visible: true})
		lines, dots, _ := surface.snapshot()

		require.NotEmpty(t, lines)
		assert.Len(t, lines, len(Skeleton)-2, "hip-knee and knee-ankle must be skipped")
		assert.Len(t, dots, len(Joints)-1)
		for _, d := range dots {
			assert.Equal(t, JointRadius, d.r)
		}
	}
}

func TestThresholdIsStrict(t *testing.T) {
	seq := sequence(1)
	seq.Frames[0].Landmarks[models.RightAnkle].Visibility = VisibilityThreshold

	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	r := NewRenderer(surface, &fakeClock{})
	defer r.Close()

	r.Update(Input{Sequence: seq, Visible: true})
	lines, _, _ := surface.snapshot()
	// knee-ankle, ankle-heel and ankle-foot index
	assert.Len(t, lines, len(Skeleton)-3)
}

func TestProjectionKeepsAspectRatio(t *testing.T) {
	seq := &models.PoseSequence{Width: 1920, Height: 1080, Frames: []models.PoseFrame{
		{Landmarks: visiblePose(0, 0)},
	}}
	seq.Frames[0].Landmarks[models.Nose] = models.Landmark{X: 1, Y: 1, Visibility: 1}

	// a square surface letterboxes a 16:9 video vertically
	surface := &fakeSurface{w: 400, h: 400, scale: 2}
	r := NewRenderer(surface, &fakeClock{})
	defer r.Close()

	r.Update(Input{Sequence: seq, Visible: true})
	_, dots, _ := surface.snapshot()
	require.NotEmpty(t, dots)

	nose := dots[0]
	assert.InDelta(t, 400, nose.x, 1e-9)
	assert.InDelta(t, 87.5+225, nose.y, 1e-9)
	assert.Equal(t, JointRadius*2, nose.r, "radius scales with the pixel ratio")

	shoulder := dots[1]
	assert.InDelta(t, 0, shoulder.x, 1e-9)
	assert.InDelta(t, 87.5, shoulder.y, 1e-9)
}

func TestEmptyFramesClearOnly(t *testing.T) {
	seq := sequence(2)
	seq.Frames[1].Landmarks = nil

	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	r := NewRenderer(surface, &fakeClock{})
	defer r.Close()

	r.Update(Input{Sequence: seq, CurrentTime: 1.0 / 30, Visible: true})
	lines, dots, clears := surface.snapshot()
	assert.Empty(t, lines)
	assert.Empty(t, dots)
	assert.Equal(t, 1, clears)

	r.Update(Input{Sequence: nil, Visible: true})
	_, _, clears = surface.snapshot()
	assert.Equal(t, 2, clears)
}

func TestEventsDriveStateMachine(t *testing.T) {
	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	clock := &fakeClock{}
	r := NewRenderer(surface, clock, WithFrameRate(500))
	defer r.Close()

	r.Update(Input{Sequence: sequence(30), Visible: true})
	assert.Equal(t, StateIdle, r.State())

	r.Handle(EventPlay, 0)
	assert.Equal(t, StateDrawing, r.State())

	// the loop follows the clock
	_, _, before := surface.snapshot()
	clock.set(0.5)
	assert.Eventually(t, func() bool {
		_, _, clears := surface.snapshot()
		return clears > before+2
	}, time.Second, time.Millisecond)

	r.Handle(EventPause, 0.5)
	assert.Equal(t, StateIdle, r.State())
	lines, _, afterPause := surface.snapshot()
	assert.NotEmpty(t, lines, "pause performs a final draw")

	time.Sleep(20 * time.Millisecond)
	_, _, later := surface.snapshot()
	assert.Equal(t, afterPause, later, "no draws after pause")

	r.Handle(EventSeek, 0.2)
	_, _, afterSeek := surface.snapshot()
	assert.Equal(t, later+1, afterSeek)

	r.Handle(EventHide, 0.2)
	lines, dots, _ := surface.snapshot()
	assert.Empty(t, lines)
	assert.Empty(t, dots)

	// hidden overlays ignore time updates and do not start the loop
	r.Handle(EventTimeUpdate, 0.3)
	r.Handle(EventPlay, 0.3)
	assert.Equal(t, StateIdle, r.State())
	lines, _, _ = surface.snapshot()
	assert.Empty(t, lines)

	// play arrived while hidden, so showing starts the loop
	r.Handle(EventShow, 0.3)
	assert.Equal(t, StateDrawing, r.State())
	assert.Eventually(t, func() bool {
		lines, _, _ := surface.snapshot()
		return len(lines) > 0
	}, time.Second, time.Millisecond)
}

func TestShowWhilePlayingResumesLoop(t *testing.T) {
	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	clock := &fakeClock{}
	r := NewRenderer(surface, clock, WithFrameRate(500))
	defer r.Close()

	seq := sequence(30)
	r.Update(Input{Sequence: seq, Visible: true})
	r.Handle(EventPlay, 0)
	r.Handle(EventHide, 0.1)
	assert.Equal(t, StateIdle, r.State())

	r.Handle(EventShow, 0.2)
	assert.Equal(t, StateDrawing, r.State())

	_, _, before := surface.snapshot()
	clock.set(0.8)
	assert.Eventually(t, func() bool {
		_, _, clears := surface.snapshot()
		return clears > before+2
	}, time.Second, time.Millisecond)

	// the same through the sink
	r.Update(Input{Sequence: seq, CurrentTime: 0.8, Visible: false})
	assert.Equal(t, StateIdle, r.State())
	r.Update(Input{Sequence: seq, CurrentTime: 0.8, Visible: true})
	assert.Equal(t, StateDrawing, r.State())

	r.Handle(EventPause, 0.9)
	r.Handle(EventHide, 0.9)
	r.Handle(EventShow, 0.9)
	assert.Equal(t, StateIdle, r.State(), "a paused overlay stays idle when shown")

	_, _, afterShow := surface.snapshot()
	time.Sleep(20 * time.Millisecond)
	_, _, later := surface.snapshot()
	assert.Equal(t, afterShow, later)
}

func TestDrawFollowsSurfaceResize(t *testing.T) {
	seq := &models.PoseSequence{Width: 100, Height: 100, Frames: []models.PoseFrame{
		{Landmarks: visiblePose(0.5, 0.5)},
	}}
	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	r := NewRenderer(surface, &fakeClock{})
	defer r.Close()

	r.Update(Input{Sequence: seq, Visible: true})
	lines, dots, _ := surface.snapshot()
	require.Len(t, lines, len(Skeleton))
	require.Len(t, dots, len(Joints))
	for _, d := range dots {
		assert.InDelta(t, 50, d.x, 1e-9)
		assert.InDelta(t, 50, d.y, 1e-9)
		assert.Equal(t, JointRadius, d.r)
	}
	for _, l := range lines {
		assert.Equal(t, BoneWidth, l.width)
	}

	// a wider surface pillarboxes the square video: 200x200 centred at x=50
	surface.resize(300, 200, 2)
	r.Handle(EventSeek, 0)

	lines, dots, _ = surface.snapshot()
	require.Len(t, lines, len(Skeleton), "no strokes left from the previous size")
	require.Len(t, dots, len(Joints))
	for _, d := range dots {
		assert.InDelta(t, 150, d.x, 1e-9)
		assert.InDelta(t, 100, d.y, 1e-9)
		assert.Equal(t, JointRadius*2, d.r)
	}
	for _, l := range lines {
		assert.InDelta(t, 150, l.x1, 1e-9)
		assert.InDelta(t, 100, l.y2, 1e-9)
		assert.Equal(t, BoneWidth*2, l.width)
	}
}

func TestCloseStopsLoop(t *testing.T) {
	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	r := NewRenderer(surface, &fakeClock{}, WithFrameRate(1000))
	r.Update(Input{Sequence: sequence(5), Visible: true})
	r.Handle(EventPlay, 0)
	r.Close()
	assert.Equal(t, StateIdle, r.State())

	_, _, clears := surface.snapshot()
	r.Handle(EventSeek, 0.1)
	r.Update(Input{Sequence: sequence(5), Visible: true})
	_, _, after := surface.snapshot()
	assert.Equal(t, clears, after)
}

func TestHideViaUpdateStopsLoop(t *testing.T) {
	surface := &fakeSurface{w: 100, h: 100, scale: 1}
	r := NewRenderer(surface, &fakeClock{}, WithFrameRate(1000))
	defer r.Close()

	seq := sequence(5)
	r.Update(Input{Sequence: seq, Visible: true})
	r.Handle(EventPlay, 0)
	r.Update(Input{Sequence: seq, Visible: false})
	assert.Equal(t, StateIdle, r.State())
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "timeupdate", EventTimeUpdate.String())
	assert.Equal(t, "hide", EventHide.String())
	assert.Equal(t, "unknown", Event(42).String())
	assert.Equal(t, "drawing", StateDrawing.String())
}

func TestCanvasRasterises(t *testing.T) {
	c := NewCanvas(50, 40, 2)
	w, h := c.PixelSize()
	assert.Equal(t, 100, w)
	assert.Equal(t, 80, h)
	assert.Equal(t, 2.0, c.Scale())

	c.Line(10, 40, 90, 40, 6, LeftColor)
	c.Dot(50, 10, 5, RightColor)

	img := c.Image()
	onLine := img.RGBAAt(50, 40)
	assert.Greater(t, onLine.A, uint8(250))
	assert.Greater(t, onLine.B, uint8(250))
	assert.Less(t, onLine.R, uint8(5))

	onDot := img.RGBAAt(50, 10)
	assert.Greater(t, onDot.A, uint8(250))
	assert.Greater(t, onDot.R, uint8(250))
	assert.Less(t, onDot.B, uint8(40))
	assert.Zero(t, img.RGBAAt(5, 75).A, "untouched pixels stay transparent")

	var buf bytes.Buffer
	require.NoError(t, c.PNG(&buf))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())

	c.Clear()
	assert.Zero(t, c.Image().RGBAAt(50, 40).A)

	c.Resize(10, 10, 0)
	w, h = c.PixelSize()
	assert.Equal(t, 10, w)
	assert.Equal(t, 10, h)
	assert.Equal(t, 1.0, c.Scale())
}
