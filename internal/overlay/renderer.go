// Package overlay draws the detected skeleton over video playback. The
// Renderer is driven by playback events and an independent clock; drawing is
// synchronous and serialised, and the display loop runs while playing and shown.
package overlay

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/models"
)

// DefaultFrameRate is the display loop rate while playing
const DefaultFrameRate = 60

// Base stroke sizes in CSS pixels, multiplied by the device pixel ratio
const (
	BoneWidth   = 3.0
	JointRadius = 4.0
)

// State of the renderer
type State int

const (
	StateIdle State = iota
	StateDrawing
)

func (s State) String() string {
	if s == StateDrawing {
		return "drawing"
	}
	return "idle"
}

// Event is a playback notification
type Event int

const (
	EventTimeUpdate Event = iota
	EventSeek
	EventPlay
	EventPause
	EventShow
	EventHide
)

var eventNames = [...]string{"timeupdate", "seek", "play", "pause", "show", "hide"}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// Clock reports the current playback position in seconds
type Clock interface {
	CurrentTime() float64
}

// ClockFunc adapts a function to Clock
type ClockFunc func() float64

// CurrentTime calls f
func (f ClockFunc) CurrentTime() float64 { return f() }

// Input is the overlay sink: the sequence to draw, the playback position and
// whether the overlay is shown
type Input struct {
	Sequence    *models.PoseSequence
	CurrentTime float64
	Visible     bool
}

// Renderer draws the pose closest to the playback position onto a Surface
type Renderer struct {
	mu      sync.Mutex
	surface Surface
	clock   Clock
	logger  *slog.Logger
	period  time.Duration

	seq     *models.PoseSequence
	t       float64
	visible bool
	playing bool
	state   State
	closed  bool

	// last observed surface geometry
	pixelW, pixelH int
	scale          float64

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Option configures a Renderer
type Option func(*Renderer)

// WithFrameRate sets the display loop rate in Hz
func WithFrameRate(hz float64) Option {
	return func(r *Renderer) {
		if hz > 0 && !math.IsInf(hz, 0) {
			r.period = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logging.OrDiscard(l) }
}

// NewRenderer returns an idle, visible renderer
func NewRenderer(surface Surface, clock Clock, opts ...Option) *Renderer {
	r := &Renderer{
		surface: surface,
		clock:   clock,
		logger:  logging.Discard(),
		period:  time.Second / DefaultFrameRate,
		visible: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Update replaces the sequence, position and visibility and redraws
func (r *Renderer) Update(in Input) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.seq = in.Sequence
	r.t = in.CurrentTime
	r.visible = in.Visible
	if !r.visible {
		r.state = StateIdle
		stop := r.detachLoopLocked()
		r.surface.Clear()
		r.mu.Unlock()
		stop()
		return
	}
	r.drawLocked()
	r.resumeLocked()
	r.mu.Unlock()
}

// Handle applies a playback event at position t
func (r *Renderer) Handle(ev Event, t float64) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	stop := func() {}
	switch ev {
	case EventTimeUpdate, EventSeek:
		r.t = t
		if r.visible {
			r.drawLocked()
		}
	case EventPlay:
		r.t = t
		r.playing = true
		r.resumeLocked()
	case EventPause:
		r.t = t
		r.playing = false
		r.state = StateIdle
		stop = r.detachLoopLocked()
	case EventShow:
		r.t = t
		r.visible = true
		r.drawLocked()
		r.resumeLocked()
	case EventHide:
		r.visible = false
		r.state = StateIdle
		stop = r.detachLoopLocked()
		r.surface.Clear()
	}
	r.mu.Unlock()

	// the loop takes the lock on every tick, so wait for it unlocked
	stop()

	if ev == EventPause {
		r.mu.Lock()
		if !r.closed && r.visible {
			r.drawLocked()
		}
		r.mu.Unlock()
	}
}

// Close stops the display loop. Later events are ignored.
func (r *Renderer) Close() {
	r.mu.Lock()
	r.closed = true
	r.playing = false
	r.state = StateIdle
	stop := r.detachLoopLocked()
	r.mu.Unlock()
	stop()
}

// resumeLocked starts the display loop if playback is running, the overlay is
// shown and no loop is active
func (r *Renderer) resumeLocked() {
	if !r.playing || !r.visible || r.loopCancel != nil {
		return
	}
	r.state = StateDrawing
	r.startLoopLocked()
}

func (r *Renderer) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.loopCancel, r.loopDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

// detachLoopLocked cancels the display loop and returns a function that
// waits for it to exit
func (r *Renderer) detachLoopLocked() func() {
	cancel, done := r.loopCancel, r.loopDone
	r.loopCancel, r.loopDone = nil, nil
	if cancel == nil {
		return func() {}
	}
	cancel()
	return func() { <-done }
}

func (r *Renderer) tick(ctx context.Context) {
	t := r.clock.CurrentTime()

	r.mu.Lock()
	defer r.mu.Unlock()
	// a pause or hide may have won the lock first
	if ctx.Err() != nil || r.state != StateDrawing {
		return
	}
	r.t = t
	r.drawLocked()
}

// drawLocked clears the surface and draws the frame closest to r.t
func (r *Renderer) drawLocked() {
	w, h := r.surface.PixelSize()
	scale := r.surface.Scale()
	if w != r.pixelW || h != r.pixelH || scale != r.scale {
		r.logger.Debug("overlay surface resized", "width", w, "height", h, "scale", scale)
		r.pixelW, r.pixelH, r.scale = w, h, scale
	}

	r.surface.Clear()
	if r.seq == nil || r.seq.Len() == 0 {
		return
	}

	frame := r.seq.Frames[ClosestFrame(r.seq.Frames, r.t)]
	if !frame.HasPose() {
		return
	}

	box := contentBox(w, h, r.seq.Width, r.seq.Height)
	project := func(l models.Landmark) (float64, float64) {
		return box.x + l.X*box.w, box.y + l.Y*box.h
	}

	for _, b := range Skeleton {
		pa, pb := frame.Landmarks[b.A], frame.Landmarks[b.B]
		if !drawable(pa) || !drawable(pb) {
			continue
		}
		x1, y1 := project(pa)
		x2, y2 := project(pb)
		r.surface.Line(x1, y1, x2, y2, BoneWidth*scale, BoneColor(b))
	}

	for _, j := range Joints {
		p := frame.Landmarks[j]
		if !drawable(p) {
			continue
		}
		x, y := project(p)
		r.surface.Dot(x, y, JointRadius*scale, ColorOf(SideOf(j)))
	}
}

func drawable(l models.Landmark) bool {
	return l.Visibility > VisibilityThreshold && l.Finite()
}

type rect struct {
	x, y, w, h float64
}

// contentBox returns where a videoW x videoH picture lands when fitted
// inside a w x h surface with its aspect ratio kept. An unknown video size
// fills the surface.
func contentBox(w, h, videoW, videoH int) rect {
	full := rect{w: float64(w), h: float64(h)}
	if videoW <= 0 || videoH <= 0 || w <= 0 || h <= 0 {
		return full
	}

	scale := math.Min(float64(w)/float64(videoW), float64(h)/float64(videoH))
	cw, ch := float64(videoW)*scale, float64(videoH)*scale
	return rect{x: (float64(w) - cw) / 2, y: (float64(h) - ch) / 2, w: cw, h: ch}
}

// ClosestFrame returns the index of the frame whose timestamp is nearest t.
// Frames must be ordered by timestamp and non-empty. Ties go to the earlier
// frame.
func ClosestFrame(frames []models.PoseFrame, t float64) int {
	i := sort.Search(len(frames), func(i int) bool { return frames[i].Timestamp >= t })
	switch {
	case i == 0:
		return 0
	case i == len(frames):
		return len(frames) - 1
	case frames[i].Timestamp-t < t-frames[i-1].Timestamp:
		return i
	default:
		return i - 1
	}
}
