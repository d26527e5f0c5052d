// Package world drives the simulation: it owns bodies, colliders and joints,
// runs the broad phase, narrow phase and island solver every step, queues
// contact and trigger events, and answers ray and box queries.
//
// A World is not safe for concurrent use. Step may solve islands on several
// goroutines internally but returns only after all of them finish.
package world

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/collision"
	"github.com/san-kum/rigidsim/internal/dynamics"
)

var (
	ErrInvalidSettings = errors.New("world: invalid settings")
	ErrInvalidTimeStep = errors.New("world: time step must be positive and finite")
	ErrUnknownBody     = errors.New("world: body does not belong to this world")
	ErrUnknownCollider = errors.New("world: collider does not belong to this world")
	ErrUnknownJoint    = errors.New("world: joint does not belong to this world")
)

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger for diagnostics. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithListener sets the receiver of contact and trigger events.
func WithListener(l Listener) Option {
	return func(w *World) { w.listener = l }
}

type bodyPair struct{ a, b int }

func makeBodyPair(a, b *dynamics.Body) bodyPair {
	if a.ID() > b.ID() {
		a, b = b, a
	}
	return bodyPair{a.ID(), b.ID()}
}

// World is a rigid body simulation.
type World struct {
	settings Settings
	logger   *log.Logger
	listener Listener

	arena     *arena.Arena
	bp        *broadphase.BroadPhase
	manifolds *collision.ManifoldTable
	scratch   *collision.Scratch
	builder   *dynamics.IslandBuilder

	bodies    []*dynamics.Body
	colliders map[int]*dynamics.Collider
	joints    []dynamics.Joint
	noCollide map[bodyPair]int
	triggers  map[broadphase.Pair]uint64

	nextBody     int
	nextCollider int
	nextJoint    int

	edges          *arena.List[dynamics.ContactEdge]
	touching       *arena.List[touchingPair]
	contactEvents  *arena.List[queuedContact]
	triggerEvents  *arena.List[queuedTrigger]
	results        *arena.Slab[dynamics.SolveResult]
	stalePairs     []broadphase.Pair
	islands        []*dynamics.Island
	steps          uint64
	lastPairs      int
	lastSeparation float64
}

// New creates an empty world.
func New(settings Settings, opts ...Option) (*World, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		settings:  settings,
		logger:    log.New(io.Discard),
		colliders: make(map[int]*dynamics.Collider),
		noCollide: make(map[bodyPair]int),
		triggers:  make(map[broadphase.Pair]uint64),
		manifolds: collision.NewManifoldTable(256),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.arena = arena.New(w.logger)
	w.bp = broadphase.New(w.arena, settings.AABBMargin, settings.DisplacementMultiplier)
	w.scratch = collision.NewScratch(w.arena)
	w.builder = dynamics.NewIslandBuilder(w.arena)
	w.edges = arena.NewList[dynamics.ContactEdge](w.arena, "world.edges", 256)
	w.touching = arena.NewList[touchingPair](w.arena, "world.touching", 256)
	w.contactEvents = arena.NewList[queuedContact](w.arena, "world.contact_events", 64)
	w.triggerEvents = arena.NewList[queuedTrigger](w.arena, "world.trigger_events", 16)
	w.results = arena.NewSlab[dynamics.SolveResult](w.arena, "world.results", 64)
	return w, nil
}

// Settings returns the world settings.
func (w *World) Settings() Settings { return w.settings }

// SetListener replaces the event listener.
func (w *World) SetListener(l Listener) { w.listener = l }

// Logger returns the world logger.
func (w *World) Logger() *log.Logger { return w.logger }

func (w *World) owns(b *dynamics.Body) bool {
	return b != nil && b.Index() >= 0 && b.Index() < len(w.bodies) && w.bodies[b.Index()] == b
}

// CreateBody adds a body without colliders. Dynamic bodies get unit mass
// until a collider with density is attached.
func (w *World) CreateBody(def dynamics.BodyDef) (*dynamics.Body, error) {
	b, err := dynamics.NewBody(w.nextBody, len(w.bodies), def)
	if err != nil {
		return nil, err
	}
	w.nextBody++
	w.bodies = append(w.bodies, b)
	return b, nil
}

// DestroyBody removes a body with its colliders and joints.
func (w *World) DestroyBody(b *dynamics.Body) error {
	if !w.owns(b) {
		return ErrUnknownBody
	}
	for len(b.Colliders()) > 0 {
		if err := w.RemoveCollider(b.Colliders()[0]); err != nil {
			return err
		}
	}
	for i := len(w.joints) - 1; i >= 0; i-- {
		ja, jb := w.joints[i].Bodies()
		if ja == b || jb == b {
			w.removeJoint(i)
		}
	}
	i := b.Index()
	w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
	for k := i; k < len(w.bodies); k++ {
		w.bodies[k].SetIndex(k)
	}
	b.SetIndex(-1)
	return nil
}

// AddCollider attaches a shape to b and registers it with the broad phase.
// A zero material takes the world default and a zero filter collides with
// everything.
func (w *World) AddCollider(b *dynamics.Body, def dynamics.ColliderDef) (*dynamics.Collider, error) {
	if !w.owns(b) {
		return nil, ErrUnknownBody
	}
	if def.Material == (dynamics.Material{}) {
		def.Material = w.settings.DefaultMaterial()
	}
	if def.Filter == (dynamics.Filter{}) {
		def.Filter = dynamics.DefaultFilter()
	}
	c, err := dynamics.NewCollider(w.nextCollider, b, def)
	if err != nil {
		return nil, err
	}
	w.nextCollider++
	w.colliders[c.ID()] = c
	b.ResetMassData(w.logger)
	w.bp.Add(c.ID(), c.WorldAABB())
	b.Wake()
	return c, nil
}

// RemoveCollider detaches c, drops its manifolds and wakes the bodies it
// touched. No end events are produced for the dropped manifolds.
func (w *World) RemoveCollider(c *dynamics.Collider) error {
	if c == nil || w.colliders[c.ID()] != c {
		return ErrUnknownCollider
	}
	w.stalePairs = w.manifolds.AppendPairs(w.stalePairs[:0])
	for _, p := range w.stalePairs {
		if p.A != c.ID() && p.B != c.ID() {
			continue
		}
		if h, ok := w.manifolds.Lookup(p); ok && w.manifolds.At(h).Touching() {
			w.colliders[p.A].Body().Wake()
			w.colliders[p.B].Body().Wake()
		}
		w.manifolds.Release(p)
	}
	for p := range w.triggers {
		if p.A == c.ID() || p.B == c.ID() {
			delete(w.triggers, p)
		}
	}
	w.bp.Remove(c.ID())
	delete(w.colliders, c.ID())
	b := c.Body()
	c.Detach()
	b.ResetMassData(w.logger)
	b.Wake()
	return nil
}

// CreateJoint connects two bodies of this world.
func (w *World) CreateJoint(def dynamics.JointDef) (dynamics.Joint, error) {
	if (def.BodyA != nil && !w.owns(def.BodyA)) || (def.BodyB != nil && !w.owns(def.BodyB)) {
		return nil, ErrUnknownBody
	}
	j, err := dynamics.NewJoint(w.nextJoint, def)
	if err != nil {
		return nil, err
	}
	w.nextJoint++
	w.joints = append(w.joints, j)
	if !j.CollideConnected() {
		w.noCollide[makeBodyPair(def.BodyA, def.BodyB)]++
	}
	def.BodyA.Wake()
	def.BodyB.Wake()
	return j, nil
}

// DestroyJoint removes j and wakes its bodies.
func (w *World) DestroyJoint(j dynamics.Joint) error {
	for i, o := range w.joints {
		if o == j {
			w.removeJoint(i)
			return nil
		}
	}
	return ErrUnknownJoint
}

func (w *World) removeJoint(i int) {
	j := w.joints[i]
	w.joints = append(w.joints[:i], w.joints[i+1:]...)
	a, b := j.Bodies()
	if !j.CollideConnected() {
		k := makeBodyPair(a, b)
		if w.noCollide[k]--; w.noCollide[k] <= 0 {
			delete(w.noCollide, k)
		}
	}
	a.Wake()
	b.Wake()
}

// Body returns the body with the given id.
func (w *World) Body(id int) (*dynamics.Body, bool) {
	for _, b := range w.bodies {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

// Collider returns the collider with the given id.
func (w *World) Collider(id int) (*dynamics.Collider, bool) {
	c, ok := w.colliders[id]
	return c, ok
}

// Bodies returns the bodies in creation order.
func (w *World) Bodies() []*dynamics.Body {
	return append([]*dynamics.Body(nil), w.bodies...)
}

// Joints returns the joints in creation order.
func (w *World) Joints() []dynamics.Joint {
	return append([]dynamics.Joint(nil), w.joints...)
}

// Manifolds returns copies of the touching manifolds in pair order.
func (w *World) Manifolds() []collision.Manifold {
	w.stalePairs = w.manifolds.AppendPairs(w.stalePairs[:0])
	out := make([]collision.Manifold, 0, len(w.stalePairs))
	for _, p := range w.stalePairs {
		h, _ := w.manifolds.Lookup(p)
		if m := w.manifolds.At(h); m.Touching() {
			out = append(out, *m)
		}
	}
	return out
}

// IslandCount returns the number of islands solved by the last step.
func (w *World) IslandCount() int { return len(w.islands) }

// Stats summarises the last step.
type Stats struct {
	Steps         uint64
	Bodies        int
	Colliders     int
	Joints        int
	Pairs         int
	Manifolds     int
	Islands       int
	Sleeping      int
	MinSeparation float64
	TreeHeight    int
	Arena         arena.Stats
}

// Stats returns counters describing the last step.
func (w *World) Stats() Stats {
	s := Stats{
		Steps:         w.steps,
		Bodies:        len(w.bodies),
		Colliders:     len(w.colliders),
		Joints:        len(w.joints),
		Pairs:         w.lastPairs,
		Manifolds:     w.manifolds.Len(),
		Islands:       len(w.islands),
		MinSeparation: w.lastSeparation,
		TreeHeight:    w.bp.Tree().Height(),
		Arena:         w.arena.Stats(),
	}
	for _, b := range w.bodies {
		if b.IsSleeping() {
			s.Sleeping++
		}
	}
	return s
}

// ValidateTree checks the broad phase tree and panics when it is broken.
func (w *World) ValidateTree() { w.bp.Tree().Validate() }

func (w *World) String() string {
	return fmt.Sprintf("world{bodies: %d, colliders: %d, joints: %d}", len(w.bodies), len(w.colliders), len(w.joints))
}

func proxyOf(c *dynamics.Collider) collision.Proxy {
	return collision.Proxy{Shape: c.Shape(), Transform: c.WorldTransform()}
}
