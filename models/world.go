package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/broadphase/featureflag"
	"github.com/aukilabs/broadphase/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

const (
	defaultWorldName     = "world"
	defaultMergeInterval = 10
)

// WorldOptions describes a world. A zero field takes its default value.
type WorldOptions struct {
	Name     string
	Bounds   quadtree.Rect
	Capacity int
	MaxDepth int

	// The number of ticks between 2 merges of the tree. A negative value
	// disables merging.
	MergeInterval int

	FeatureFlags featureflag.FeatureFlag
}

// World is a rectangular area where entities move. It indexes its entities in
// a quadtree to find the neighbour candidates of every entity.
type World struct {
	ID   string
	Name string

	mergeInterval int
	featureFlags  featureflag.FeatureFlag

	mutex     sync.RWMutex
	entityIDs SequentialIDGenerator
	entities  map[uint32]*Entity
	tree      *quadtree.Tree[*Entity]
	index     *quadtree.Index[*Entity]
	tick      uint64
	snapshot  Snapshot

	startTickOnce   sync.Once
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func(Snapshot)
	frameMutex      sync.RWMutex
}

// NewWorld creates an empty world.
func NewWorld(opts WorldOptions) (*World, error) {
	if opts.Name == "" {
		opts.Name = defaultWorldName
	}
	if opts.MergeInterval == 0 {
		opts.MergeInterval = defaultMergeInterval
	}

	tree, err := quadtree.New(quadtree.Config[*Entity]{
		Name:     opts.Name,
		Bounds:   opts.Bounds,
		Capacity: opts.Capacity,
		MaxDepth: opts.MaxDepth,
		Contains: (*Entity).Intersects,
	})
	if err != nil {
		return nil, errors.New("creating world tree failed").
			WithTag("world", opts.Name).
			Wrap(err)
	}

	w := &World{
		ID:            uuid.NewString(),
		Name:          opts.Name,
		mergeInterval: opts.MergeInterval,
		featureFlags:  opts.FeatureFlags,
		entities:      make(map[uint32]*Entity),
		tree:          tree,
		index:         quadtree.NewIndex[*Entity](),
		frameHandlers: make(map[uint32]func(Snapshot)),
	}
	w.snapshot = w.makeSnapshot(time.Now(), 0, nil)
	return w, nil
}

func (w *World) Bounds() quadtree.Rect {
	return w.tree.Bounds()
}

// AddEntity creates an entity with the given body and indexes it. The body is
// moved inside the world bounds when it overflows them. Static entities never
// move.
func (w *World) AddEntity(b Body, static bool) (*Entity, error) {
	bounds := w.tree.Bounds()

	if b.HalfW < 0 || b.HalfH < 0 || 2*b.HalfW > bounds.W || 2*b.HalfH > bounds.H {
		return nil, errors.New("entity body does not fit in the world").
			WithType(ErrTypeInvalidBody).
			WithTag("world", w.Name).
			WithTag("half_w", b.HalfW).
			WithTag("half_h", b.HalfH)
	}

	if static {
		b.VX = 0
		b.VY = 0
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	e := &Entity{
		ID:     w.entityIDs.New(),
		UUID:   uuid.NewString(),
		Static: static,
		body:   b.Advance(0, bounds),
	}

	if err := w.insert(e); err != nil {
		w.entityIDs.Reuse(e.ID)
		return nil, errors.New("indexing entity failed").
			WithTag("world", w.Name).
			WithTag("entity_id", e.ID).
			Wrap(err)
	}

	w.entities[e.ID] = e
	instrumentEntityCount(w.Name, len(w.entities))
	return e, nil
}

// RemoveEntity removes the entity with the given id from the world and from
// every leaf that registers it.
func (w *World) RemoveEntity(id uint32) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	e, ok := w.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("world", w.Name).
			WithTag("entity_id", id)
	}

	w.tree.RemoveAll(e, w.index)
	delete(w.entities, id)
	w.entityIDs.Reuse(id)

	instrumentEntityCount(w.Name, len(w.entities))
	return nil
}

func (w *World) EntityByID(id uint32) (*Entity, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	e, ok := w.entities[id]
	return e, ok
}

// Entities returns the world entities sorted by id.
func (w *World) Entities() []*Entity {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.sortedEntities()
}

func (w *World) sortedEntities() []*Entity {
	entities := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, e)
	}
	sortEntities(entities)
	return entities
}

// Neighbors returns the entities that share at least one leaf with the entity
// with the given id, sorted by id.
func (w *World) Neighbors(id uint32) ([]*Entity, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	e, ok := w.entities[id]
	if !ok {
		return nil, errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("world", w.Name).
			WithTag("entity_id", id)
	}

	neighbors := w.tree.Neighbors(e, w.index)
	sortEntities(neighbors)
	return neighbors, nil
}

// Step moves the world entities by dt and reindexes the ones that moved. The
// tree is merged every merge interval ticks. The resulting snapshot is sent to
// the frame handlers.
func (w *World) Step(dt time.Duration) Snapshot {
	start := time.Now()

	w.mutex.Lock()
	w.tick++
	bounds := w.tree.Bounds()
	seconds := float32(dt.Seconds())

	for _, e := range w.sortedEntities() {
		if e.Static {
			continue
		}

		before := e.Body()
		after := before.Advance(seconds, bounds)
		if after == before {
			continue
		}

		w.tree.RemoveAll(e, w.index)
		e.SetBody(after)
		if err := w.insert(e); err != nil {
			logs.WithTag("world", w.Name).
				WithTag("entity_id", e.ID).
				Warn(err)
		}
	}

	var collapses int
	if w.mergeInterval > 0 && w.tick%uint64(w.mergeInterval) == 0 {
		w.featureFlags.IfNotSet(featureflag.FlagDisableMerge, func() {
			collapses = w.tree.Update(w.index)
		})
	}

	var pairs [][2]uint32
	w.tree.Pairs(func(a, b *Entity) {
		if a.ID > b.ID {
			a, b = b, a
		}
		pairs = append(pairs, [2]uint32{a.ID, b.ID})
	})
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	snapshot := w.makeSnapshot(start, collapses, pairs)
	w.snapshot = snapshot
	w.mutex.Unlock()

	instrumentTick(w.Name, time.Since(start), len(pairs))
	w.dispatchFrame(snapshot)
	return snapshot
}

// insert indexes e in the world tree. The tree ignores entities outside of its
// root rectangle, which is an error for a world entity.
func (w *World) insert(e *Entity) error {
	if err := w.tree.Insert(e, w.index); err != nil {
		return err
	}

	if !w.index.Has(e) {
		return errors.New("entity is outside of the world").
			WithType(ErrTypeInvalidBody).
			WithTag("bounds", e.Bounds())
	}
	return nil
}

// Snapshot returns the snapshot of the last tick.
func (w *World) Snapshot() Snapshot {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.snapshot
}

// DebugInfo returns the current shape of the world tree.
func (w *World) DebugInfo() quadtree.DebugInfo {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.tree.GetDebugInfo()
}

// Recount recomputes the registration counts of the world tree and returns
// the number of corrected nodes.
func (w *World) Recount() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.tree.Recount()
}

// HandleFrame registers a function that is called with the snapshot of every
// tick. Handlers must not block.
func (w *World) HandleFrame(h func(Snapshot)) (cancel func()) {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	id := w.frameHandlerIDs.New()
	w.frameHandlers[id] = h

	return func() {
		w.frameMutex.Lock()
		defer w.frameMutex.Unlock()

		if _, ok := w.frameHandlers[id]; !ok {
			return
		}
		delete(w.frameHandlers, id)
		w.frameHandlerIDs.Reuse(id)
	}
}

// StartTicking steps the world every d until the context is done. It is a
// no-op when the world is already ticking.
func (w *World) StartTicking(ctx context.Context, d time.Duration) {
	w.startTickOnce.Do(func() {
		logs.WithTag("world", w.Name).
			WithTag("tick", d).
			Info("world is ticking")

		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logs.WithTag("world", w.Name).
					WithTag("ticks", w.Snapshot().Tick).
					Info("world stopped ticking")
				return

			case <-ticker.C:
				w.Step(d)
			}
		}
	})
}

func (w *World) dispatchFrame(s Snapshot) {
	w.frameMutex.RLock()
	defer w.frameMutex.RUnlock()

	for _, h := range w.frameHandlers {
		h(s)
	}
}

func (w *World) makeSnapshot(t time.Time, collapses int, pairs [][2]uint32) Snapshot {
	entities := w.sortedEntities()

	return Snapshot{
		WorldID:     w.ID,
		Tick:        w.tick,
		Time:        t,
		EntityCount: len(entities),
		PairCount:   len(pairs),
		Collapses:   collapses,
		Pairs:       pairs,
		Entities:    EntitiesToViews(entities),
		Tree:        w.tree.GetDebugInfo(),
	}
}

// Snapshot is the state of a world after a tick.
type Snapshot struct {
	WorldID     string             `json:"world_id"`
	Tick        uint64             `json:"tick"`
	Time        time.Time          `json:"time"`
	EntityCount int                `json:"entity_count"`
	PairCount   int                `json:"pair_count"`
	Collapses   int                `json:"collapses"`
	Pairs       [][2]uint32        `json:"pairs"`
	Entities    []EntityView       `json:"entities"`
	Tree        quadtree.DebugInfo `json:"tree"`
}

func sortEntities(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
}
