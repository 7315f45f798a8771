package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-room-service/internal/domain"
)

// SnapshotStore abstracts durable session snapshots (redis or in-memory).
// Load returns domain.ErrNoSnapshot when nothing usable is stored.
type SnapshotStore interface {
	Save(ctx context.Context, pin string, snap domain.Snapshot, ttl time.Duration) error
	Load(ctx context.Context, pin string) (domain.Snapshot, error)
	Delete(ctx context.Context, pin string) error
	Ping(ctx context.Context) domain.StoreHealth
	Mode() string
}

// QuizCatalog resolves stored quiz sets by ID (from cache/backing store).
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizSet, error)
}

// Registry owns the PIN -> Room mapping. It is the only structure touched
// across sessions; individual insert/delete/lookup operations are atomic
// under its mutex.
type Registry struct {
	sender Sender
	store  SnapshotStore
	now    func() time.Time
	rng    *rand.Rand
	sf     singleflight.Group

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(store SnapshotStore, sender Sender) *Registry {
	return &Registry{
		sender: sender,
		store:  store,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms:  make(map[string]*Room),
	}
}

// Create allocates a fresh session in the lobby phase with the calling
// connection as host. PINs are uniform random over the 6-digit space;
// collisions are not checked.
func (g *Registry) Create(hostConnID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	pin := fmt.Sprintf("%06d", g.rng.Intn(1000000))
	room := newRoomWithClock(pin, g.sender, g.persistFunc(pin), g.now)
	room.SetHost(hostConnID)
	g.rooms[pin] = room
	return room
}

// Get looks up a live room.
func (g *Registry) Get(pin string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[pin]
	return room, ok
}

// Remove deletes a room unconditionally. A snapshot write in flight for
// the removed room completes and is discarded with the stored value
// overwritten on the next save for that PIN, if any.
func (g *Registry) Remove(pin string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, pin)
}

// Disconnect routes a dropped connection to the room it belongs to.
// A host disconnect tears the whole session down.
func (g *Registry) Disconnect(connID string) {
	g.mu.RLock()
	var target *Room
	for _, room := range g.rooms {
		if room.Has(connID) {
			target = room
			break
		}
	}
	g.mu.RUnlock()

	if target == nil {
		return
	}
	if wasHost := target.Disconnect(connID); wasHost {
		g.Remove(target.PIN())
	}
}

// Resume reconstructs a session from its last durable snapshot. The new
// room starts in the lobby with no host attached, positioned so the next
// advance moves past the last revealed question; scores carry over by
// exact name match when participants rejoin. Concurrent resumes for one
// PIN collapse into a single reconstruction.
func (g *Registry) Resume(ctx context.Context, pin string) (*Room, error) {
	if room, ok := g.Get(pin); ok {
		return room, nil
	}

	result, err, _ := g.sf.Do(pin, func() (interface{}, error) {
		if room, ok := g.Get(pin); ok {
			return room, nil
		}

		snap, err := g.store.Load(ctx, pin)
		if err != nil {
			return nil, err
		}

		currentIndex := -1
		if n := len(snap.History); n > 0 {
			currentIndex = snap.History[n-1].Index
		}
		carried := make(map[string]int, len(snap.Leaderboard))
		for _, entry := range snap.Leaderboard {
			carried[entry.Name] = entry.Score
		}

		room := newRoomWithClock(pin, g.sender, g.persistFunc(pin), g.now)
		room.seedCarried(carried, currentIndex)
		room.seedHistory(snap.History)

		g.mu.Lock()
		g.rooms[pin] = room
		g.mu.Unlock()
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Room), nil
}

// SnapshotFor returns the live room's snapshot, falling back to the last
// durable one when no live session exists.
func (g *Registry) SnapshotFor(ctx context.Context, pin string) (domain.Snapshot, error) {
	if room, ok := g.Get(pin); ok {
		return room.Snapshot(), nil
	}
	return g.store.Load(ctx, pin)
}

// persistFunc builds the best-effort autosave hook a room fires on reveal
// and gameover. Failures are logged, never retried.
func (g *Registry) persistFunc(pin string) func(domain.Snapshot) {
	return func(snap domain.Snapshot) {
		if err := g.store.Save(context.Background(), pin, snap, 0); err != nil {
			log.Printf("room %s: snapshot save failed: %v", pin, err)
		}
	}
}
