package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"trivia-room-service/internal/domain"
)

// snapshotLeaderboardLimit caps how many entries a persisted snapshot
// keeps. Carried-over scores on resume come from this list, so it is
// sized generously above any realistic room.
const snapshotLeaderboardLimit = 100

// fallbackName replaces blank or whitespace-only display names.
const fallbackName = "Player"

// player is the per-connection participant state. The answeredAt zero
// value means the participant has not answered the current question.
type player struct {
	name       string
	score      int
	answeredAt time.Time
	choice     int
	correct    bool
}

// Room owns one session's mutable state. All operations take the room
// mutex, so each event mutates the session to completion before the next
// one is observed; snapshot persistence is the only work done outside it.
type Room struct {
	pin     string
	sender  Sender
	persist func(domain.Snapshot)
	now     func() time.Time

	mu        sync.Mutex
	hostID    string
	phase     domain.Phase
	questions []domain.Question
	current   int
	startedAt time.Time
	deadline  time.Time
	tally     [domain.OptionCount]int
	players   map[string]*player
	history   []domain.HistoryEntry
	carried   map[string]int
}

func newRoom(pin string, sender Sender, persist func(domain.Snapshot)) *Room {
	return newRoomWithClock(pin, sender, persist, time.Now)
}

// newRoomWithClock allows deterministic timestamps in tests.
func newRoomWithClock(pin string, sender Sender, persist func(domain.Snapshot), now func() time.Time) *Room {
	return &Room{
		pin:     pin,
		sender:  sender,
		persist: persist,
		now:     now,
		phase:   domain.PhaseLobby,
		current: -1,
		players: make(map[string]*player),
		carried: make(map[string]int),
	}
}

// PIN returns the session identifier.
func (r *Room) PIN() string {
	return r.pin
}

// Phase returns the current phase.
func (r *Room) Phase() domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// CurrentIndex returns the current question index (-1 before start).
func (r *Room) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetHost assigns the host connection. Used at creation time.
func (r *Room) SetHost(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostID = connID
}

// AttachHost binds a host connection to a resumed session. Ignored when a
// host is already attached.
func (r *Room) AttachHost(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hostID != "" {
		return
	}
	r.hostID = connID
	r.sendStatusLocked()
}

// Join registers a participant. A blank name gets a placeholder; a name
// matching a carried-over score from a resumed session (exact,
// case-sensitive) starts at that score instead of zero.
func (r *Room) Join(connID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = fallbackName
	}

	p := &player{name: name, choice: -1}
	if score, ok := r.carried[name]; ok {
		p.score = score
		delete(r.carried, name)
	}
	r.players[connID] = p

	r.sender.Send(connID, EventJoined, JoinedPayload{PIN: r.pin, Name: name, Score: p.score})
	r.sendStatusLocked()
}

// LoadQuiz replaces the question sequence. Host-only; calls from anyone
// else are silently ignored. Phase and current index are left untouched.
func (r *Room) LoadQuiz(connID string, questions []domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID != r.hostID || r.phase == domain.PhaseEnded {
		return
	}
	r.questions = questions
}

// NextQuestion advances to the next question or, past the end, to
// gameover. Host-only.
func (r *Room) NextQuestion(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID != r.hostID {
		return
	}
	if r.phase == domain.PhaseGameOver || r.phase == domain.PhaseEnded {
		return
	}

	r.current++
	if r.current >= len(r.questions) {
		r.phase = domain.PhaseGameOver
		r.broadcastLocked(EventGameOver, GameOverPayload{Leaderboard: r.liveLeaderboardLocked()})
		r.persistLocked()
		return
	}

	q := r.questions[r.current]
	for _, p := range r.players {
		p.answeredAt = time.Time{}
		p.choice = -1
		p.correct = false
	}
	r.tally = [domain.OptionCount]int{}
	r.phase = domain.PhaseQuestion
	r.startedAt = r.now()
	r.deadline = r.startedAt.Add(time.Duration(q.TimeLimitSec) * time.Second)

	r.broadcastLocked(EventQuestionStarted, QuestionStartedPayload{
		Index:          r.current,
		Total:          len(r.questions),
		Question:       q.Text,
		Options:        q.Options[:],
		TimeLimitSec:   q.TimeLimitSec,
		DeadlineEpochM: r.deadline.UnixMilli(),
		Totals:         r.totalsLocked(),
	})
	r.sendStatusLocked()
}

// SubmitAnswer records a participant's answer. First answer wins; repeats
// and out-of-phase submissions are silently dropped. When the last joined
// participant answers, the reveal fires automatically.
func (r *Room) SubmitAnswer(connID string, option int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != domain.PhaseQuestion {
		return
	}
	p, ok := r.players[connID]
	if !ok || !p.answeredAt.IsZero() {
		return
	}

	p.answeredAt = r.now()
	p.choice = option
	if option >= 0 && option < domain.OptionCount {
		r.tally[option]++
	}
	r.sendStatusLocked()

	totals := r.totalsLocked()
	if totals.Answered == totals.Joined && totals.Joined > 0 {
		r.revealLocked()
	}
}

// Reveal is the host's manual trigger; with auto-reveal it is an early
// termination of the wait rather than the only path.
func (r *Room) Reveal(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID != r.hostID {
		return
	}
	r.revealLocked()
}

// Disconnect handles a dropped connection. Exactly one action fires: a
// host disconnect ends the session (the registry then removes it), a
// participant disconnect updates the roster. Returns whether the
// connection was the host.
func (r *Room) Disconnect(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connID == r.hostID {
		r.broadcastLocked(EventSessionEnded, struct{}{})
		r.phase = domain.PhaseEnded
		return true
	}
	if _, ok := r.players[connID]; ok {
		delete(r.players, connID)
		r.sendStatusLocked()
	}
	return false
}

// Has reports whether the connection belongs to this room.
func (r *Room) Has(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID == r.hostID {
		return true
	}
	_, ok := r.players[connID]
	return ok
}

// Snapshot builds the durable projection of the session.
func (r *Room) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// seedCarried installs name->score carry-overs from a resumed snapshot.
func (r *Room) seedCarried(scores map[string]int, currentIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, score := range scores {
		r.carried[name] = score
	}
	r.current = currentIndex
}

// seedHistory restores revealed-question history from a snapshot.
func (r *Room) seedHistory(history []domain.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history[:0], history...)
}

func (r *Room) revealLocked() {
	if r.phase != domain.PhaseQuestion {
		return
	}
	if r.current < 0 || r.current >= len(r.questions) {
		return
	}

	q := r.questions[r.current]
	r.phase = domain.PhaseReveal

	results := make([]domain.PlayerResult, 0, len(r.players))
	for _, p := range r.players {
		earned := 0
		timeMs := int64(0)
		correct := false
		if !p.answeredAt.IsZero() {
			earned = Score(q, p.answeredAt, r.startedAt, p.choice)
			timeMs = p.answeredAt.Sub(r.startedAt).Milliseconds()
			correct = p.choice == q.CorrectIndex
		}
		p.score += earned
		p.correct = correct
		results = append(results, domain.PlayerResult{
			Name:    p.name,
			Correct: correct,
			Score:   p.score,
			TimeMs:  timeMs,
			Earned:  earned,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})

	r.history = append(r.history, domain.HistoryEntry{
		Index:        r.current,
		Question:     q.Text,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		PerPlayer:    results,
	})

	r.broadcastLocked(EventRevealResult, RevealResultPayload{
		Index:        r.current,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Leaderboard:  r.liveLeaderboardLocked(),
		Results:      results,
	})
	if r.hostID != "" {
		r.sender.Send(r.hostID, EventOptionTally, OptionTallyPayload{
			Counts:       r.tally,
			CorrectIndex: q.CorrectIndex,
			Totals:       r.totalsLocked(),
		})
	}

	// Durability is best-effort and happens after the broadcast; a failed
	// write never rolls the phase back.
	r.persistLocked()
}

func (r *Room) persistLocked() {
	if r.persist == nil {
		return
	}
	snap := r.snapshotLocked()
	go r.persist(snap)
}

func (r *Room) snapshotLocked() domain.Snapshot {
	lb := r.liveLeaderboardLocked()
	// Carried scores nobody has claimed yet survive into the next save.
	for name, score := range r.carried {
		lb = append(lb, domain.LeaderboardEntry{Name: name, Score: score})
	}
	sort.Slice(lb, func(i, j int) bool {
		if lb[i].Score != lb[j].Score {
			return lb[i].Score > lb[j].Score
		}
		return lb[i].Name < lb[j].Name
	})
	if len(lb) > snapshotLeaderboardLimit {
		lb = lb[:snapshotLeaderboardLimit]
	}

	history := make([]domain.HistoryEntry, len(r.history))
	copy(history, r.history)

	return domain.Snapshot{
		PIN:          r.pin,
		CurrentIndex: r.current,
		Leaderboard:  lb,
		History:      history,
		Timestamp:    r.now().UnixMilli(),
	}
}

func (r *Room) liveLeaderboardLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(r.players))
	for _, p := range r.players {
		entries = append(entries, domain.LeaderboardEntry{Name: p.name, Score: p.score})
	}
	// Ties sort name-ascending so the board is stable across runs.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func (r *Room) totalsLocked() Totals {
	answered := 0
	for _, p := range r.players {
		if !p.answeredAt.IsZero() {
			answered++
		}
	}
	return Totals{Joined: len(r.players), Answered: answered}
}

func (r *Room) sendStatusLocked() {
	if r.hostID == "" {
		return
	}
	deadline := int64(0)
	if !r.deadline.IsZero() {
		deadline = r.deadline.UnixMilli()
	}
	r.sender.Send(r.hostID, EventStatus, StatusPayload{
		Totals:         r.totalsLocked(),
		Accepting:      r.phase == domain.PhaseQuestion,
		DeadlineEpochM: deadline,
	})
}

func (r *Room) broadcastLocked(event string, payload any) {
	if r.hostID != "" {
		r.sender.Send(r.hostID, event, payload)
	}
	for connID := range r.players {
		r.sender.Send(connID, event, payload)
	}
}
