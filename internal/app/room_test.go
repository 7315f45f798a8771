package app

import (
	"sync"
	"testing"
	"time"

	"trivia-room-service/internal/domain"
)

type recordedEvent struct {
	connID  string
	event   string
	payload any
}

type fakeSender struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeSender) Send(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{connID: connID, event: event, payload: payload})
}

func (f *fakeSender) byType(event string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) lastTo(connID, event string) (recordedEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].connID == connID && f.events[i].event == event {
			return f.events[i], true
		}
	}
	return recordedEvent{}, false
}

// testClock is a manually advanced clock for deterministic timing.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			Text:         "Question",
			Options:      [4]string{"a", "b", "c", "d"},
			CorrectIndex: 1,
			TimeLimitSec: 20,
		}
	}
	return qs
}

func newTestRoom(t *testing.T) (*Room, *fakeSender, *testClock, chan domain.Snapshot) {
	t.Helper()
	sender := &fakeSender{}
	clock := newTestClock()
	saved := make(chan domain.Snapshot, 4)
	room := newRoomWithClock("123456", sender, func(snap domain.Snapshot) { saved <- snap }, clock.Now)
	room.SetHost("host")
	return room, sender, clock, saved
}

func TestJoinDefaultsBlankName(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)

	room.Join("c1", "   ")

	joined, ok := sender.lastTo("c1", EventJoined)
	if !ok {
		t.Fatalf("expected joined event")
	}
	payload := joined.payload.(JoinedPayload)
	if payload.Name != "Player" || payload.Score != 0 {
		t.Fatalf("expected placeholder name with zero score, got %+v", payload)
	}
}

func TestJoinSeedsCarriedScore(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.seedCarried(map[string]int{"Alice": 1300}, 1)

	room.Join("c1", "Alice")
	room.Join("c2", "alice") // case-sensitive: no match

	got, _ := sender.lastTo("c1", EventJoined)
	if got.payload.(JoinedPayload).Score != 1300 {
		t.Fatalf("expected Alice to carry 1300, got %+v", got.payload)
	}
	other, _ := sender.lastTo("c2", EventJoined)
	if other.payload.(JoinedPayload).Score != 0 {
		t.Fatalf("expected unmatched name to start at zero, got %+v", other.payload)
	}
}

func TestLoadQuizHostOnly(t *testing.T) {
	room, _, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")

	room.LoadQuiz("c1", testQuestions(2))
	room.NextQuestion("host")
	if room.Phase() != domain.PhaseGameOver {
		t.Fatalf("expected gameover from empty quiz, got %s", room.Phase())
	}
}

func TestNextQuestionBroadcastsWithoutCorrectIndex(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")
	room.LoadQuiz("host", testQuestions(2))

	room.NextQuestion("host")

	if room.Phase() != domain.PhaseQuestion {
		t.Fatalf("expected question phase, got %s", room.Phase())
	}
	started := sender.byType(EventQuestionStarted)
	if len(started) != 2 { // host + one participant
		t.Fatalf("expected 2 question-started deliveries, got %d", len(started))
	}
	payload := started[0].payload.(QuestionStartedPayload)
	if payload.Index != 0 || payload.Total != 2 || len(payload.Options) != 4 {
		t.Fatalf("unexpected question payload: %+v", payload)
	}
	if payload.DeadlineEpochM <= 0 {
		t.Fatalf("expected advisory deadline, got %d", payload.DeadlineEpochM)
	}
}

func TestNextQuestionIgnoredForNonHost(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")
	room.LoadQuiz("host", testQuestions(1))

	room.NextQuestion("c1")

	if len(sender.byType(EventQuestionStarted)) != 0 {
		t.Fatalf("participant must not be able to advance the question")
	}
	if room.Phase() != domain.PhaseLobby {
		t.Fatalf("expected lobby, got %s", room.Phase())
	}
}

func TestSubmitAnswerFirstWins(t *testing.T) {
	room, sender, clock, _ := newTestRoom(t)
	room.Join("c1", "Alice")
	room.Join("c2", "Bob")
	room.LoadQuiz("host", testQuestions(1))
	room.NextQuestion("host")

	clock.Advance(2 * time.Second)
	room.SubmitAnswer("c1", 1)
	clock.Advance(2 * time.Second)
	room.SubmitAnswer("c1", 0) // dropped: already answered
	room.SubmitAnswer("ghost", 1)

	room.Reveal("host")

	tally, ok := sender.lastTo("host", EventOptionTally)
	if !ok {
		t.Fatalf("expected option tally for host")
	}
	counts := tally.payload.(OptionTallyPayload).Counts
	if counts != [4]int{0, 1, 0, 0} {
		t.Fatalf("expected a single vote on option 1, got %v", counts)
	}
}

func TestAutoRevealWhenAllAnswered(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	for _, c := range []string{"c1", "c2", "c3"} {
		room.Join(c, c)
	}
	room.LoadQuiz("host", testQuestions(1))
	room.NextQuestion("host")

	room.SubmitAnswer("c1", 1)
	room.SubmitAnswer("c2", 0)
	if room.Phase() != domain.PhaseQuestion {
		t.Fatalf("reveal must not fire before everyone answered")
	}
	room.SubmitAnswer("c3", 2)

	if room.Phase() != domain.PhaseReveal {
		t.Fatalf("expected auto-reveal after last answer, got %s", room.Phase())
	}
	if len(sender.byType(EventRevealResult)) == 0 {
		t.Fatalf("expected reveal-result broadcast")
	}
}

func TestAnswersRejectedAfterReveal(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")
	room.Join("c2", "Bob")
	room.LoadQuiz("host", testQuestions(1))
	room.NextQuestion("host")

	room.SubmitAnswer("c1", 1)
	room.Reveal("host")
	room.SubmitAnswer("c2", 1) // too late

	tally, _ := sender.lastTo("host", EventOptionTally)
	if counts := tally.payload.(OptionTallyPayload).Counts; counts[1] != 1 {
		t.Fatalf("late answer must not count, got %v", counts)
	}
}

func TestRevealScoresAndHistory(t *testing.T) {
	room, sender, clock, saved := newTestRoom(t)
	room.Join("c1", "Alice")
	room.Join("c2", "Bob")
	room.LoadQuiz("host", testQuestions(1))
	room.NextQuestion("host")

	clock.Advance(10 * time.Second)
	room.SubmitAnswer("c1", 1) // correct at half time -> 600
	room.SubmitAnswer("c2", 3) // wrong -> 0 (auto-reveal fires here)

	reveal, ok := sender.lastTo("c1", EventRevealResult)
	if !ok {
		t.Fatalf("expected reveal-result")
	}
	payload := reveal.payload.(RevealResultPayload)
	if payload.CorrectIndex != 1 {
		t.Fatalf("expected correct index 1, got %d", payload.CorrectIndex)
	}
	if len(payload.Leaderboard) != 2 || payload.Leaderboard[0].Name != "Alice" || payload.Leaderboard[0].Score != 600 {
		t.Fatalf("expected Alice leading with 600, got %+v", payload.Leaderboard)
	}

	snap := <-saved
	if len(snap.History) != 1 {
		t.Fatalf("expected one history entry, got %d", len(snap.History))
	}
	entry := snap.History[0]
	if entry.Index != 0 || entry.CorrectIndex != 1 || len(entry.PerPlayer) != 2 {
		t.Fatalf("unexpected history entry: %+v", entry)
	}
	if entry.PerPlayer[0].Name != "Alice" || entry.PerPlayer[0].Earned != 600 || entry.PerPlayer[0].TimeMs != 10000 {
		t.Fatalf("unexpected per-player result: %+v", entry.PerPlayer[0])
	}
}

func TestRevealIgnoredOutsideQuestionPhase(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")

	room.Reveal("host")

	if len(sender.byType(EventRevealResult)) != 0 {
		t.Fatalf("reveal in lobby must be a no-op")
	}
}

func TestGameOverAfterLastQuestion(t *testing.T) {
	room, sender, _, saved := newTestRoom(t)
	room.Join("c1", "Alice")
	room.LoadQuiz("host", testQuestions(1))

	room.NextQuestion("host")
	room.SubmitAnswer("c1", 1)
	<-saved // reveal autosave

	room.NextQuestion("host")

	if room.Phase() != domain.PhaseGameOver {
		t.Fatalf("expected gameover, got %s", room.Phase())
	}
	if len(sender.byType(EventGameOver)) == 0 {
		t.Fatalf("expected game-over broadcast")
	}
	<-saved // gameover autosave

	before := len(sender.byType(EventQuestionStarted))
	room.NextQuestion("host")
	if len(sender.byType(EventQuestionStarted)) != before {
		t.Fatalf("no question may start after gameover")
	}
}

func TestDisconnectHostEndsSession(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")

	if wasHost := room.Disconnect("host"); !wasHost {
		t.Fatalf("expected host disconnect to be reported")
	}
	if room.Phase() != domain.PhaseEnded {
		t.Fatalf("expected ended phase, got %s", room.Phase())
	}
	if len(sender.byType(EventSessionEnded)) == 0 {
		t.Fatalf("expected session-ended broadcast")
	}
}

func TestDisconnectParticipantUpdatesRoster(t *testing.T) {
	room, sender, _, _ := newTestRoom(t)
	room.Join("c1", "Alice")
	room.Join("c2", "Bob")

	if wasHost := room.Disconnect("c1"); wasHost {
		t.Fatalf("participant disconnect must not be treated as host")
	}
	status, ok := sender.lastTo("host", EventStatus)
	if !ok {
		t.Fatalf("expected roster status for host")
	}
	if status.payload.(StatusPayload).Totals.Joined != 1 {
		t.Fatalf("expected one remaining participant, got %+v", status.payload)
	}
}

func TestAttachHostOnlyWhenVacant(t *testing.T) {
	sender := &fakeSender{}
	room := newRoomWithClock("654321", sender, nil, time.Now)

	room.AttachHost("h1")
	room.AttachHost("h2")

	room.LoadQuiz("h2", testQuestions(1))
	room.NextQuestion("h2")
	if len(sender.byType(EventQuestionStarted)) != 0 {
		t.Fatalf("second attach must not take over the host seat")
	}
	room.LoadQuiz("h1", testQuestions(1))
	room.NextQuestion("h1")
	if len(sender.byType(EventQuestionStarted)) == 0 {
		t.Fatalf("first attached host must control the room")
	}
}
