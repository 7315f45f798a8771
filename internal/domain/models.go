package domain

// Phase is the stage a room session is in.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseReveal   Phase = "reveal"
	PhaseGameOver Phase = "gameover"
	PhaseEnded    Phase = "ended"
)

// OptionCount is fixed: every question carries exactly four options.
const OptionCount = 4

// DefaultTimeLimitSec is applied when a question omits its time limit
// or supplies a non-positive one.
const DefaultTimeLimitSec = 20

// Question is a validated, normalized quiz question.
type Question struct {
	Text         string              `json:"question"`
	Options      [OptionCount]string `json:"options"`
	CorrectIndex int                 `json:"correctIndex"`
	TimeLimitSec int                 `json:"timeLimitSec"`
	Explanation  string              `json:"explanation,omitempty"`
}

// QuestionInput is an unvalidated question as received from hosts or the
// quiz catalog. Run it through ValidateQuestions before use.
type QuestionInput struct {
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	TimeLimitSec int      `json:"timeLimitSec"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuizSet is a named collection of questions stored in the catalog.
type QuizSet struct {
	ID        string          `json:"id"`
	Title     string          `json:"title,omitempty"`
	Questions []QuestionInput `json:"questions"`
}

// LeaderboardEntry pairs a display name with a cumulative score.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// PlayerResult captures one participant's outcome for a revealed question.
type PlayerResult struct {
	Name    string `json:"name"`
	Correct bool   `json:"correct"`
	Score   int    `json:"score"`
	TimeMs  int64  `json:"timeMs"`
	Earned  int    `json:"earned"`
}

// HistoryEntry is the immutable record appended at each reveal.
type HistoryEntry struct {
	Index        int            `json:"index"`
	Question     string         `json:"question"`
	CorrectIndex int            `json:"correctIndex"`
	Explanation  string         `json:"explanation,omitempty"`
	PerPlayer    []PlayerResult `json:"perPlayer"`
}

// Snapshot is the durable, connection-free projection of a session. It
// never carries live connection identifiers, so it is safe to persist and
// is only ever used to reconstruct scores-by-name and resume position.
type Snapshot struct {
	PIN          string             `json:"pin"`
	CurrentIndex int                `json:"currentIndex"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	History      []HistoryEntry     `json:"history"`
	Timestamp    int64              `json:"timestamp"`
}

// StoreHealth reports snapshot-store reachability. Ping never fails with
// an error; problems are captured here instead.
type StoreHealth struct {
	OK    bool   `json:"ok"`
	Mode  string `json:"mode"`
	Error string `json:"error,omitempty"`
}
