package app

import "trivia-room-service/internal/domain"

// Sender delivers a named event to a single connection. The websocket hub
// implements it; rooms never touch sockets directly.
type Sender interface {
	Send(connID, event string, payload any)
}

// Outbound event names.
const (
	EventSessionCreated  = "session-created"
	EventJoined          = "joined"
	EventQuestionStarted = "question-started"
	EventStatus          = "status"
	EventRevealResult    = "reveal-result"
	EventOptionTally     = "option-tally"
	EventGameOver        = "game-over"
	EventSessionEnded    = "session-ended"
	EventError           = "error"
)

// Totals counts joined participants and how many have answered the
// current question.
type Totals struct {
	Joined   int `json:"joined"`
	Answered int `json:"answered"`
}

// SessionCreatedPayload acknowledges session creation to the host.
type SessionCreatedPayload struct {
	PIN string `json:"pin"`
}

// JoinedPayload acknowledges a participant join, including any score
// carried over from a resumed session.
type JoinedPayload struct {
	PIN   string `json:"pin"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// QuestionStartedPayload announces a new question. The correct index is
// deliberately withheld.
type QuestionStartedPayload struct {
	Index          int      `json:"index"`
	Total          int      `json:"total"`
	Question       string   `json:"questionText"`
	Options        []string `json:"options"`
	TimeLimitSec   int      `json:"timeLimitSec"`
	DeadlineEpochM int64    `json:"deadlineEpochMs"`
	Totals         Totals   `json:"totals"`
}

// StatusPayload is the host-only progress view.
type StatusPayload struct {
	Totals         Totals `json:"totals"`
	Accepting      bool   `json:"accepting"`
	DeadlineEpochM int64  `json:"deadlineEpochMs"`
}

// RevealResultPayload carries the outcome of a revealed question to the
// whole session.
type RevealResultPayload struct {
	Index        int                       `json:"index"`
	CorrectIndex int                       `json:"correctIndex"`
	Explanation  string                    `json:"explanation,omitempty"`
	Leaderboard  []domain.LeaderboardEntry `json:"leaderboard"`
	Results      []domain.PlayerResult     `json:"perParticipant"`
}

// OptionTallyPayload is the host-only raw answer distribution.
type OptionTallyPayload struct {
	Counts       [domain.OptionCount]int `json:"counts"`
	CorrectIndex int                     `json:"correctIndex"`
	Totals       Totals                  `json:"totals"`
}

// GameOverPayload carries the final leaderboard.
type GameOverPayload struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// ErrorPayload carries a user-visible error message.
type ErrorPayload struct {
	Message string `json:"message"`
}
