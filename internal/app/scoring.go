package app

import (
	"math"
	"time"

	"trivia-room-service/internal/domain"
)

// Score computes the points awarded for one answer. It is pure and
// stateless; accumulating into the participant's total is the caller's job.
//
// A wrong or missing answer (choice < 0) earns 0. A correct answer earns
// 200..1000 depending on speed: instantaneous answers get the full 1000,
// answers at the deadline get the 200 floor, and the result is rounded
// half-up to the nearest 50.
func Score(q domain.Question, answeredAt, startedAt time.Time, choice int) int {
	if choice < 0 || choice != q.CorrectIndex {
		return 0
	}

	durationMs := float64(q.TimeLimitSec) * 1000
	elapsed := float64(answeredAt.Sub(startedAt).Milliseconds())
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > durationMs {
		elapsed = durationMs
	}

	speed := 1 - elapsed/durationMs
	raw := 200 + 800*speed
	return int(math.Floor(raw/50+0.5)) * 50
}
