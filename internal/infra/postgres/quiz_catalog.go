package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-room-service/internal/domain"
)

// QuizCatalog loads quiz set JSONB from postgres.
type QuizCatalog struct {
	pool *pgxpool.Pool
}

func NewQuizCatalog(pool *pgxpool.Pool) *QuizCatalog {
	return &QuizCatalog{pool: pool}
}

func (c *QuizCatalog) LoadQuiz(ctx context.Context, quizID string) (domain.QuizSet, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx, `SELECT data FROM quiz_sets WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("load quiz set: %w", err)
	}
	var quiz domain.QuizSet
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.QuizSet{}, fmt.Errorf("unmarshal quiz set: %w", err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}
