package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-room-service/internal/domain"
)

type stubLoader struct {
	loads atomic.Int32
	quiz  domain.QuizSet
}

func (l *stubLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizSet, error) {
	l.loads.Add(1)
	if quizID != l.quiz.ID {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}
	return l.quiz, nil
}

func TestQuizCatalogCachesInRedis(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &stubLoader{quiz: domain.QuizSet{
		ID: "general-1",
		Questions: []domain.QuestionInput{
			{Text: "q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2},
		},
	}}
	catalog := NewQuizCatalog(client, loader, time.Minute)

	for i := 0; i < 3; i++ {
		quiz, err := catalog.GetQuiz(ctx, "general-1")
		if err != nil {
			t.Fatalf("get quiz: %v", err)
		}
		if len(quiz.Questions) != 1 || quiz.Questions[0].CorrectIndex != 2 {
			t.Fatalf("unexpected quiz: %+v", quiz)
		}
	}
	if got := loader.loads.Load(); got != 1 {
		t.Fatalf("expected a single backing load, got %d", got)
	}
	if !mr.Exists("quiz:catalog:general-1") {
		t.Fatalf("expected cached quiz key in redis")
	}

	mr.FastForward(2 * time.Minute)
	if _, err := catalog.GetQuiz(ctx, "general-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if got := loader.loads.Load(); got != 2 {
		t.Fatalf("expected reload after ttl, got %d loads", got)
	}
}
