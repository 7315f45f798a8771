package domain

import (
	"fmt"
	"strings"
)

// RejectedQuestion explains why a submitted question was not usable.
type RejectedQuestion struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ValidateQuestions normalizes a batch of raw questions, splitting it into
// the usable subset and a rejection per dropped entry. Callers decide what
// to do with rejections; the reference behavior is to drop them silently.
func ValidateQuestions(inputs []QuestionInput) ([]Question, []RejectedQuestion) {
	valid := make([]Question, 0, len(inputs))
	var rejected []RejectedQuestion

	for i, in := range inputs {
		q, reason := normalizeQuestion(in)
		if reason != "" {
			rejected = append(rejected, RejectedQuestion{Index: i, Reason: reason})
			continue
		}
		valid = append(valid, q)
	}
	return valid, rejected
}

func normalizeQuestion(in QuestionInput) (Question, string) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Question{}, "question text is empty"
	}
	if len(in.Options) != OptionCount {
		return Question{}, fmt.Sprintf("expected %d options, got %d", OptionCount, len(in.Options))
	}
	var options [OptionCount]string
	for i, opt := range in.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return Question{}, fmt.Sprintf("option %d is empty", i)
		}
		options[i] = opt
	}
	if in.CorrectIndex < 0 || in.CorrectIndex >= OptionCount {
		return Question{}, fmt.Sprintf("correct index %d out of range", in.CorrectIndex)
	}

	limit := in.TimeLimitSec
	if limit <= 0 {
		limit = DefaultTimeLimitSec
	}

	return Question{
		Text:         text,
		Options:      options,
		CorrectIndex: in.CorrectIndex,
		TimeLimitSec: limit,
		Explanation:  strings.TrimSpace(in.Explanation),
	}, ""
}
