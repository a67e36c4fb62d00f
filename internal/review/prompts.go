package review

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/verte-zerg/focustimer/internal/model"
)

var ratingOptions = []string{"1", "2", "3", "4", "5"}

// DailyPrompt returns the canned end-of-day questions.
func DailyPrompt() model.ReviewPrompt {
	return model.ReviewPrompt{
		Type:  model.PromptDaily,
		Title: "Daily Review",
		Questions: []model.ReviewQuestion{
			{ID: "productivity", Type: model.QuestionRating, Question: "How productive was your day?", Required: true, Options: ratingOptions},
			{ID: "accomplishments", Type: model.QuestionText, Question: "What did you accomplish today?"},
			{ID: "challenges", Type: model.QuestionText, Question: "What challenges did you face?"},
			{ID: "tomorrow_focus", Type: model.QuestionText, Question: "What will you focus on tomorrow?"},
		},
	}
}

// WeeklyPrompt returns the canned end-of-week questions.
func WeeklyPrompt() model.ReviewPrompt {
	return model.ReviewPrompt{
		Type:  model.PromptWeekly,
		Title: "Weekly Review",
		Questions: []model.ReviewQuestion{
			{ID: "week_rating", Type: model.QuestionRating, Question: "How would you rate this week?", Required: true, Options: ratingOptions},
			{ID: "goals_achieved", Type: model.QuestionYesNo, Question: "Did you achieve your goals this week?", Required: true, Options: []string{"yes", "no"}},
			{ID: "biggest_win", Type: model.QuestionText, Question: "What was your biggest win?"},
			{ID: "improvement_area", Type: model.QuestionText, Question: "What could you improve?"},
			{ID: "next_week_goals", Type: model.QuestionText, Question: "What are your goals for next week?"},
		},
	}
}

// SessionEndPrompt returns the questions shown after a completed session.
func SessionEndPrompt() model.ReviewPrompt {
	return model.ReviewPrompt{
		Type:  model.PromptSessionEnd,
		Title: "Session Complete",
		Questions: []model.ReviewQuestion{
			{ID: "quality", Type: model.QuestionRating, Question: "How focused was this session?", Required: true, Options: ratingOptions},
			{ID: "notes", Type: model.QuestionText, Question: "Any notes?"},
		},
	}
}

// PromptFor returns the canned prompt for t.
func PromptFor(t model.PromptType) (model.ReviewPrompt, bool) {
	switch t {
	case model.PromptDaily:
		return DailyPrompt(), true
	case model.PromptWeekly:
		return WeeklyPrompt(), true
	case model.PromptSessionEnd:
		return SessionEndPrompt(), true
	default:
		return model.ReviewPrompt{}, false
	}
}

// ValidateAnswers checks required questions and constrained answers.
func ValidateAnswers(p model.ReviewPrompt, answers map[string]string) error {
	for _, q := range p.Questions {
		v := strings.TrimSpace(answers[q.ID])
		if v == "" {
			if q.Required {
				return fmt.Errorf("%q is required", q.Question)
			}
			continue
		}
		switch q.Type {
		case model.QuestionRating:
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 5 {
				return fmt.Errorf("%q must be a rating from 1 to 5", q.Question)
			}
		case model.QuestionYesNo, model.QuestionMultipleChoice:
			if !contains(q.Options, strings.ToLower(v)) {
				return fmt.Errorf("%q must be one of %s", q.Question, strings.Join(q.Options, ", "))
			}
		}
	}
	return nil
}

// Rating extracts an integer rating answer.
func Rating(answers map[string]string, id string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(answers[id]))
	if err != nil {
		return nil
	}
	return &n
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
