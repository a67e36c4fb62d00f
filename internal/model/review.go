package model

import "time"

// SuggestionType names the rule that produced a break suggestion.
type SuggestionType string

const (
	SuggestionTimeBased         SuggestionType = "time_based"
	SuggestionPatternBased      SuggestionType = "pattern_based"
	SuggestionProductivityBased SuggestionType = "productivity_based"
)

// BreakSuggestion is transient; it lives until accepted, dismissed or snoozed.
type BreakSuggestion struct {
	Type                   SuggestionType `json:"type"`
	Reason                 string         `json:"reason"`
	SuggestedDuration      int            `json:"suggestedDuration"`
	Confidence             float64        `json:"confidence"`
	SessionsSinceLastBreak int            `json:"sessionsSinceLastBreak"`
	TotalWorkTime          int            `json:"totalWorkTime"`
}

// PromptType identifies a review prompt.
type PromptType string

const (
	PromptDaily      PromptType = "daily"
	PromptWeekly     PromptType = "weekly"
	PromptSessionEnd PromptType = "session_end"
)

// QuestionType identifies how a review question is answered.
type QuestionType string

const (
	QuestionRating         QuestionType = "rating"
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionYesNo          QuestionType = "yes_no"
)

// ReviewQuestion is one entry of a review prompt.
type ReviewQuestion struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"`
}

// ReviewPrompt is a transient reflection prompt.
type ReviewPrompt struct {
	Type      PromptType       `json:"type"`
	Title     string           `json:"title"`
	Questions []ReviewQuestion `json:"questions"`
}

// ReviewResponse is submitted once and then forwarded to storage.
type ReviewResponse struct {
	PromptType  PromptType        `json:"promptType"`
	Answers     map[string]string `json:"answers"`
	CompletedAt time.Time         `json:"completedAt"`
}
