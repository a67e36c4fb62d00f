package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/focustimer/internal/model"
)

// reviewForm collects answers for one review prompt, one text input per question.
type reviewForm struct {
	prompt model.ReviewPrompt
	inputs []textinput.Model
	index  int
	err    string
}

func newReviewForm(p model.ReviewPrompt) *reviewForm {
	f := &reviewForm{prompt: p, inputs: make([]textinput.Model, len(p.Questions))}
	for i, q := range p.Questions {
		input := textinput.New()
		input.Prompt = "> "
		input.CharLimit = 500
		input.Placeholder = placeholderFor(q)
		input.Cursor.SetMode(cursor.CursorBlink)
		f.inputs[i] = input
	}
	return f
}

func placeholderFor(q model.ReviewQuestion) string {
	switch q.Type {
	case model.QuestionRating:
		return "1-5"
	case model.QuestionYesNo, model.QuestionMultipleChoice:
		return strings.Join(q.Options, "/")
	}
	if q.Required {
		return "required"
	}
	return "optional"
}

func (f *reviewForm) focus(idx int) tea.Cmd {
	count := len(f.inputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	f.index = idx
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.index {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *reviewForm) update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.index], cmd = f.inputs[f.index].Update(msg)
	return cmd
}

func (f *reviewForm) setWidth(width int) {
	for i := range f.inputs {
		f.inputs[i].Width = max(10, width-4)
	}
}

// answers returns trimmed non-empty answers keyed by question id.
func (f *reviewForm) answers() map[string]string {
	out := make(map[string]string, len(f.inputs))
	for i, q := range f.prompt.Questions {
		if v := strings.TrimSpace(f.inputs[i].Value()); v != "" {
			out[q.ID] = v
		}
	}
	return out
}

func (f *reviewForm) view(width int) string {
	lines := []string{titleStyle.Render(f.prompt.Title), ""}
	for i, q := range f.prompt.Questions {
		label := q.Question
		if q.Required {
			label += " *"
		}
		style := mutedStyle
		if i == f.index {
			style = accentStyle
		}
		for _, l := range wrapText(label, width) {
			lines = append(lines, style.Render(l))
		}
		lines = append(lines, f.inputs[i].View(), "")
	}
	if f.err != "" {
		for _, l := range wrapText(f.err, width) {
			lines = append(lines, errorStyle.Render(l))
		}
	}
	return strings.Join(lines, "\n")
}
