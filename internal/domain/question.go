package domain

import (
	"encoding/json"
	"strings"
)

// QuestionType names one of the four question shapes.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "MCQ"
	QuestionTrueFalse QuestionType = "TRUE_FALSE"
	QuestionFreeText  QuestionType = "INPUT"
	QuestionScrambled QuestionType = "SCRAMBLED"
)

// QuestionBody is the type-specific part of a question. The set of implementations is closed.
type QuestionBody interface {
	Type() QuestionType
	// CorrectAnswer is the canonical answer text answers are compared against.
	CorrectAnswer() string
	// Choices returns the selectable options, empty for free-answer shapes.
	Choices() []string
	sealed()
}

// MultipleChoice offers a fixed option list; the answer must be one of them.
type MultipleChoice struct {
	Options []string
	Answer  string
}

func (MultipleChoice) Type() QuestionType      { return QuestionMCQ }
func (b MultipleChoice) CorrectAnswer() string { return b.Answer }
func (b MultipleChoice) Choices() []string     { return append([]string(nil), b.Options...) }
func (MultipleChoice) sealed()                 {}

// TrueFalse is answered with "True" or "False".
type TrueFalse struct {
	Answer bool
}

func (TrueFalse) Type() QuestionType { return QuestionTrueFalse }
func (b TrueFalse) CorrectAnswer() string {
	if b.Answer {
		return "True"
	}
	return "False"
}
func (TrueFalse) Choices() []string { return nil }
func (TrueFalse) sealed()           {}

// FreeText is answered by typing the answer.
type FreeText struct {
	Answer string
}

func (FreeText) Type() QuestionType      { return QuestionFreeText }
func (b FreeText) CorrectAnswer() string { return b.Answer }
func (FreeText) Choices() []string       { return nil }
func (FreeText) sealed()                 {}

// Scrambled shows jumbled letters; the participant types the unscrambled word.
type Scrambled struct {
	Answer string
}

func (Scrambled) Type() QuestionType      { return QuestionScrambled }
func (b Scrambled) CorrectAnswer() string { return b.Answer }
func (Scrambled) Choices() []string       { return nil }
func (Scrambled) sealed()                 {}

// Question is one item of a game's ordered question sequence.
type Question struct {
	ID       string
	GameCode string
	Text     string
	Hint     string
	ImageURL string
	Order    int
	Body     QuestionBody
}

// Type is shorthand for q.Body.Type().
func (q Question) Type() QuestionType {
	return q.Body.Type()
}

// QuestionInput is the organizer-supplied description of a new question.
type QuestionInput struct {
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
	Hint          string       `json:"hint"`
	ImageURL      string       `json:"imageUrl"`
	Order         int          `json:"order"`
}

// NewQuestion validates in and builds the matching question variant. ID, GameCode and a
// defaulted Order are filled in by the session that accepts the question.
func NewQuestion(in QuestionInput) (Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Question{}, Validationf("question text is required")
	}
	if in.Order < 0 {
		return Question{}, Validationf("question order must be positive")
	}
	answer := strings.TrimSpace(in.CorrectAnswer)
	if answer == "" {
		return Question{}, Validationf("correct answer is required")
	}
	if in.Type != QuestionMCQ && len(in.Options) > 0 {
		return Question{}, Validationf("options are only allowed for %s questions", QuestionMCQ)
	}

	var body QuestionBody
	switch in.Type {
	case QuestionMCQ:
		if len(in.Options) == 0 {
			return Question{}, Validationf("%s questions need at least one option", QuestionMCQ)
		}
		found := false
		for _, opt := range in.Options {
			if opt == in.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return Question{}, Validationf("correct answer must be one of the options")
		}
		body = MultipleChoice{Options: append([]string(nil), in.Options...), Answer: in.CorrectAnswer}
	case QuestionTrueFalse:
		switch strings.ToLower(answer) {
		case "true":
			body = TrueFalse{Answer: true}
		case "false":
			body = TrueFalse{Answer: false}
		default:
			return Question{}, Validationf("%s answer must be True or False", QuestionTrueFalse)
		}
	case QuestionFreeText:
		body = FreeText{Answer: answer}
	case QuestionScrambled:
		body = Scrambled{Answer: answer}
	default:
		return Question{}, Validationf("unknown question type %q", in.Type)
	}

	return Question{
		Text:     text,
		Hint:     strings.TrimSpace(in.Hint),
		ImageURL: strings.TrimSpace(in.ImageURL),
		Order:    in.Order,
		Body:     body,
	}, nil
}

// QuestionView is the wire form of a question. CorrectAnswer is empty when redacted.
type QuestionView struct {
	ID            string       `json:"id"`
	GameCode      string       `json:"gameCode"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Hint          string       `json:"hint,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Order         int          `json:"order"`
}

// View renders q for the wire, including the correct answer only when withAnswer is set.
func (q Question) View(withAnswer bool) QuestionView {
	v := QuestionView{
		ID:       q.ID,
		GameCode: q.GameCode,
		Type:     q.Body.Type(),
		Text:     q.Text,
		Options:  q.Body.Choices(),
		Hint:     q.Hint,
		ImageURL: q.ImageURL,
		Order:    q.Order,
	}
	if v.Options == nil {
		v.Options = []string{}
	}
	if withAnswer {
		v.CorrectAnswer = q.Body.CorrectAnswer()
	}
	return v
}

// MarshalJSON encodes the full, unredacted question.
func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.View(true))
}
