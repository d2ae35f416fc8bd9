package app

import (
	"time"

	"live-quiz-service/internal/domain"
)

type participantState struct {
	domain.Participant
	seq     int
	answers map[string]domain.AnswerRecord
	// submitted counts answers the participant actually sent, excluding synthesized ones.
	submitted int
}

// participantRegistry is the per-game participant set. It is not safe for concurrent use;
// the owning Session serializes every call.
type participantRegistry struct {
	gameCode string
	avatars  AvatarProvider
	byID     map[string]*participantState
	byName   map[string]*participantState
	ordered  []*participantState
}

func newParticipantRegistry(gameCode string, avatars AvatarProvider) *participantRegistry {
	return &participantRegistry{
		gameCode: gameCode,
		avatars:  avatars,
		byID:     make(map[string]*participantState),
		byName:   make(map[string]*participantState),
	}
}

func (r *participantRegistry) join(id, name string, now time.Time) (domain.Participant, error) {
	if _, taken := r.byName[name]; taken {
		return domain.Participant{}, domain.ErrNameTaken
	}
	p := &participantState{
		Participant: domain.Participant{
			ID:         id,
			GameCode:   r.gameCode,
			Name:       name,
			AvatarURL:  r.avatars.Generate(avatarSeed(r.gameCode, name)),
			CheatFlags: make(map[domain.CheatType]int),
			JoinedAt:   now,
		},
		seq:     len(r.ordered),
		answers: make(map[string]domain.AnswerRecord),
	}
	r.byID[id] = p
	r.byName[name] = p
	r.ordered = append(r.ordered, p)
	return p.Participant.Clone(), nil
}

func (r *participantRegistry) get(id string) (*participantState, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *participantRegistry) count() int {
	return len(r.ordered)
}

func (r *participantRegistry) hasAnswered(id, questionID string) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	_, answered := p.answers[questionID]
	return answered
}

// recordAnswer stores rec and adds its score. A second record for the same question is
// rejected and leaves the participant untouched.
func (r *participantRegistry) recordAnswer(rec domain.AnswerRecord) (domain.Participant, error) {
	p, ok := r.byID[rec.ParticipantID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if _, dup := p.answers[rec.QuestionID]; dup {
		return domain.Participant{}, domain.ErrAlreadyAnswered
	}
	p.answers[rec.QuestionID] = rec
	if !rec.AutoSubmitted {
		p.submitted++
	}
	p.TotalScore += rec.ScoreAwarded
	return p.Participant.Clone(), nil
}

// applyCheatPenalty counts the flag and deducts the penalty floored at zero, returning
// the updated participant and the points actually removed.
func (r *participantRegistry) applyCheatPenalty(id string, t domain.CheatType, penalty int) (domain.Participant, int, error) {
	p, ok := r.byID[id]
	if !ok {
		return domain.Participant{}, 0, domain.ErrParticipantNotFound
	}
	p.CheatFlags[t]++
	var applied int
	p.TotalScore, applied = deduct(p.TotalScore, penalty)
	return p.Participant.Clone(), applied, nil
}

// unanswered lists participants without a record for questionID, in join order.
func (r *participantRegistry) unanswered(questionID string) []*participantState {
	var missing []*participantState
	for _, p := range r.ordered {
		if _, ok := p.answers[questionID]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func (r *participantRegistry) allAnswered(questionID string) bool {
	return len(r.ordered) > 0 && len(r.unanswered(questionID)) == 0
}

// list returns copies of every participant ordered by join time.
func (r *participantRegistry) list() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.ordered))
	for _, p := range r.ordered {
		out = append(out, p.Participant.Clone())
	}
	return out
}

func (r *participantRegistry) standings() []Standing {
	out := make([]Standing, 0, len(r.ordered))
	for _, p := range r.ordered {
		out = append(out, Standing{
			Participant: p.Participant.Clone(),
			AnswerCount: p.submitted,
			seq:         p.seq,
		})
	}
	return out
}

func (r *participantRegistry) answers() []domain.AnswerRecord {
	var out []domain.AnswerRecord
	for _, p := range r.ordered {
		for _, rec := range p.answers {
			out = append(out, rec)
		}
	}
	return out
}
