package domain

// EntryKind identifies which committed mutation a journal entry records.
type EntryKind string

const (
	EntryGameCreated      EntryKind = "game_created"
	EntryGameUpdated      EntryKind = "game_updated"
	EntryQuestionAdded    EntryKind = "question_added"
	EntryParticipantAdded EntryKind = "participant_added"
	EntryScoreChanged     EntryKind = "score_changed"
	EntryAnswerRecorded   EntryKind = "answer_recorded"
	EntryCheatRecorded    EntryKind = "cheat_recorded"
)

// JournalEntry is a committed mutation in the order it was applied to its game.
// Exactly the field matching Kind is set; the score change entries carry Participant.
type JournalEntry struct {
	Kind        EntryKind
	Game        *Game
	Question    *Question
	Participant *Participant
	Answer      *AnswerRecord
	Cheat       *CheatEvent
}
