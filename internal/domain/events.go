package domain

import "time"

// EventType names a realtime notification.
type EventType string

const (
	EventParticipantJoined EventType = "PARTICIPANT_JOINED"
	EventGameStarted       EventType = "GAME_STARTED"
	EventQuestionAdvanced  EventType = "QUESTION_ADVANCED"
	EventAnswerSubmitted   EventType = "ANSWER_SUBMITTED"
	EventCheatFlagged      EventType = "CHEAT_FLAGGED"
	EventGameCompleted     EventType = "GAME_COMPLETED"
	// EventSnapshot is sent to a connection right after it subscribes.
	EventSnapshot EventType = "SNAPSHOT"
)

// Room is a broadcast group scoped to one game code.
type Room string

const (
	RoomParticipants  Room = "participants"
	RoomOrganizer     Room = "organizer"
	RoomPublicViewers Room = "publicViewers"
)

// AllRooms lists every room of a game.
var AllRooms = []Room{RoomParticipants, RoomOrganizer, RoomPublicViewers}

// ParseRoom maps a subscription role onto its room.
func ParseRoom(role string) (Room, bool) {
	switch Room(role) {
	case RoomParticipants, RoomOrganizer, RoomPublicViewers:
		return Room(role), true
	}
	return "", false
}

// Event is one committed state change. Seq increases per game in commit order, so a
// client can discard anything older than the state it already holds.
type Event struct {
	GameCode string    `json:"gameCode"`
	Type     EventType `json:"type"`
	Seq      uint64    `json:"seq"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload"`
	Rooms    []Room    `json:"-"`
}

// ParticipantJoinedPayload announces a new player.
type ParticipantJoinedPayload struct {
	Participant      LeaderboardEntry `json:"participant"`
	ParticipantCount int              `json:"participantCount"`
}

// GameStartedPayload carries the first question (without its answer).
type GameStartedPayload struct {
	Game            Game          `json:"game"`
	CurrentQuestion *QuestionView `json:"currentQuestion"`
}

// QuestionAdvancedPayload carries the next question, or none when the game just ended.
type QuestionAdvancedPayload struct {
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	CurrentQuestion      *QuestionView `json:"currentQuestion,omitempty"`
	QuestionDeadline     *time.Time    `json:"questionDeadline,omitempty"`
	Reason               string        `json:"reason"`
	Leaderboard          Leaderboard   `json:"leaderboard"`
}

// AnswerSubmittedPayload never includes the submitted answer text.
type AnswerSubmittedPayload struct {
	ParticipantID string      `json:"participantId"`
	Name          string      `json:"name"`
	QuestionID    string      `json:"questionId"`
	ScoreAwarded  int         `json:"scoreAwarded"`
	TotalScore    int         `json:"totalScore"`
	Leaderboard   Leaderboard `json:"leaderboard"`
}

// CheatFlaggedPayload is delivered to the organizer only.
type CheatFlaggedPayload struct {
	ParticipantID  string    `json:"participantId"`
	Name           string    `json:"name"`
	Type           CheatType `json:"type"`
	Count          int       `json:"count"`
	PenaltyApplied int       `json:"penaltyApplied"`
	TotalScore     int       `json:"totalScore"`
}

// GameCompletedPayload carries the final standings.
type GameCompletedPayload struct {
	Game        Game        `json:"game"`
	Leaderboard Leaderboard `json:"leaderboard"`
}
