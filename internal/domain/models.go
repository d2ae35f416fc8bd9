package domain

import "time"

// GameStatus is the lifecycle state of a game session. It only moves forward.
type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusInProgress GameStatus = "in_progress"
	StatusCompleted  GameStatus = "completed"
)

func (s GameStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// CanTransition reports whether moving from s to next keeps the lifecycle monotonic.
func (s GameStatus) CanTransition(next GameStatus) bool {
	return next.rank() == s.rank()+1
}

// CheatType names a reported anti-cheat signal.
type CheatType string

const (
	CheatTabSwitch   CheatType = "TAB_SWITCH"
	CheatDevTools    CheatType = "DEV_TOOLS"
	CheatCopyAttempt CheatType = "COPY_ATTEMPT"
)

// Valid reports whether t is one of the known cheat types.
func (t CheatType) Valid() bool {
	switch t {
	case CheatTabSwitch, CheatDevTools, CheatCopyAttempt:
		return true
	}
	return false
}

// Settings are the per-game scoring knobs, defaulted from service config at creation.
type Settings struct {
	QuestionTimeLimitSeconds int               `json:"questionTimeLimit"`
	HintPenalty              int               `json:"hintPenalty"`
	CheatPenalties           map[CheatType]int `json:"cheatPenalties"`
}

// QuestionTimeLimit returns the per-question countdown as a duration.
func (s Settings) QuestionTimeLimit() time.Duration {
	return time.Duration(s.QuestionTimeLimitSeconds) * time.Second
}

// DefaultSettings mirrors the values the game was designed around.
func DefaultSettings() Settings {
	return Settings{
		QuestionTimeLimitSeconds: 30,
		HintPenalty:              15,
		CheatPenalties: map[CheatType]int{
			CheatTabSwitch:   10,
			CheatDevTools:    15,
			CheatCopyAttempt: 20,
		},
	}
}

// SettingsOverride carries the per-game settings an organizer chose at creation. A nil
// field keeps the service default, so an explicit zero (e.g. no hint penalty) is kept.
type SettingsOverride struct {
	QuestionTimeLimitSeconds *int              `json:"questionTimeLimit,omitempty"`
	HintPenalty              *int              `json:"hintPenalty,omitempty"`
	CheatPenalties           map[CheatType]int `json:"cheatPenalties,omitempty"`
}

// Game is a read-only snapshot of a game session.
type Game struct {
	Code                 string     `json:"code"`
	Title                string     `json:"title"`
	OrganizerID          string     `json:"organizerId"`
	Status               GameStatus `json:"status"`
	QuestionCount        int        `json:"questionCount"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	QuestionDeadline     *time.Time `json:"questionDeadline,omitempty"`
	Settings             Settings   `json:"settings"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
}

// Participant represents one player within a game and their accumulated score.
type Participant struct {
	ID         string            `json:"id"`
	GameCode   string            `json:"gameCode"`
	Name       string            `json:"name"`
	AvatarURL  string            `json:"avatarUrl"`
	TotalScore int               `json:"totalScore"`
	CheatFlags map[CheatType]int `json:"cheatFlags"`
	JoinedAt   time.Time         `json:"joinedAt"`
}

// Clone returns a copy that shares no mutable state with p.
func (p Participant) Clone() Participant {
	flags := make(map[CheatType]int, len(p.CheatFlags))
	for k, v := range p.CheatFlags {
		flags[k] = v
	}
	p.CheatFlags = flags
	return p
}

// AnswerRecord is the single accepted answer of a participant to a question.
type AnswerRecord struct {
	ParticipantID    string    `json:"participantId"`
	QuestionID       string    `json:"questionId"`
	GameCode         string    `json:"gameCode"`
	SubmittedAnswer  string    `json:"submittedAnswer"`
	TimeTakenSeconds float64   `json:"timeTakenSeconds"`
	UsedHint         bool      `json:"usedHint"`
	IsCorrect        bool      `json:"isCorrect"`
	ScoreAwarded     int       `json:"scoreAwarded"`
	AutoSubmitted    bool      `json:"autoSubmitted"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// CheatEvent is one entry of the append-only anti-cheat log.
type CheatEvent struct {
	ID             string         `json:"id"`
	ParticipantID  string         `json:"participantId"`
	GameCode       string         `json:"gameCode"`
	Type           CheatType      `json:"type"`
	Details        map[string]any `json:"details,omitempty"`
	PenaltyApplied int            `json:"penaltyApplied"`
	Timestamp      time.Time      `json:"timestamp"`
}

// AnswerSubmission models the answer signal from clients.
type AnswerSubmission struct {
	ParticipantID string
	QuestionID    string
	Answer        string
	UsedHint      bool
}

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	QuestionID   string `json:"questionId"`
	IsCorrect    bool   `json:"isCorrect"`
	ScoreAwarded int    `json:"scoreAwarded"`
	TotalScore   int    `json:"totalScore"`
}

// CheatReport is an anti-cheat signal raised by a participant's client.
type CheatReport struct {
	ParticipantID string
	Type          CheatType
	Details       map[string]any
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatarUrl"`
	TotalScore    int    `json:"totalScore"`
	AnswerCount   int    `json:"answerCount"`
}

// Leaderboard captures the ordered scoreboard for a game.
type Leaderboard struct {
	GameCode  string             `json:"gameCode"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// GameState is everything a polling client needs to render the current moment of a game.
type GameState struct {
	Game             Game          `json:"game"`
	CurrentQuestion  *QuestionView `json:"currentQuestion,omitempty"`
	SecondsRemaining float64       `json:"secondsRemaining"`
	ParticipantCount int           `json:"participantCount"`
	Leaderboard      Leaderboard   `json:"leaderboard"`
	Seq              uint64        `json:"seq"`
}
