package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"live-quiz-service/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, token, err := s.auth.Login(req.Username, req.Password)
	if errors.Is(err, domain.ErrUnauthorized) {
		unauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizerId": id, "token": token, "username": req.Username})
}

type createGameRequest struct {
	Title    string                  `json:"title"`
	Settings domain.SettingsOverride `json:"settings"`
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	game, err := s.service.CreateGame(r.Context(), organizerFrom(r.Context()), req.Title, req.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"code": game.Code, "status": game.Status, "game": game})
}

func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	games := s.service.ListGames(r.Context(), organizerFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.service.Game(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game": game})
}

func (s *Server) addQuestion(w http.ResponseWriter, r *http.Request) {
	var in domain.QuestionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.service.AddQuestion(r.Context(), chi.URLParam(r, "code"), organizerFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"question": q.View(true)})
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.service.Questions(r.Context(), chi.URLParam(r, "code"), organizerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) startGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.service.StartGame(r.Context(), chi.URLParam(r, "code"), organizerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": game.Status, "game": game})
}

func (s *Server) skipQuestion(w http.ResponseWriter, r *http.Request) {
	game, err := s.service.SkipQuestion(r.Context(), chi.URLParam(r, "code"), organizerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": game.Status, "currentQuestionIndex": game.CurrentQuestionIndex})
}

type joinRequest struct {
	GameCode string `json:"gameCode"`
	Name     string `json:"name"`
}

func (s *Server) joinGame(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.join(w, r, chi.URLParam(r, "code"), req.Name)
}

func (s *Server) joinByBody(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.GameCode == "" {
		s.writeError(w, r, domain.Validationf("gameCode is required"))
		return
	}
	s.join(w, r, req.GameCode, req.Name)
}

func (s *Server) join(w http.ResponseWriter, r *http.Request, code, name string) {
	p, game, err := s.service.JoinGame(r.Context(), code, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"participant": p, "game": game})
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := s.service.Participants(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

type answerRequest struct {
	ParticipantID string         `json:"participantId"`
	QuestionID    string         `json:"questionId"`
	Answer        flexibleAnswer `json:"answer"`
	// TimeTakenSeconds is accepted for compatibility; elapsed time is measured server side.
	TimeTakenSeconds float64 `json:"timeTakenSeconds"`
	UsedHint         bool    `json:"usedHint"`
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.service.SubmitAnswer(r.Context(), domain.AnswerSubmission{
		ParticipantID: req.ParticipantID,
		QuestionID:    req.QuestionID,
		Answer:        string(req.Answer),
		UsedHint:      req.UsedHint,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type cheatRequest struct {
	ParticipantID string           `json:"participantId"`
	Type          domain.CheatType `json:"type"`
	Details       map[string]any   `json:"details"`
}

func (s *Server) reportCheat(w http.ResponseWriter, r *http.Request) {
	var req cheatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.service.ReportCheat(r.Context(), domain.CheatReport{
		ParticipantID: req.ParticipantID,
		Type:          req.Type,
		Details:       req.Details,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.service.Leaderboard(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": lb})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.State(r.Context(), gameCode(chi.URLParam(r, "code")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// StateReader serves pull snapshots, typically through a short-lived cache.
type StateReader interface {
	State(ctx context.Context, code string) (domain.GameState, error)
}
