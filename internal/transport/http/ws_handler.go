package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/realtime"
)

type wsAnswerPayload struct {
	QuestionID string         `json:"questionId"`
	Answer     flexibleAnswer `json:"answer"`
	UsedHint   bool           `json:"usedHint"`
}

type wsCheatPayload struct {
	Type    domain.CheatType `json:"type"`
	Details map[string]any   `json:"details"`
}

// serveWS subscribes a connection to one room of a game. Query parameters: code, role
// (participants, organizer or publicViewers), participantId for participants and token
// for organizers.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := gameCode(q.Get("code"))
	room, ok := domain.ParseRoom(q.Get("role"))
	if code == "" || !ok {
		s.writeError(w, r, domain.Validationf("code and a valid role are required"))
		return
	}
	// Only live games have a room; archived games are read over REST.
	live, err := s.service.State(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var participantID string
	switch room {
	case domain.RoomOrganizer:
		if organizerFrom(r.Context()) != live.Game.OrganizerID {
			s.writeError(w, r, domain.ErrNotOwner)
			return
		}
	case domain.RoomParticipants:
		participantID = q.Get("participantId")
		if _, err := s.service.Participant(r.Context(), code, participantID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	sub := s.hub.Subscribe(code, room, func() (domain.Event, bool) {
		state, err := s.service.State(r.Context(), code)
		if err != nil {
			return domain.Event{}, false
		}
		return domain.Event{
			GameCode: code,
			Type:     domain.EventSnapshot,
			Seq:      state.Seq,
			At:       state.Leaderboard.UpdatedAt,
			Payload:  state,
		}, true
	})

	log := s.log.WithFields(logrus.Fields{"code": code, "role": room, "participant": participantID})
	client := realtime.NewClient(conn, sub, s.inboundHandler(room, participantID), realtime.ClientOptions{
		RatePerSecond: s.opts.WSRate,
		Burst:         s.opts.WSBurst,
		Logger:        log,
	})
	log.Debug("ws connected")
	client.Run(context.WithoutCancel(r.Context()))
	log.Debug("ws disconnected")
}

func (s *Server) inboundHandler(room domain.Room, participantID string) realtime.InboundHandler {
	return func(ctx context.Context, msg realtime.Inbound) *realtime.Message {
		if room != domain.RoomParticipants {
			return realtime.ErrorMessage(domain.Validationf("%s connections are receive-only", room))
		}
		switch msg.Type {
		case "answer":
			var p wsAnswerPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return realtime.ErrorMessage(domain.Validationf("malformed answer: %v", err))
			}
			res, err := s.service.SubmitAnswer(ctx, domain.AnswerSubmission{
				ParticipantID: participantID,
				QuestionID:    p.QuestionID,
				Answer:        string(p.Answer),
				UsedHint:      p.UsedHint,
			})
			if err != nil {
				return realtime.ErrorMessage(err)
			}
			return &realtime.Message{Type: "answerResult", Payload: res}
		case "cheat":
			var p wsCheatPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return realtime.ErrorMessage(domain.Validationf("malformed cheat report: %v", err))
			}
			if err := s.service.ReportCheat(ctx, domain.CheatReport{
				ParticipantID: participantID,
				Type:          p.Type,
				Details:       p.Details,
			}); err != nil {
				return realtime.ErrorMessage(err)
			}
			return nil
		}
		return realtime.ErrorMessage(domain.Validationf("unknown message type %q", msg.Type))
	}
}
