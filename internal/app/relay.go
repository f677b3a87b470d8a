package app

import (
	"encoding/json"

	"github.com/dkeye/Colla/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay forwards peer negotiation messages between two participants.
// Payloads are passed through as raw JSON and never inspected. A target
// that cannot be resolved drops the message without telling the caller.
type Relay struct {
	Registry   *Registry
	Dispatcher *Dispatcher
}

func (r *Relay) RelayOffer(target, caller domain.ParticipantID, sdp json.RawMessage) bool {
	return r.forward(target, SessionDescriptionMsg{Type: TypeVideoOffer, Caller: caller, SDP: sdp})
}

func (r *Relay) RelayAnswer(target, caller domain.ParticipantID, sdp json.RawMessage) bool {
	return r.forward(target, SessionDescriptionMsg{Type: TypeVideoAnswer, Caller: caller, SDP: sdp})
}

func (r *Relay) RelayCandidate(target, from domain.ParticipantID, candidate json.RawMessage) bool {
	return r.forward(target, CandidateMsg{Type: TypeICECandidate, From: from, Candidate: candidate})
}

func (r *Relay) forward(target domain.ParticipantID, msg any) bool {
	sid, ok := r.Registry.LookupHandle(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Msg("target not connected, dropped")
		return false
	}
	return r.Dispatcher.SendTo(sid, msg)
}

