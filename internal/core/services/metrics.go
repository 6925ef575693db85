package services

import (
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
)

type nopMetrics struct{}

func (nopMetrics) RecordParticipantJoined(domain.RoomKind)              {}
func (nopMetrics) RecordParticipantLeft(domain.RoomKind)                {}
func (nopMetrics) RecordSignalRelayed(string)                           {}
func (nopMetrics) RecordSignalRejected(string)                          {}
func (nopMetrics) RecordSessionTransition(string, time.Duration, error) {}
func (nopMetrics) RecordMessageSent(time.Duration, error)               {}

func metricsOrNop(m ports.SignalingMetrics) ports.SignalingMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// withoutConnection filters connID out of a registry snapshot.
func withoutConnection(participants []domain.Participant, connID domain.ConnectionID) []domain.Participant {
	out := participants[:0:0]
	for _, p := range participants {
		if p.ConnectionID != connID {
			out = append(out, p)
		}
	}
	return out
}
