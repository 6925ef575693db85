package memory

import (
	"sort"
	"sync"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
)

// PresenceRegistry is the in-memory room -> connection -> participant map
// for one room kind. Rooms exist only while they have participants.
type PresenceRegistry struct {
	kind  domain.RoomKind
	rooms map[domain.RoomID]map[domain.ConnectionID]domain.Participant
	mu    sync.RWMutex
}

func NewPresenceRegistry(kind domain.RoomKind) *PresenceRegistry {
	return &PresenceRegistry{
		kind:  kind,
		rooms: make(map[domain.RoomID]map[domain.ConnectionID]domain.Participant),
	}
}

var _ ports.PresenceRegistry = (*PresenceRegistry)(nil)

func (r *PresenceRegistry) Kind() domain.RoomKind {
	return r.kind
}

// Join inserts or replaces the record for participant.ConnectionID in room.
// A connection holds at most one room of this kind, so any other room it
// was in is left in the same step and returned as a departure.
func (r *PresenceRegistry) Join(room domain.RoomID, participant domain.Participant) []domain.Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var departures []domain.Departure
	for other, members := range r.rooms {
		if other == room {
			continue
		}
		if _, exists := members[participant.ConnectionID]; !exists {
			continue
		}
		previous, _ := r.removeLocked(other, participant.ConnectionID)
		departures = append(departures, domain.Departure{Room: other, Participant: previous})
	}

	members, exists := r.rooms[room]
	if !exists {
		members = make(map[domain.ConnectionID]domain.Participant)
		r.rooms[room] = members
	}
	members[participant.ConnectionID] = participant
	return departures
}

// Leave removes connID from room. The second return value is false when the
// connection was not present, which is not an error.
func (r *PresenceRegistry) Leave(room domain.RoomID, connID domain.ConnectionID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(room, connID)
}

func (r *PresenceRegistry) removeLocked(room domain.RoomID, connID domain.ConnectionID) (domain.Participant, bool) {
	members, exists := r.rooms[room]
	if !exists {
		return domain.Participant{}, false
	}
	participant, exists := members[connID]
	if !exists {
		return domain.Participant{}, false
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return participant, true
}

// ListParticipants returns a snapshot ordered by join time.
func (r *PresenceRegistry) ListParticipants(room domain.RoomID) []domain.Participant {
	r.mu.RLock()
	members := r.rooms[room]
	participants := make([]domain.Participant, 0, len(members))
	for _, p := range members {
		participants = append(participants, p)
	}
	r.mu.RUnlock()

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].ConnectionID < participants[j].ConnectionID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants
}

func (r *PresenceRegistry) Has(room domain.RoomID, connID domain.ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.rooms[room][connID]
	return exists
}

// RemoveConnectionEverywhere drops connID from every room of this kind and
// reports what was removed.
func (r *PresenceRegistry) RemoveConnectionEverywhere(connID domain.ConnectionID) []domain.Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var departures []domain.Departure
	for room, members := range r.rooms {
		if _, exists := members[connID]; !exists {
			continue
		}
		participant, _ := r.removeLocked(room, connID)
		departures = append(departures, domain.Departure{Room: room, Participant: participant})
	}

	sort.Slice(departures, func(i, j int) bool {
		return departures[i].Room < departures[j].Room
	})
	return departures
}

// DeleteRoom discards the whole room and returns how many participants it held.
func (r *PresenceRegistry) DeleteRoom(room domain.RoomID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.rooms[room])
	delete(r.rooms, room)
	return n
}

func (r *PresenceRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
