// Package chat holds the Presence Room Registry and the websocket
// sessions attached to it. Every session lives in exactly one room,
// named after its resolved user id; a user with several open tabs has
// several sessions in the same room and all of them get delivery.
package chat

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/hashing"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultShardCount = 8

// Registry fans events out to rooms. Rooms are spread over shards by
// the consistent ring so unrelated conversations do not contend on one
// lock.
type Registry struct {
	ring   *hashing.Ring
	shards map[string]*shard
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return NewRegistryWithShards(defaultShardCount)
}

func NewRegistryWithShards(count int) *Registry {
	if count < 1 {
		count = 1
	}
	r := &Registry{
		ring:   hashing.NewRing(16),
		shards: make(map[string]*shard, count),
	}
	for i := range count {
		label := "shard-" + strconv.Itoa(i)
		r.ring.Add(label)
		r.shards[label] = &shard{rooms: make(map[string]map[*Session]struct{})}
	}
	return r
}

func (r *Registry) shardFor(room string) *shard {
	return r.shards[r.ring.Get(room)]
}

// Join adds the session to the room named by its bound user id.
// Joining twice is a no-op.
func (r *Registry) Join(s *Session) {
	room := s.Room()
	sh := r.shardFor(room)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	members, ok := sh.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		sh.rooms[room] = members
	}
	if _, already := members[s]; already {
		return
	}
	members[s] = struct{}{}
	log.Printf("[HUB] Session joined room %s (members: %d)", room, len(members))
}

// Leave removes the session from its room; the last session out tears
// the room down. Safe to call more than once.
func (r *Registry) Leave(s *Session) {
	room := s.Room()
	sh := r.shardFor(room)

	sh.mu.Lock()
	members, ok := sh.rooms[room]
	if ok {
		if _, present := members[s]; present {
			delete(members, s)
			if len(members) == 0 {
				delete(sh.rooms, room)
			}
			log.Printf("[HUB] Session left room %s (members: %d)", room, len(members))
		}
	}
	sh.mu.Unlock()

	s.closeSend()
}

// Emit delivers the event to every session currently in the listed
// rooms. Best-effort and non-blocking: empty rooms drop silently, and
// a session whose buffer is full is evicted rather than waited on.
func (r *Registry) Emit(event string, payload any, rooms ...string) {
	envelope, err := json.Marshal(OutboundEvent{Type: event, Payload: payload})
	if err != nil {
		log.Printf("[HUB] Dropping %s event, marshal failed: %v", event, err)
		return
	}

	var slow []*Session
	for _, room := range lo.Uniq(rooms) {
		sh := r.shardFor(room)

		sh.mu.RLock()
		for s := range sh.rooms[room] {
			select {
			case s.send <- envelope:
			default:
				log.Printf("[HUB] WARNING: room %s has a slow consumer, evicting", room)
				slow = append(slow, s)
			}
		}
		sh.mu.RUnlock()
	}

	for _, s := range slow {
		r.Leave(s)
	}
}

// RoomSize reports how many sessions currently occupy the room.
func (r *Registry) RoomSize(room string) int {
	sh := r.shardFor(room)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.rooms[room])
}

// OnlineRooms lists the user ids with at least one live session.
func (r *Registry) OnlineRooms() []uuid.UUID {
	var online []uuid.UUID
	for _, sh := range r.shards {
		sh.mu.RLock()
		for room := range sh.rooms {
			if id, err := uuid.Parse(room); err == nil {
				online = append(online, id)
			}
		}
		sh.mu.RUnlock()
	}
	return online
}

// Shutdown disconnects every session. Used on server stop.
func (r *Registry) Shutdown() {
	for _, sh := range r.shards {
		sh.mu.Lock()
		sessions := lo.Flatten(lo.Map(lo.Values(sh.rooms), func(m map[*Session]struct{}, _ int) []*Session {
			return lo.Keys(m)
		}))
		sh.rooms = make(map[string]map[*Session]struct{})
		sh.mu.Unlock()

		for _, s := range sessions {
			s.closeSend()
		}
	}
}
