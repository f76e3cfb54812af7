package room

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// StubRepository is an in-memory Repository used by service tests.
type StubRepository struct {
	rooms  map[string]*Room
	nextId int
}

func NewStubRepository() *StubRepository {
	return &StubRepository{
		rooms: make(map[string]*Room),
	}
}

func (s *StubRepository) Cleanup() {
	s.rooms = make(map[string]*Room)
	s.nextId = 0
}

func (s *StubRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(s)
}

func (s *StubRepository) nameTaken(name string, excludeUid string) bool {
	for uid, room := range s.rooms {
		if uid != excludeUid && strings.EqualFold(room.Name, name) {
			return true
		}
	}
	return false
}

func (s *StubRepository) Store(ctx context.Context, room Room) (Room, error) {
	room.Name = strings.TrimSpace(room.Name)
	if s.nameTaken(room.Name, "") {
		return Room{}, ErrDuplicateName
	}
	s.nextId++
	room.Id = s.nextId
	room.Uid = uuid.New().String()
	stored := room
	s.rooms[room.Uid] = &stored
	return room, nil
}

func (s *StubRepository) List(ctx context.Context, filter ListFilter) ([]Room, int, error) {
	matched := make([]Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if search := strings.TrimSpace(filter.Search); search != "" {
			lowered := strings.ToLower(search)
			if !strings.Contains(strings.ToLower(room.Name), lowered) &&
				!strings.Contains(strings.ToLower(room.Description), lowered) {
				continue
			}
		}
		if filter.MinCapacity > 0 && room.Capacity < filter.MinCapacity {
			continue
		}
		if filter.MaxCapacity > 0 && room.Capacity > filter.MaxCapacity {
			continue
		}
		matched = append(matched, *room)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].Id < matched[j].Id
	})

	total := len(matched)
	if filter.Offset >= total {
		return []Room{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (s *StubRepository) GetByUid(ctx context.Context, uid string) (*Room, error) {
	room, ok := s.rooms[uid]
	if !ok {
		return nil, ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (s *StubRepository) Update(ctx context.Context, room Room) (*Room, error) {
	var existingUid string
	for uid, stored := range s.rooms {
		if stored.Id == room.Id {
			existingUid = uid
			break
		}
	}
	if existingUid == "" {
		return nil, ErrRoomNotFound
	}
	room.Name = strings.TrimSpace(room.Name)
	if s.nameTaken(room.Name, existingUid) {
		return nil, ErrDuplicateName
	}
	stored := room
	s.rooms[existingUid] = &stored
	copied := room
	return &copied, nil
}

func (s *StubRepository) Delete(ctx context.Context, uid string) (*Room, error) {
	room, ok := s.rooms[uid]
	if !ok {
		return nil, ErrRoomNotFound
	}
	delete(s.rooms, uid)
	copied := *room
	return &copied, nil
}
