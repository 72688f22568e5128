package bot

import (
	"sync"
	"time"

	"bookflow/internal/models"
)

// chatView is what the last rendered keyboards refer to. Callback data carries
// indexes into these lists because Telegram caps it at 64 bytes.
type chatView struct {
	services []models.Service
	staff    []models.StaffMember
	// staffID is the requested staff member; empty means anyone.
	staffID string
	month   time.Time
}

type viewStore struct {
	mu sync.Mutex
	m  map[int64]*chatView
}

func newViewStore() *viewStore {
	return &viewStore{m: make(map[int64]*chatView)}
}

// update runs fn on the user's view under the store lock.
func (s *viewStore) update(userID int64, fn func(v *chatView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.m[userID]
	if v == nil {
		v = &chatView{}
		s.m[userID] = v
	}
	fn(v)
}

// get returns a copy of the user's view.
func (s *viewStore) get(userID int64) chatView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.m[userID]; v != nil {
		return *v
	}
	return chatView{}
}

func (s *viewStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
