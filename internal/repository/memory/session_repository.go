package memory

import (
	"time"

	"wiki-console-be/pkg/wizard"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps one wizard sequencer per operator. Idle entries
// expire after ttl.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(operatorID uuid.UUID, seq *wizard.Sequencer) {
	r.cache.Set(operatorID.String(), seq, cache.DefaultExpiration)
}

// Get returns the operator's sequencer and refreshes its expiration.
func (r *SessionRepository) Get(operatorID uuid.UUID) (*wizard.Sequencer, bool) {
	if x, found := r.cache.Get(operatorID.String()); found {
		seq := x.(*wizard.Sequencer)
		r.cache.Set(operatorID.String(), seq, cache.DefaultExpiration)
		return seq, true
	}
	return nil, false
}

// GetOrCreate stores the result of create when the operator has no sequencer.
func (r *SessionRepository) GetOrCreate(operatorID uuid.UUID, create func() (*wizard.Sequencer, error)) (*wizard.Sequencer, error) {
	if seq, ok := r.Get(operatorID); ok {
		return seq, nil
	}
	seq, err := create()
	if err != nil {
		return nil, err
	}
	if err := r.cache.Add(operatorID.String(), seq, cache.DefaultExpiration); err != nil {
		// lost a race with another request for the same operator
		if existing, ok := r.Get(operatorID); ok {
			return existing, nil
		}
		r.Save(operatorID, seq)
	}
	return seq, nil
}

func (r *SessionRepository) Delete(operatorID uuid.UUID) {
	r.cache.Delete(operatorID.String())
}
