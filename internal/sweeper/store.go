package sweeper

import (
	"context"
	"time"
)

// Record is anything a Store can hand back for deletion.
type Record interface {
	Identifier() string
	Expiry() time.Time
}

// Store is a single category of expiring records.
type Store interface {
	Name() string
	// ListExpired returns the records whose expiry is at or before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]Record, error)
	// Delete removes a record by identifier. It fails if the record does not exist.
	Delete(ctx context.Context, id string) error
}

// Stores is the set of collaborators swept on every tick.
type Stores struct {
	TokenHandles       Store
	RefreshTokens      Store
	AuthorizationCodes Store
}

// ordered returns the stores in sweep order.
func (s *Stores) ordered() []Store {
	return []Store{s.TokenHandles, s.RefreshTokens, s.AuthorizationCodes}
}

func (s *Stores) complete() bool {
	for _, st := range s.ordered() {
		if st == nil {
			return false
		}
	}
	return true
}

// Source is a typed repository that can be swept.
type Source[R Record] interface {
	ListExpired(ctx context.Context, cutoff time.Time) ([]R, error)
	Delete(ctx context.Context, id string) error
}

// NewStore wraps a typed repository so it can be registered in Stores.
func NewStore[R Record](name string, src Source[R]) Store {
	return &typedStore[R]{name: name, src: src}
}

type typedStore[R Record] struct {
	name string
	src  Source[R]
}

func (s *typedStore[R]) Name() string { return s.name }

func (s *typedStore[R]) ListExpired(ctx context.Context, cutoff time.Time) ([]Record, error) {
	rows, err := s.src.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (s *typedStore[R]) Delete(ctx context.Context, id string) error {
	return s.src.Delete(ctx, id)
}
