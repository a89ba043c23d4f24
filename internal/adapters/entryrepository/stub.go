package entryrepository

import (
	"context"

	"github.com/Amund211/memocache/internal/domain"
)

// StubRepository stores nothing
type StubRepository struct{}

func NewStubRepository() *StubRepository {
	return &StubRepository{}
}

func (s *StubRepository) StoreEntry(ctx context.Context, entry domain.Entry) error {
	return nil
}

func (s *StubRepository) GetEntry(ctx context.Context, key string) (domain.Entry, error) {
	return domain.Entry{}, domain.ErrEntryNotFound
}
