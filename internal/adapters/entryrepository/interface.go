package entryrepository

import (
	"context"

	"github.com/Amund211/memocache/internal/domain"
)

type EntryRepository interface {
	StoreEntry(ctx context.Context, entry domain.Entry) error
	GetEntry(ctx context.Context, key string) (domain.Entry, error)
}
