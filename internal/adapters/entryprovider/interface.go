package entryprovider

import (
	"context"

	"github.com/Amund211/memocache/internal/domain"
)

type EntryProvider interface {
	GetEntry(ctx context.Context, key string) (domain.Entry, error)
}
