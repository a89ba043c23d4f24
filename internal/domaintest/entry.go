package domaintest

import (
	"time"

	"github.com/Amund211/memocache/internal/domain"
)

type entryBuilder struct {
	entry domain.Entry
}

func (eb *entryBuilder) WithValue(value string) *entryBuilder {
	eb.entry.Value = []byte(value)
	return eb
}

func (eb *entryBuilder) WithContentType(contentType string) *entryBuilder {
	eb.entry.ContentType = contentType
	return eb
}

func (eb *entryBuilder) Build() domain.Entry {
	entry := eb.entry
	// Copy, so further mutations to the builder don't affect the returned entry
	entry.Value = append([]byte(nil), eb.entry.Value...)
	return entry
}

func NewEntryBuilder(key string, fetchedAt time.Time) *entryBuilder {
	return &entryBuilder{
		entry: domain.Entry{
			Key:         key,
			Value:       []byte(key),
			ContentType: "text/plain",
			FetchedAt:   fetchedAt,
		},
	}
}
