package history

import (
	"fmt"

	"github.com/ehr/intake/internal/domain/records"
)

type Store = records.Store[*Item]

// NewStore returns a store that only accepts valid items of the given kind.
func NewStore(kind Kind, opts ...records.Option[*Item]) *Store {
	guard := func(_ []*Item, c *Item) error {
		if c.Kind != kind {
			return fmt.Errorf("%w: expected kind %s, got %q", ErrInvalidItem, kind, c.Kind)
		}
		return c.Validate()
	}
	base := []records.Option[*Item]{records.WithGuard[*Item](guard)}
	return records.New[*Item](append(base, opts...)...)
}
