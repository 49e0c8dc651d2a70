// Package directory resolves partner-facing identifiers to wallet accounts.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const lookupTimeout = 5 * time.Second

type aliasStore interface {
	Resolve(ctx context.Context, identifier string) (string, error)
	Upsert(ctx context.Context, identifier, accountID string) error
}

// Directory collapses concurrent lookups of the same identifier into one
// store read.
type Directory struct {
	aliases aliasStore
	sf      *singleflight.Group
}

func New(aliases aliasStore) *Directory {
	return &Directory{aliases: aliases, sf: &singleflight.Group{}}
}

// Lookup returns the account id registered for identifier, or
// domain.ErrNotFound. Identifiers are compared case-insensitively.
func (d *Directory) Lookup(ctx context.Context, identifier string) (string, error) {
	key := normalize(identifier)
	if key == "" {
		return "", fmt.Errorf("Lookup: %w", domain.ErrNotFound)
	}

	// The shared read must outlive any single caller; each caller still
	// stops waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := d.sf.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(shared, lookupTimeout)
		defer cancel()
		return d.aliases.Resolve(rctx, key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("Lookup: %w", ctx.Err())
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("Lookup: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("Lookup: %w", err)
	}
	return v.(string), nil
}

func (d *Directory) Register(ctx context.Context, identifier, accountID string) error {
	key := normalize(identifier)
	if key == "" || strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("Register: %w", domain.ErrInvalidRequest)
	}
	if err := d.aliases.Upsert(ctx, key, accountID); err != nil {
		return fmt.Errorf("Register: %w", err)
	}
	return nil
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
