package mappings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// AccountLookup resolves an account code to an account.
type AccountLookup interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Resolver turns canonical roles into ledger accounts. A database
// override wins over the seeded default; either way the resolved code
// must exist as an active leaf account.
type Resolver struct {
	repo     Repository
	lookup   AccountLookup
	defaults map[Role]string

	group singleflight.Group
	mu    sync.RWMutex
	cache map[Role]Resolved
}

// NewResolver constructs a resolver. defaults may be nil to use the
// built-in codes.
func NewResolver(repo Repository, lookup AccountLookup, defaults map[Role]string) *Resolver {
	if defaults == nil {
		defaults = DefaultCodes()
	}
	return &Resolver{
		repo:     repo,
		lookup:   lookup,
		defaults: defaults,
		cache:    make(map[Role]Resolved),
	}
}

// Resolve returns the account behind a canonical role.
func (r *Resolver) Resolve(ctx context.Context, role Role) (Resolved, error) {
	r.mu.RLock()
	cached, ok := r.cache[role]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := r.group.Do(string(role), func() (any, error) {
		resolved, err := r.resolve(ctx, role)
		if err != nil {
			return Resolved{}, err
		}
		r.mu.Lock()
		r.cache[role] = resolved
		r.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return Resolved{}, err
	}
	return v.(Resolved), nil
}

func (r *Resolver) resolve(ctx context.Context, role Role) (Resolved, error) {
	code := ""
	mapping, err := r.repo.Get(ctx, role)
	switch {
	case err == nil:
		code = mapping.AccountCode
	case errors.Is(err, shared.ErrMappingNotFound):
		code = r.defaults[role]
	default:
		return Resolved{}, err
	}
	if code == "" {
		return Resolved{}, fmt.Errorf("%w: %s", shared.ErrMappingNotFound, role)
	}

	account, err := r.lookup.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return Resolved{}, fmt.Errorf("%w: %s -> %s", shared.ErrMappingNotFound, role, code)
		}
		return Resolved{}, err
	}
	if !account.IsLeaf || !account.IsActive {
		return Resolved{}, fmt.Errorf("%w: %s -> %s", shared.ErrMappingNotFound, role, code)
	}
	return Resolved{Role: role, AccountID: account.ID, AccountCode: account.Code}, nil
}

// Invalidate clears cached resolutions, for use after mapping updates.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[Role]Resolved)
	r.mu.Unlock()
}
