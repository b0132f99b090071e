package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	internalShared "github.com/ledgerline/ledgerline/internal/shared"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// AuditPort records chart-of-accounts events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service coordinates chart of accounts maintenance.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the accounts service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

var codePattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// Create inserts a new account, deriving its level from the parent chain
// and flipping the parent's leaf flag off.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (Account, error) {
	if !codePattern.MatchString(input.Code) {
		return Account{}, shared.ErrInvalidCode
	}
	if input.Name == "" {
		return Account{}, errors.New("accounts: name required")
	}
	if input.TypeID == 0 {
		return Account{}, errors.New("accounts: account type required")
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetType(ctx, input.TypeID); err != nil {
			return err
		}
		level := 1
		if input.ParentID != nil {
			parent, err := tx.GetForUpdate(ctx, *input.ParentID)
			if err != nil {
				return err
			}
			level = parent.Level + 1
			if parent.IsLeaf {
				if err := tx.SetLeaf(ctx, parent.ID, false); err != nil {
					return err
				}
			}
		}
		inserted, err := tx.Insert(ctx, input, level)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actorID, "account.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// Update applies mutable fields to an existing account.
func (s *Service) Update(ctx context.Context, input UpdateInput, actorID int64) error {
	if input.AccountID == 0 {
		return errors.New("accounts: account id required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, input)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.update", input.AccountID, nil)
	return nil
}

// Delete removes an account unless it is system-protected, has children,
// or is referenced by any journal line (draft or posted).
func (s *Service) Delete(ctx context.Context, accountID int64, actorID int64) error {
	if accountID == 0 {
		return errors.New("accounts: account id required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.IsSystem {
			return shared.ErrSystemProtected
		}
		children, err := tx.CountChildren(ctx, accountID)
		if err != nil {
			return err
		}
		if children > 0 {
			return shared.ErrAccountInUse
		}
		refs, err := tx.CountJournalLines(ctx, accountID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return shared.ErrAccountInUse
		}
		if err := tx.Delete(ctx, accountID); err != nil {
			return err
		}
		if account.ParentID != nil {
			remaining, err := tx.CountChildren(ctx, *account.ParentID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				if err := tx.SetLeaf(ctx, *account.ParentID, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.delete", accountID, nil)
	return nil
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode fetches an account by its chart code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns the full chart ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// ListTypes returns the category hierarchy.
func (s *Service) ListTypes(ctx context.Context) ([]AccountType, error) {
	return s.repo.ListTypes(ctx)
}

// Descendants walks the subtree below the account depth-first.
// With leavesOnly set, grouping accounts are filtered out.
func (s *Service) Descendants(ctx context.Context, accountID int64, leavesOnly bool) ([]Account, error) {
	root, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var out []Account
	var walk func(parent Account) error
	walk = func(parent Account) error {
		children, err := s.repo.ListChildren(ctx, parent.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if !leavesOnly || child.IsLeaf {
				out = append(out, child)
			}
			if !child.IsLeaf {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, accountID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", accountID),
		Meta:     meta,
		At:       s.now(),
	})
}
