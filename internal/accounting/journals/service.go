package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Publisher notifies downstream listeners after an entry is posted.
type Publisher interface {
	JournalPosted(ctx context.Context, evt PostedEvent) error
}

// CheckpointInvalidator drops cached balance checkpoints that a posting
// may have invalidated.
type CheckpointInvalidator interface {
	InvalidateFrom(ctx context.Context, accountIDs []int64, from time.Time) error
}

// Service coordinates drafting, posting, reversing, and deleting journal
// entries.
type Service struct {
	repo        Repository
	audit       AuditPort
	publisher   Publisher
	checkpoints CheckpointInvalidator
	numbers     *NumberGenerator
	now         func() time.Time
}

// NewService constructs the journal service.
func NewService(repo Repository, audit AuditPort, publisher Publisher, checkpoints CheckpointInvalidator) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		publisher:   publisher,
		checkpoints: checkpoints,
		numbers:     NewNumberGenerator(),
		now:         time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.numbers.WithNow(now)
	}
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, lines, err := s.repo.Get(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// GetBySource returns the entry previously linked to a document source.
func (s *Service) GetBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	return s.repo.GetBySource(ctx, module, ref)
}

// List returns recent entries without lines.
func (s *Service) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	return s.repo.List(ctx, limit)
}

// CreateDraft validates and persists a new entry in DRAFT status.
// Drafts have no balance effect until posted.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (JournalEntry, error) {
	return s.create(ctx, input, StatusDraft)
}

// PostDirect creates and posts an entry in one transaction. Document
// integrations use this path so the document action and its ledger effect
// commit together.
func (s *Service) PostDirect(ctx context.Context, input DraftInput) (JournalEntry, error) {
	entry, err := s.create(ctx, input, StatusPosted)
	if err != nil {
		return JournalEntry{}, err
	}
	s.afterPost(ctx, entry)
	return entry, nil
}

// maxNumberAttempts bounds cross-process entry number races. Each
// attempt draws a fresh number from the generator.
const maxNumberAttempts = 3

func (s *Service) create(ctx context.Context, input DraftInput, status EntryStatus) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.Prefix == "" {
		input.Prefix = PrefixManual
	}
	if input.Type == "" {
		input.Type = TypeManual
	}
	var entry JournalEntry
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		entry, err = s.createOnce(ctx, input, status)
		if !errors.Is(err, shared.ErrNumberCollision) {
			break
		}
	}
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.CreatedBy, "journal.create", entry.ID, map[string]any{
		"number": entry.Number,
		"status": string(entry.Status),
	})
	return entry, nil
}

func (s *Service) createOnce(ctx context.Context, input DraftInput, status EntryStatus) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := s.validateAccountsAndPeriod(ctx, tx, input.Date, input.Lines)
		if err != nil {
			return err
		}
		now := s.now()
		header := JournalEntry{
			Number:       s.numbers.Next(input.Prefix, input.DocRef),
			PeriodID:     period.ID,
			Date:         input.Date,
			Type:         input.Type,
			Status:       status,
			Reference:    input.Reference,
			Memo:         input.Memo,
			SourceModule: input.SourceModule,
			SourceID:     input.SourceID,
			CreatedBy:    input.CreatedBy,
		}
		if status == StatusPosted {
			header.PostedAt = &now
		}
		inserted, err := tx.InsertEntry(ctx, header)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, inserted.ID, input.Lines)
		if err != nil {
			return err
		}
		if input.SourceModule != "" {
			if err := tx.LinkSource(ctx, input.SourceModule, input.SourceID, inserted.ID); err != nil {
				if errors.Is(err, shared.ErrSourceConflict) {
					return shared.ErrSourceAlreadyLinked
				}
				return err
			}
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	return entry, err
}

// Post transitions a draft to POSTED after re-verifying balance and
// period. Posting an entry that is already posted is a no-op.
func (s *Service) Post(ctx context.Context, entryID int64, actorID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var entry JournalEntry
	var alreadyPosted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status == StatusPosted {
			current.Lines = lines
			entry = current
			alreadyPosted = true
			return nil
		}
		if current.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		inputs := linesToInputs(lines)
		draft := DraftInput{Date: current.Date, Lines: inputs}
		if err := draft.Validate(); err != nil {
			return err
		}
		if _, err := s.validateAccountsAndPeriod(ctx, tx, current.Date, inputs); err != nil {
			return err
		}
		now := s.now()
		if err := tx.UpdateStatus(ctx, current.ID, StatusPosted, &now); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PostedAt = &now
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if alreadyPosted {
		return entry, nil
	}
	s.record(ctx, actorID, "journal.post", entry.ID, map[string]any{"number": entry.Number})
	s.afterPost(ctx, entry)
	return entry, nil
}

// Reverse creates a posted entry with debits and credits swapped, marks
// the original REVERSED, and links the reversal back to it. The
// original's source link is released so the document can post again.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	reversalDate := input.Date
	if reversalDate.IsZero() {
		reversalDate = s.now().Truncate(24 * time.Hour)
	}
	var reversal JournalEntry
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		reversal, err = s.reverseOnce(ctx, input, reversalDate)
		if !errors.Is(err, shared.ErrNumberCollision) {
			break
		}
	}
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.ActorID, "journal.reverse", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
		"reason":          input.Reason,
	})
	s.afterPost(ctx, reversal)
	return reversal, nil
}

func (s *Service) reverseOnce(ctx context.Context, input ReverseInput, reversalDate time.Time) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, lines, err := tx.GetEntryForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status == StatusReversed {
			return shared.ErrAlreadyReversed
		}
		if original.Status != StatusPosted {
			return shared.ErrNotPosted
		}
		swapped := reverseLines(lines)
		period, err := s.validateAccountsAndPeriod(ctx, tx, reversalDate, swapped)
		if err != nil {
			return err
		}
		now := s.now()
		memo := fmt.Sprintf("Reversal of %s", original.Number)
		if input.Reason != "" {
			memo = fmt.Sprintf("%s: %s", memo, input.Reason)
		}
		header := JournalEntry{
			Number:      s.numbers.Next(PrefixReversal, original.Number),
			PeriodID:    period.ID,
			Date:        reversalDate,
			Type:        TypeAutomatic,
			Status:      StatusPosted,
			Reference:   original.Reference,
			Memo:        memo,
			CreatedBy:   input.ActorID,
			PostedAt:    &now,
			ReverseOfID: &original.ID,
		}
		inserted, err := tx.InsertEntry(ctx, header)
		if err != nil {
			return err
		}
		insertedLines, err := tx.InsertLines(ctx, inserted.ID, swapped)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, original.ID, StatusReversed, nil); err != nil {
			return err
		}
		// A reversed entry keeps no claim on its document source; a
		// re-posted document books a fresh entry instead of converging
		// on this one.
		if err := tx.UnlinkSource(ctx, original.ID); err != nil {
			return err
		}
		inserted.Lines = insertedLines
		reversal = inserted
		return nil
	})
	return reversal, err
}

// DeleteDraft removes a draft entry. Posted entries are immutable and
// must be reversed instead.
func (s *Service) DeleteDraft(ctx context.Context, entryID int64, actorID int64) error {
	if entryID == 0 {
		return errors.New("accounting: entry id required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, _, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrPostedImmutable
		}
		return tx.DeleteEntry(ctx, entryID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "journal.delete", entryID, nil)
	return nil
}

// validateAccountsAndPeriod checks every line account is an active leaf
// and resolves the open period covering the date.
func (s *Service) validateAccountsAndPeriod(ctx context.Context, tx TxRepository, date time.Time, lines []LineInput) (period periodRef, err error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	accounts, err := tx.GetPostingAccounts(ctx, ids)
	if err != nil {
		return periodRef{}, err
	}
	for _, id := range ids {
		account, ok := accounts[id]
		if !ok {
			return periodRef{}, shared.ErrAccountNotFound
		}
		if !account.IsLeaf {
			return periodRef{}, shared.ErrNonLeafAccount
		}
		if !account.IsActive {
			return periodRef{}, shared.ErrInactiveAccount
		}
	}
	open, err := tx.FindOpenPeriodByDate(ctx, date)
	if err != nil {
		return periodRef{}, err
	}
	return periodRef{ID: open.ID}, nil
}

type periodRef struct {
	ID int64
}

func (s *Service) afterPost(ctx context.Context, entry JournalEntry) {
	if s.checkpoints != nil {
		ids := make([]int64, 0, len(entry.Lines))
		for _, line := range entry.Lines {
			ids = append(ids, line.AccountID)
		}
		_ = s.checkpoints.InvalidateFrom(ctx, ids, entry.Date)
	}
	if s.publisher != nil {
		var amount float64
		for _, line := range entry.Lines {
			amount += line.Debit
		}
		_ = s.publisher.JournalPosted(ctx, PostedEvent{
			EntryID:     entry.ID,
			EntryNumber: entry.Number,
			Date:        entry.Date,
			Amount:      shared.Round2(amount),
			Source:      entry.SourceModule,
		})
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func linesToInputs(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	return out
}
