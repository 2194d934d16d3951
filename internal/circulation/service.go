package circulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrlokans/growlin/internal/entities"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type BorrowRequest struct {
	BorrowerID uint
	ItemID     uint   // 0 means look the item up by Accession
	Accession  string // Read off the physical copy
	LongTerm   bool
}

func (r BorrowRequest) Validate() error {
	if r.BorrowerID == 0 {
		return fmt.Errorf("%w: borrower is required", ErrInvalidRequest)
	}
	if r.Accession == "" {
		return fmt.Errorf("%w: accession is required", ErrInvalidRequest)
	}
	return nil
}

type ReturnRequest struct {
	BorrowerID uint
	ItemID     uint
	Accession  string
}

func (r ReturnRequest) Validate() error {
	if r.BorrowerID == 0 {
		return fmt.Errorf("%w: borrower is required", ErrInvalidRequest)
	}
	if r.ItemID == 0 {
		return fmt.Errorf("%w: item is required", ErrInvalidRequest)
	}
	if r.Accession == "" {
		return fmt.Errorf("%w: accession is required", ErrInvalidRequest)
	}
	return nil
}

// LoanDraft is a validated borrow request with the loan terms filled in.
type LoanDraft struct {
	BorrowRequest
	BorrowDate     time.Time
	DueDate        *time.Time
	MaxPerBorrower int // 0 = unlimited
}

// Store persists loans. Borrow and Return must each be atomic: on any error
// nothing is written.
type Store interface {
	Borrow(ctx context.Context, draft LoanDraft) (*entities.Item, error)
	Return(ctx context.Context, req ReturnRequest, returnedAt time.Time) (*entities.LoanRecord, error)
	GetItem(ctx context.Context, id uint) (*entities.Item, error)
	FindItemByAccession(ctx context.Context, accession string) (*entities.Item, error)
	CurrentLoans(ctx context.Context, userID uint) ([]entities.Loan, error)
	PastLoans(ctx context.Context, userID uint, limit, offset int) ([]entities.LoanRecord, int64, error)
	OverdueLoans(ctx context.Context, now time.Time) ([]entities.Loan, error)
}

// Auditor receives the outcome of every borrow and return attempt.
type Auditor interface {
	LogBorrow(userID, itemID uint, accession string, err error)
	LogReturn(userID, itemID uint, accession string, err error)
}

type Policy struct {
	Period         time.Duration
	LongTermPeriod time.Duration // 0 = long-term loans have no due date
	MaxPerBorrower int
}

func (p Policy) dueDate(borrowed time.Time, longTerm bool) *time.Time {
	period := p.Period
	if longTerm {
		period = p.LongTermPeriod
	}
	if period <= 0 {
		return nil
	}
	due := borrowed.Add(period)
	return &due
}

type Service struct {
	store   Store
	auditor Auditor
	policy  Policy
	now     func() time.Time
}

// NewService creates a circulation service. auditor may be nil.
func NewService(store Store, auditor Auditor, policy Policy) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		policy:  policy,
		now:     time.Now,
	}
}

// NormalizeAccession trims the whitespace scanners and keyboards leave around a code.
func NormalizeAccession(accession string) string {
	return strings.TrimSpace(accession)
}

// MatchAccession reports whether supplied confirms stored. An empty code never matches.
func MatchAccession(stored, supplied string) bool {
	supplied = NormalizeAccession(supplied)
	return supplied != "" && supplied == NormalizeAccession(stored)
}

// Borrow lends an item to a borrower and returns the item with its new loan.
func (s *Service) Borrow(ctx context.Context, req BorrowRequest) (*entities.Item, error) {
	req.Accession = NormalizeAccession(req.Accession)
	if err := req.Validate(); err != nil {
		s.logBorrow(req, err)
		return nil, err
	}

	now := s.now()
	item, err := s.store.Borrow(ctx, LoanDraft{
		BorrowRequest:  req,
		BorrowDate:     now,
		DueDate:        s.policy.dueDate(now, req.LongTerm),
		MaxPerBorrower: s.policy.MaxPerBorrower,
	})
	if item != nil && req.ItemID == 0 {
		req.ItemID = item.ID
	}
	s.logBorrow(req, err)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Unborrow ends the borrower's loan of an item and returns the archived record.
func (s *Service) Unborrow(ctx context.Context, req ReturnRequest) (*entities.LoanRecord, error) {
	req.Accession = NormalizeAccession(req.Accession)
	if err := req.Validate(); err != nil {
		s.logReturn(req, err)
		return nil, err
	}

	record, err := s.store.Return(ctx, req, s.now())
	s.logReturn(req, err)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetItem(ctx context.Context, id uint) (*entities.Item, error) {
	return s.store.GetItem(ctx, id)
}

func (s *Service) FindByAccession(ctx context.Context, accession string) (*entities.Item, error) {
	accession = NormalizeAccession(accession)
	if accession == "" {
		return nil, fmt.Errorf("%w: accession is required", ErrInvalidRequest)
	}
	return s.store.FindItemByAccession(ctx, accession)
}

func (s *Service) CurrentLoans(ctx context.Context, userID uint) ([]entities.Loan, error) {
	return s.store.CurrentLoans(ctx, userID)
}

// PastLoans pages through a borrower's history, newest return first.
func (s *Service) PastLoans(ctx context.Context, userID uint, limit, offset int) ([]entities.LoanRecord, int64, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.PastLoans(ctx, userID, limit, offset)
}

func (s *Service) Overdue(ctx context.Context, now time.Time) ([]entities.Loan, error) {
	return s.store.OverdueLoans(ctx, now)
}

func (s *Service) logBorrow(req BorrowRequest, err error) {
	if s.auditor != nil {
		s.auditor.LogBorrow(req.BorrowerID, req.ItemID, req.Accession, err)
	}
}

func (s *Service) logReturn(req ReturnRequest, err error) {
	if s.auditor != nil {
		s.auditor.LogReturn(req.BorrowerID, req.ItemID, req.Accession, err)
	}
}
