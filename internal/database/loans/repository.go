// Package loans provides the transactional borrow and return operations
// and the loan history queries.
//
// # Usage
//
//	repo := loans.NewRepository(db)
//	svc := circulation.NewService(repo, auditSvc, policy)
package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/database"
	"github.com/mrlokans/growlin/internal/entities"
)

// Repository implements circulation.Store on top of gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Borrow claims the item with a conditional status update before anything
// else is checked. Whoever flips the status from available wins; a failed
// check later in the transaction rolls the flip back.
func (r *Repository) Borrow(ctx context.Context, draft circulation.LoanDraft) (*entities.Item, error) {
	var item entities.Item

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		borrower, err := loadBorrower(tx, draft.BorrowerID)
		if err != nil {
			return err
		}
		if !borrower.Active {
			return circulation.ErrBorrowerInactive
		}

		itemID := draft.ItemID
		if itemID == 0 {
			if err := tx.Select("id").Where("accession = ?", draft.Accession).First(&item).Error; err != nil {
				return notFound(err, circulation.ErrItemNotFound, "failed to look up item")
			}
			itemID = item.ID
		}

		claim := tx.Model(&entities.Item{}).
			Where("id = ? AND status = ?", itemID, entities.ItemStatusAvailable).
			Update("status", entities.ItemStatusBorrowed)
		if claim.Error != nil {
			return fmt.Errorf("failed to claim item: %w", claim.Error)
		}

		item = entities.Item{}
		if err := tx.Preload("CampusLocation").Preload("Loan").First(&item, itemID).Error; err != nil {
			return notFound(err, circulation.ErrItemNotFound, "failed to load item")
		}

		if claim.RowsAffected == 0 {
			if item.Loan != nil || item.Status == entities.ItemStatusBorrowed {
				return fmt.Errorf("%w: %q", circulation.ErrAlreadyBorrowed, item.DisplayTitle())
			}
			return circulation.ErrItemUnavailable
		}
		if !circulation.MatchAccession(item.Accession, draft.Accession) {
			return circulation.ErrAccessionMismatch
		}
		if !item.IsCirculating() {
			return circulation.ErrItemUnavailable
		}

		if draft.MaxPerBorrower > 0 {
			var held int64
			if err := tx.Model(&entities.Loan{}).Where("user_id = ?", borrower.ID).Count(&held).Error; err != nil {
				return fmt.Errorf("failed to count loans: %w", err)
			}
			if held >= int64(draft.MaxPerBorrower) {
				return circulation.ErrLoanLimitReached
			}
		}

		loan := entities.Loan{
			ItemID:     item.ID,
			UserID:     borrower.ID,
			BorrowDate: draft.BorrowDate,
			DueDate:    draft.DueDate,
			IsLongTerm: draft.LongTerm,
		}
		if err := tx.Create(&loan).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %q", circulation.ErrAlreadyBorrowed, item.DisplayTitle())
			}
			return fmt.Errorf("failed to create loan: %w", err)
		}

		loan.User = borrower
		item.Status = entities.ItemStatusBorrowed
		item.Loan = &loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Return archives the borrower's loan of an item. The loan delete must hit
// exactly one row, so two concurrent returns cannot both archive it.
func (r *Repository) Return(ctx context.Context, req circulation.ReturnRequest, returnedAt time.Time) (*entities.LoanRecord, error) {
	var record entities.LoanRecord

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item entities.Item
		if err := tx.Preload("Loan").First(&item, req.ItemID).Error; err != nil {
			return notFound(err, circulation.ErrItemNotFound, "failed to load item")
		}
		loan := item.Loan
		if loan == nil || loan.UserID != req.BorrowerID {
			return circulation.ErrNotBorrowed
		}
		if !circulation.MatchAccession(item.Accession, req.Accession) {
			return circulation.ErrAccessionMismatch
		}

		borrower, err := loadBorrower(tx, req.BorrowerID)
		if err != nil {
			return err
		}

		removed := tx.Where("id = ? AND user_id = ?", loan.ID, req.BorrowerID).Delete(&entities.Loan{})
		if removed.Error != nil {
			return fmt.Errorf("failed to end loan: %w", removed.Error)
		}
		if removed.RowsAffected != 1 {
			return circulation.ErrNotBorrowed
		}

		record = entities.LoanRecord{
			ItemID:        &item.ID,
			ItemAccession: item.Accession,
			ItemTitle:     item.DisplayTitle(),
			UserID:        &borrower.ID,
			UserName:      borrower.Name,
			UserGroup:     borrower.Group.Name,
			BorrowDate:    loan.BorrowDate,
			ReturnDate:    returnedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to archive loan: %w", err)
		}

		if err := tx.Model(&entities.Item{}).Where("id = ?", item.ID).
			Update("status", entities.ItemStatusAvailable).Error; err != nil {
			return fmt.Errorf("failed to release item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) GetItem(ctx context.Context, id uint) (*entities.Item, error) {
	var item entities.Item
	err := r.itemQuery(ctx).First(&item, id).Error
	if err != nil {
		return nil, notFound(err, circulation.ErrItemNotFound, "failed to load item")
	}
	return &item, nil
}

func (r *Repository) FindItemByAccession(ctx context.Context, accession string) (*entities.Item, error) {
	var item entities.Item
	err := r.itemQuery(ctx).Where("accession = ?", accession).First(&item).Error
	if err != nil {
		return nil, notFound(err, circulation.ErrItemNotFound, "failed to look up item")
	}
	return &item, nil
}

// CurrentLoans returns the borrower's active loans, most recent first.
func (r *Repository) CurrentLoans(ctx context.Context, userID uint) ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Item.CampusLocation").
		Where("user_id = ?", userID).
		Order("borrow_date DESC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (r *Repository) PastLoans(ctx context.Context, userID uint, limit, offset int) ([]entities.LoanRecord, int64, error) {
	var records []entities.LoanRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.LoanRecord{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	err := query.Order("return_date DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	return records, total, nil
}

// OverdueLoans returns loans whose due date is before now, oldest due first.
func (r *Repository) OverdueLoans(ctx context.Context, now time.Time) ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("User").
		Preload("User.Group").
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Order("due_date ASC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return loans, nil
}

func (r *Repository) itemQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("CampusLocation").
		Preload("ItemType").
		Preload("Authors").
		Preload("Loan").
		Preload("Loan.User", holderColumns).
		Preload("Loan.User.Group")
}

// holderColumns limits the current holder to what other patrons may see.
func holderColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "group_id")
}

func loadBorrower(tx *gorm.DB, id uint) (*entities.User, error) {
	var user entities.User
	if err := tx.Preload("Group").First(&user, id).Error; err != nil {
		return nil, notFound(err, circulation.ErrBorrowerNotFound, "failed to load borrower")
	}
	return &user, nil
}

func notFound(err, sentinel error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", msg, err)
}
