package loans

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database"
	"github.com/mrlokans/growlin/internal/entities"
)

type fixture struct {
	db       *gorm.DB
	repo     *Repository
	group    entities.UserGroup
	location entities.CampusLocation
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSilent(config.Database{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(t.TempDir(), "loans.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db.DB, repo: NewRepository(db.DB)}
	f.group = entities.UserGroup{Name: "Jupiter"}
	require.NoError(t, f.db.Create(&f.group).Error)
	require.NoError(t, f.db.Where("name = ?", "Main").First(&f.location).Error)
	return f
}

func (f *fixture) user(t *testing.T, name string) *entities.User {
	t.Helper()
	user := &entities.User{Username: name, Name: name, GroupID: f.group.ID, Active: true}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) item(t *testing.T, accession string) *entities.Item {
	t.Helper()
	item := &entities.Item{
		Accession:        accession,
		Kind:             entities.ItemKindBook,
		Status:           entities.ItemStatusAvailable,
		Title:            "The Slippery Seals",
		CampusLocationID: f.location.ID,
	}
	require.NoError(t, f.db.Create(item).Error)
	return item
}

func draft(userID, itemID uint, accession string) circulation.LoanDraft {
	return circulation.LoanDraft{
		BorrowRequest: circulation.BorrowRequest{BorrowerID: userID, ItemID: itemID, Accession: accession},
		BorrowDate:    time.Now(),
	}
}

func (f *fixture) loanCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&entities.Loan{}).Count(&count).Error)
	return count
}

func (f *fixture) status(t *testing.T, itemID uint) entities.ItemStatus {
	t.Helper()
	var item entities.Item
	require.NoError(t, f.db.First(&item, itemID).Error)
	return item.Status
}

func TestRepository_Borrow(t *testing.T) {
	ctx := context.Background()

	t.Run("creates loan and marks item borrowed", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-001")
		due := time.Now().Add(14 * 24 * time.Hour)

		d := draft(io.ID, item.ID, "B-001")
		d.DueDate = &due
		borrowed, err := f.repo.Borrow(ctx, d)

		require.NoError(t, err)
		require.NotNil(t, borrowed.Loan)
		assert.Equal(t, entities.ItemStatusBorrowed, borrowed.Status)
		assert.Equal(t, io.ID, borrowed.Loan.UserID)
		assert.WithinDuration(t, due, *borrowed.Loan.DueDate, time.Second)
		assert.Equal(t, entities.ItemStatusBorrowed, f.status(t, item.ID))
		assert.Equal(t, int64(1), f.loanCount(t))
	})

	t.Run("looks item up by accession", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-002")

		borrowed, err := f.repo.Borrow(ctx, draft(io.ID, 0, "B-002"))

		require.NoError(t, err)
		assert.Equal(t, item.ID, borrowed.ID)
	})

	t.Run("already borrowed leaves existing loan untouched", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		europa := f.user(t, "europa")
		item := f.item(t, "B-003")

		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-003"))
		require.NoError(t, err)

		_, err = f.repo.Borrow(ctx, draft(europa.ID, item.ID, "B-003"))
		assert.ErrorIs(t, err, circulation.ErrAlreadyBorrowed)

		var loan entities.Loan
		require.NoError(t, f.db.Where("item_id = ?", item.ID).First(&loan).Error)
		assert.Equal(t, io.ID, loan.UserID)
		assert.Equal(t, int64(1), f.loanCount(t))
	})

	t.Run("accession mismatch rolls back the claim", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-004")

		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-999"))

		assert.ErrorIs(t, err, circulation.ErrAccessionMismatch)
		assert.Equal(t, entities.ItemStatusAvailable, f.status(t, item.ID))
		assert.Zero(t, f.loanCount(t))
	})

	t.Run("empty accession never matches", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-005")

		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, ""))

		assert.ErrorIs(t, err, circulation.ErrAccessionMismatch)
		assert.Zero(t, f.loanCount(t))
	})

	t.Run("lost item is unavailable", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-006")
		require.NoError(t, f.db.Model(item).Update("status", entities.ItemStatusLost).Error)

		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-006"))

		assert.ErrorIs(t, err, circulation.ErrItemUnavailable)
		assert.Equal(t, entities.ItemStatusLost, f.status(t, item.ID))
	})

	t.Run("reference shelf prevents borrowing", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		reference := entities.CampusLocation{Name: "Reference", PreventBorrowing: true}
		require.NoError(t, f.db.Create(&reference).Error)
		item := f.item(t, "B-007")
		require.NoError(t, f.db.Model(item).Update("campus_location_id", reference.ID).Error)

		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-007"))

		assert.ErrorIs(t, err, circulation.ErrItemUnavailable)
		assert.Equal(t, entities.ItemStatusAvailable, f.status(t, item.ID))
	})

	t.Run("unknown item and borrower", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")

		_, err := f.repo.Borrow(ctx, draft(io.ID, 4242, "B-404"))
		assert.ErrorIs(t, err, circulation.ErrItemNotFound)

		_, err = f.repo.Borrow(ctx, draft(io.ID, 0, "B-404"))
		assert.ErrorIs(t, err, circulation.ErrItemNotFound)

		_, err = f.repo.Borrow(ctx, draft(4242, 1, "B-404"))
		assert.ErrorIs(t, err, circulation.ErrBorrowerNotFound)
	})

	t.Run("inactive borrower", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		require.NoError(t, f.db.Model(io).Update("active", false).Error)
		item := f.item(t, "B-008")

		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-008"))

		assert.ErrorIs(t, err, circulation.ErrBorrowerInactive)
	})

	t.Run("loan limit", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		first := f.item(t, "B-010")
		second := f.item(t, "B-011")

		d := draft(io.ID, first.ID, "B-010")
		d.MaxPerBorrower = 1
		_, err := f.repo.Borrow(ctx, d)
		require.NoError(t, err)

		d = draft(io.ID, second.ID, "B-011")
		d.MaxPerBorrower = 1
		_, err = f.repo.Borrow(ctx, d)

		assert.ErrorIs(t, err, circulation.ErrLoanLimitReached)
		assert.Equal(t, entities.ItemStatusAvailable, f.status(t, second.ID))
	})

	t.Run("stale status with existing loan hits unique index", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		europa := f.user(t, "europa")
		item := f.item(t, "B-012")
		require.NoError(t, f.db.Create(&entities.Loan{ItemID: item.ID, UserID: io.ID, BorrowDate: time.Now()}).Error)

		_, err := f.repo.Borrow(ctx, draft(europa.ID, item.ID, "B-012"))

		assert.ErrorIs(t, err, circulation.ErrAlreadyBorrowed)
		assert.Equal(t, int64(1), f.loanCount(t))
	})
}

func TestRepository_Borrow_Concurrent(t *testing.T) {
	f := setupTestDB(t)
	item := f.item(t, "B-100")

	const borrowers = 8
	users := make([]*entities.User, borrowers)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("moon%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := f.repo.Borrow(context.Background(), draft(userID, item.ID, "B-100"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, circulation.ErrAlreadyBorrowed):
				conflicts++
			default:
				others = append(others, err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, borrowers-1, conflicts)
	assert.Equal(t, int64(1), f.loanCount(t))
}

func TestRepository_Return(t *testing.T) {
	ctx := context.Background()

	t.Run("archives loan with original start date", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-200")
		started := time.Now().Add(-72 * time.Hour).Truncate(time.Second)

		d := draft(io.ID, item.ID, "B-200")
		d.BorrowDate = started
		_, err := f.repo.Borrow(ctx, d)
		require.NoError(t, err)

		returnedAt := time.Now()
		record, err := f.repo.Return(ctx, circulation.ReturnRequest{BorrowerID: io.ID, ItemID: item.ID, Accession: "B-200"}, returnedAt)

		require.NoError(t, err)
		assert.True(t, started.Equal(record.BorrowDate))
		assert.WithinDuration(t, returnedAt, record.ReturnDate, time.Second)
		assert.Equal(t, "Jupiter", record.UserGroup)
		assert.Equal(t, "io", record.UserName)
		assert.Equal(t, "B-200", record.ItemAccession)
		assert.Zero(t, f.loanCount(t))
		assert.Equal(t, entities.ItemStatusAvailable, f.status(t, item.ID))

		var records int64
		require.NoError(t, f.db.Model(&entities.LoanRecord{}).Count(&records).Error)
		assert.Equal(t, int64(1), records)
	})

	t.Run("someone else's loan is not borrowed", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		europa := f.user(t, "europa")
		item := f.item(t, "B-201")
		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-201"))
		require.NoError(t, err)

		_, err = f.repo.Return(ctx, circulation.ReturnRequest{BorrowerID: europa.ID, ItemID: item.ID, Accession: "B-201"}, time.Now())

		assert.ErrorIs(t, err, circulation.ErrNotBorrowed)
		assert.Equal(t, int64(1), f.loanCount(t))
		assert.Equal(t, entities.ItemStatusBorrowed, f.status(t, item.ID))
	})

	t.Run("item without loan is not borrowed", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-202")

		_, err := f.repo.Return(ctx, circulation.ReturnRequest{BorrowerID: io.ID, ItemID: item.ID, Accession: "B-202"}, time.Now())

		assert.ErrorIs(t, err, circulation.ErrNotBorrowed)
	})

	t.Run("accession mismatch keeps loan", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-203")
		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-203"))
		require.NoError(t, err)

		_, err = f.repo.Return(ctx, circulation.ReturnRequest{BorrowerID: io.ID, ItemID: item.ID, Accession: "B-000"}, time.Now())

		assert.ErrorIs(t, err, circulation.ErrAccessionMismatch)
		assert.Equal(t, int64(1), f.loanCount(t))

		var records int64
		require.NoError(t, f.db.Model(&entities.LoanRecord{}).Count(&records).Error)
		assert.Zero(t, records)
	})

	t.Run("concurrent returns archive once", func(t *testing.T) {
		f := setupTestDB(t)
		io := f.user(t, "io")
		item := f.item(t, "B-204")
		_, err := f.repo.Borrow(ctx, draft(io.ID, item.ID, "B-204"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.repo.Return(ctx, circulation.ReturnRequest{BorrowerID: io.ID, ItemID: item.ID, Accession: "B-204"}, time.Now())
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, circulation.ErrNotBorrowed)
		}
		assert.Equal(t, 1, succeeded)

		var records int64
		require.NoError(t, f.db.Model(&entities.LoanRecord{}).Count(&records).Error)
		assert.Equal(t, int64(1), records)
	})
}

func TestRepository_Queries(t *testing.T) {
	ctx := context.Background()
	f := setupTestDB(t)
	io := f.user(t, "io")
	first := f.item(t, "B-300")
	second := f.item(t, "B-301")

	past := time.Now().Add(-48 * time.Hour)
	d := draft(io.ID, first.ID, "B-300")
	d.DueDate = &past
	_, err := f.repo.Borrow(ctx, d)
	require.NoError(t, err)

	_, err = f.repo.Borrow(ctx, draft(io.ID, second.ID, "B-301"))
	require.NoError(t, err)
	_, err = f.repo.Return(ctx, circulation.ReturnRequest{BorrowerID: io.ID, ItemID: second.ID, Accession: "B-301"}, time.Now())
	require.NoError(t, err)

	t.Run("current loans", func(t *testing.T) {
		loans, err := f.repo.CurrentLoans(ctx, io.ID)
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, "B-300", loans[0].Item.Accession)
	})

	t.Run("past loans", func(t *testing.T) {
		records, total, err := f.repo.PastLoans(ctx, io.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, "B-301", records[0].ItemAccession)
	})

	t.Run("overdue loans", func(t *testing.T) {
		loans, err := f.repo.OverdueLoans(ctx, time.Now())
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, first.ID, loans[0].ItemID)
		assert.Equal(t, "Jupiter", loans[0].User.Group.Name)
	})

	t.Run("find by accession preloads holder", func(t *testing.T) {
		require.NoError(t, f.db.Model(io).Update("email", "io@jupiter.example").Error)

		item, err := f.repo.FindItemByAccession(ctx, "B-300")
		require.NoError(t, err)
		require.NotNil(t, item.Loan)
		require.NotNil(t, item.Loan.User)
		assert.Equal(t, "io", item.Loan.User.Name)
		assert.Equal(t, "Jupiter", item.Loan.User.Group.Name)
		assert.Empty(t, item.Loan.User.Username)
		assert.Empty(t, item.Loan.User.Email)

		_, err = f.repo.FindItemByAccession(ctx, "nope")
		assert.ErrorIs(t, err, circulation.ErrItemNotFound)
	})
}
