// Package reports runs the circulation reports shown in the back office.
// Queries are built with goqu for the connected dialect and executed through
// sqlx on the same pool gorm uses.
//
// # Usage
//
//	sqlxDB, _ := db.SQLX()
//	repo := reports.NewRepository(sqlxDB, db.Dialect())
//	rows, err := repo.LoansPerGroup(ctx, reports.Period{Since: monthStart})
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

const (
	tableItems       = "items"
	tableLoans       = "loans"
	tableLoanRecords = "loan_records"
	tableUsers       = "users"
	tableUserGroups  = "user_groups"

	aliasLoans = "loans"

	defaultTopItems = 10
)

// Period bounds a report by borrow date. Zero bounds are open.
type Period struct {
	Since time.Time
	Until time.Time
}

func (p Period) conditions(col exp.IdentifierExpression) []exp.Expression {
	var out []exp.Expression
	if !p.Since.IsZero() {
		out = append(out, col.Gte(p.Since))
	}
	if !p.Until.IsZero() {
		out = append(out, col.Lt(p.Until))
	}
	return out
}

type GroupLoans struct {
	Group string `db:"group_name" json:"group"`
	Loans int64  `db:"loans" json:"loans"`
}

type ItemLoans struct {
	Accession string `db:"accession" json:"accession"`
	Title     string `db:"title" json:"title"`
	Loans     int64  `db:"loans" json:"loans"`
}

type OverdueLoan struct {
	LoanID      int64     `db:"loan_id" json:"loan_id"`
	Accession   string    `db:"accession" json:"accession"`
	Title       string    `db:"title" json:"title"`
	Borrower    string    `db:"borrower" json:"borrower"`
	Group       string    `db:"group_name" json:"group"`
	BorrowDate  time.Time `db:"borrow_date" json:"borrow_date"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	DaysOverdue int       `db:"-" json:"days_overdue"`
}

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Items  int64  `db:"items" json:"items"`
}

type Repository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewRepository builds reports for the goqu dialect name ("sqlite3" or "postgres").
func NewRepository(db *sqlx.DB, dialect string) *Repository {
	return &Repository{db: db, dialect: goqu.Dialect(dialect)}
}

// LoansPerGroup counts loans started in the period, returned and still out,
// by borrower group. Returned loans count against the group recorded at
// return time.
func (r *Repository) LoansPerGroup(ctx context.Context, period Period) ([]GroupLoans, error) {
	past := r.dialect.From(tableLoanRecords).
		Select(goqu.C("user_group").As("group_name"), goqu.COUNT(goqu.Star()).As(aliasLoans)).
		Where(period.conditions(goqu.C("borrow_date"))...).
		GroupBy(goqu.C("user_group"))

	active := r.activeLoans().
		Join(goqu.T(tableUserGroups).As("g"), goqu.On(goqu.I("g.id").Eq(goqu.I("u.group_id")))).
		Select(goqu.I("g.name").As("group_name"), goqu.COUNT(goqu.Star()).As(aliasLoans)).
		Where(period.conditions(goqu.I("l.borrow_date"))...).
		GroupBy(goqu.I("g.name"))

	totals := make(map[string]int64)
	for _, ds := range []*goqu.SelectDataset{past, active} {
		var rows []GroupLoans
		if err := r.selectRows(ctx, &rows, ds); err != nil {
			return nil, err
		}
		for _, row := range rows {
			totals[row.Group] += row.Loans
		}
	}

	out := make([]GroupLoans, 0, len(totals))
	for group, loans := range totals {
		out = append(out, GroupLoans{Group: group, Loans: loans})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Loans != out[j].Loans {
			return out[i].Loans > out[j].Loans
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}

// MostBorrowed ranks items by loans started in the period.
func (r *Repository) MostBorrowed(ctx context.Context, period Period, limit int) ([]ItemLoans, error) {
	if limit <= 0 {
		limit = defaultTopItems
	}

	past := r.dialect.From(tableLoanRecords).
		Select(
			goqu.C("item_accession").As("accession"),
			goqu.C("item_title").As("title"),
			goqu.COUNT(goqu.Star()).As(aliasLoans),
		).
		Where(period.conditions(goqu.C("borrow_date"))...).
		GroupBy(goqu.C("item_accession"), goqu.C("item_title"))

	active := r.dialect.From(goqu.T(tableLoans).As("l")).
		Join(goqu.T(tableItems).As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("l.item_id")))).
		Select(goqu.I("i.accession"), goqu.I("i.title"), goqu.COUNT(goqu.Star()).As(aliasLoans)).
		Where(period.conditions(goqu.I("l.borrow_date"))...).
		GroupBy(goqu.I("i.accession"), goqu.I("i.title"))

	totals := make(map[string]*ItemLoans)
	for _, ds := range []*goqu.SelectDataset{past, active} {
		var rows []ItemLoans
		if err := r.selectRows(ctx, &rows, ds); err != nil {
			return nil, err
		}
		for _, row := range rows {
			if existing, ok := totals[row.Accession]; ok {
				existing.Loans += row.Loans
				continue
			}
			row := row
			totals[row.Accession] = &row
		}
	}

	out := make([]ItemLoans, 0, len(totals))
	for _, row := range totals {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Loans != out[j].Loans {
			return out[i].Loans > out[j].Loans
		}
		return out[i].Accession < out[j].Accession
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OverdueLoans lists active loans past their due date, oldest due first.
func (r *Repository) OverdueLoans(ctx context.Context, now time.Time) ([]OverdueLoan, error) {
	ds := r.activeLoans().
		Join(goqu.T(tableItems).As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("l.item_id")))).
		Join(goqu.T(tableUserGroups).As("g"), goqu.On(goqu.I("g.id").Eq(goqu.I("u.group_id")))).
		Select(
			goqu.I("l.id").As("loan_id"),
			goqu.I("i.accession"),
			goqu.I("i.title"),
			goqu.I("u.name").As("borrower"),
			goqu.I("g.name").As("group_name"),
			goqu.I("l.borrow_date"),
			goqu.I("l.due_date"),
		).
		Where(goqu.I("l.due_date").IsNotNull(), goqu.I("l.due_date").Lt(now)).
		Order(goqu.I("l.due_date").Asc(), goqu.I("l.id").Asc())

	var rows []OverdueLoan
	if err := r.selectRows(ctx, &rows, ds); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].DaysOverdue = int(now.Sub(rows[i].DueDate).Hours() / 24)
	}
	return rows, nil
}

// StatusCounts counts catalogue items per status.
func (r *Repository) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	ds := r.dialect.From(tableItems).
		Select(goqu.C("status"), goqu.COUNT(goqu.Star()).As("items")).
		GroupBy(goqu.C("status")).
		Order(goqu.C("status").Asc())

	var rows []StatusCount
	if err := r.selectRows(ctx, &rows, ds); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) activeLoans() *goqu.SelectDataset {
	return r.dialect.From(goqu.T(tableLoans).As("l")).
		Join(goqu.T(tableUsers).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id"))))
}

func (r *Repository) selectRows(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build report query: %w", err)
	}
	if err := r.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("report query failed: %w", err)
	}
	return nil
}
