package entities

import "time"

// Loan is the active borrowing of one item. The unique index on ItemID
// keeps an item to at most one holder.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ItemID     uint       `gorm:"uniqueIndex;not null" json:"item_id"`
	Item       *Item      `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    *time.Time `gorm:"index" json:"due_date,omitempty"`
	IsLongTerm bool       `json:"is_longterm"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Loan) TableName() string {
	return "loans"
}

func (l *Loan) IsOverdue(now time.Time) bool {
	return l.DueDate != nil && l.DueDate.Before(now)
}

// LoanRecord is the archived form of a finished loan. Item and borrower
// details are copied in so the history survives their deletion.
type LoanRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ItemID        *uint     `gorm:"index" json:"item_id,omitempty"`
	Item          *Item     `gorm:"foreignKey:ItemID;constraint:OnDelete:SET NULL" json:"item,omitempty"`
	ItemAccession string    `gorm:"size:64" json:"item_accession"`
	ItemTitle     string    `gorm:"size:256" json:"item_title"`
	UserID        *uint     `gorm:"index" json:"user_id,omitempty"`
	User          *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	UserName      string    `gorm:"size:24" json:"user_name"`
	UserGroup     string    `gorm:"size:128" json:"user_group"` // Group at return time
	BorrowDate    time.Time `gorm:"not null" json:"borrow_date"`
	ReturnDate    time.Time `gorm:"index;not null" json:"return_date"`
	CreatedAt     time.Time `json:"created_at"`
}

func (LoanRecord) TableName() string {
	return "loan_records"
}

func (r *LoanRecord) Duration() time.Duration {
	return r.ReturnDate.Sub(r.BorrowDate)
}
