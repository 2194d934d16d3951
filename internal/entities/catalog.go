package entities

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type ItemKind string

const (
	ItemKindBook       ItemKind = "book"
	ItemKindPeriodical ItemKind = "periodical"
)

type ItemStatus string

const (
	ItemStatusAvailable   ItemStatus = "available"
	ItemStatusBorrowed    ItemStatus = "borrowed"
	ItemStatusLost        ItemStatus = "lost"
	ItemStatusDiscarded   ItemStatus = "discarded"
	ItemStatusQuarantined ItemStatus = "quarantined"
)

// Item is one accessioned copy in the register. Book and periodical fields
// share the table; Kind says which set is meaningful.
type Item struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Accession string     `gorm:"uniqueIndex;size:64;not null" json:"accession" validate:"required,max=64"` // Legacy values carry prefixes
	Kind      ItemKind   `gorm:"index;size:20;not null" json:"kind" validate:"required,oneof=book periodical"`
	Status    ItemStatus `gorm:"index;size:20;not null" json:"status" validate:"required,oneof=available borrowed lost discarded quarantined"`

	Title    string   `gorm:"index;size:128;not null" json:"title" validate:"required,max=128"`
	Subtitle string   `gorm:"size:128" json:"subtitle,omitempty" validate:"max=128"`
	Keywords []string `gorm:"serializer:json" json:"keywords,omitempty" validate:"dive,max=16"`
	Comments string   `gorm:"type:text" json:"comments,omitempty"`

	CampusLocationID uint            `gorm:"index;not null" json:"campus_location_id" validate:"required"`
	CampusLocation   CampusLocation  `gorm:"foreignKey:CampusLocationID" json:"campus_location,omitempty" validate:"-"`
	PromoLocationID  *uint           `json:"promo_location_id,omitempty"` // Temporary display spot
	PromoLocation    *CampusLocation `gorm:"foreignKey:PromoLocationID" json:"promo_location,omitempty" validate:"-"`

	PriceCents      int64          `json:"price_cents" validate:"gte=0"`
	PriceCurrencyID *uint          `json:"price_currency_id,omitempty"`
	PriceCurrency   *Currency      `gorm:"foreignKey:PriceCurrencyID" json:"price_currency,omitempty" validate:"-"`
	ReceiptDate     datatypes.Date `json:"receipt_date"`
	Source          string         `gorm:"size:128" json:"source,omitempty" validate:"max=128"`
	ItemTypeID      *uint          `json:"item_type_id,omitempty"`
	ItemType        *ItemType      `gorm:"foreignKey:ItemTypeID" json:"item_type,omitempty" validate:"-"`

	// Book
	CallNumbers     []string      `gorm:"serializer:json" json:"call_numbers,omitempty" validate:"dive,max=8"`
	PublisherID     *uint         `json:"publisher_id,omitempty"`
	Publisher       *Publisher    `gorm:"foreignKey:PublisherID" json:"publisher,omitempty" validate:"-"`
	PublishPlaceID  *uint         `json:"publish_place_id,omitempty"`
	PublishPlace    *PublishPlace `gorm:"foreignKey:PublishPlaceID" json:"publish_place,omitempty" validate:"-"`
	PublicationYear int           `json:"publication_year,omitempty" validate:"gte=0,lte=9999"`
	ISBN            string        `gorm:"index;size:17" json:"isbn,omitempty" validate:"max=17"`
	Authors         []Creator     `gorm:"many2many:item_authors;" json:"authors,omitempty" validate:"-"`
	Editors         []Creator     `gorm:"many2many:item_editors;" json:"editors,omitempty" validate:"-"`
	Illustrators    []Creator     `gorm:"many2many:item_illustrators;" json:"illustrators,omitempty" validate:"-"`
	Genres          []Genre       `gorm:"many2many:item_genres;" json:"genres,omitempty" validate:"-"`

	// Periodical
	SubscriptionID *uint                   `gorm:"index" json:"subscription_id,omitempty"`
	Subscription   *PeriodicalSubscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty" validate:"-"`
	VolumeNo       int                     `json:"volume_no,omitempty" validate:"gte=0"`
	VolumeIssue    int                     `json:"volume_issue,omitempty" validate:"gte=0"`
	IssueNo        int                     `json:"issue_no,omitempty" validate:"gte=0"`
	IssueDate      *datatypes.Date         `json:"issue_date,omitempty"`
	HideIssueDay   bool                    `json:"hide_issue_day"` // "May 2015" instead of "22 May 2015"

	Loan *Loan `gorm:"foreignKey:ItemID" json:"loan,omitempty" validate:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string {
	return "items"
}

func (i *Item) DisplayTitle() string {
	if i.Kind != ItemKindPeriodical || i.IssueDate == nil {
		return i.Title
	}
	d := time.Time(*i.IssueDate)
	if i.HideIssueDay {
		return fmt.Sprintf("%s, %s %d", i.Title, d.Month(), d.Year())
	}
	return fmt.Sprintf("%s, %d %s %d", i.Title, d.Day(), d.Month(), d.Year())
}

func (i *Item) IsBorrowed() bool {
	return i.Loan != nil
}

// IsCirculating reports whether the item could be lent out at all,
// ignoring any current loan.
func (i *Item) IsCirculating() bool {
	switch i.Status {
	case ItemStatusLost, ItemStatusDiscarded, ItemStatusQuarantined:
		return false
	}
	return !i.CampusLocation.PreventBorrowing
}
