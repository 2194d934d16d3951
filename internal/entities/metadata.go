package entities

import (
	"time"

	"gorm.io/datatypes"
)

type Publisher struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name" validate:"required,max=128"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Publisher) TableName() string {
	return "publishers"
}

type PublishPlace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name" validate:"required,max=128"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PublishPlace) TableName() string {
	return "publish_places"
}

// Creator is an author, editor or illustrator.
type Creator struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name" validate:"required,max=128"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Creator) TableName() string {
	return "creators"
}

type Genre struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name" validate:"required,max=32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Genre) TableName() string {
	return "genres"
}

type ItemType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name" validate:"required,max=64"`
	Prefix    string    `gorm:"size:8" json:"prefix" validate:"max=8"` // Accession prefix, e.g. "B-"
	IconName  string    `gorm:"size:32" json:"icon_name" validate:"max=32"`
	IconColor string    `gorm:"size:16" json:"icon_color" validate:"max=16"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ItemType) TableName() string {
	return "item_types"
}

type SubscriptionFrequency string

const (
	FrequencyUnknown     SubscriptionFrequency = "unknown"
	FrequencyMonthly     SubscriptionFrequency = "monthly"
	FrequencyBimonthly   SubscriptionFrequency = "bimonthly"
	FrequencyFortnightly SubscriptionFrequency = "fortnightly"
	FrequencyWeekly      SubscriptionFrequency = "weekly"
	FrequencyQuarterly   SubscriptionFrequency = "quarterly"
)

type PeriodicalSubscription struct {
	ID                 uint                  `gorm:"primaryKey" json:"id"`
	PeriodicalName     string                `gorm:"size:64;not null" json:"periodical_name" validate:"required,max=64"`
	Description        string                `gorm:"type:text" json:"description,omitempty"`
	Frequency          SubscriptionFrequency `gorm:"size:16" json:"frequency" validate:"omitempty,oneof=unknown monthly bimonthly fortnightly weekly quarterly"`
	Current            bool                  `gorm:"column:is_current;index" json:"current"`
	Expiry             *datatypes.Date       `json:"expiry,omitempty"`
	PriceCents         int64                 `json:"price_cents" validate:"gte=0"`
	PriceCurrencyID    *uint                 `json:"price_currency_id,omitempty"`
	PriceCurrency      *Currency             `gorm:"foreignKey:PriceCurrencyID" json:"price_currency,omitempty" validate:"-"`
	SubscriptionNumber string                `gorm:"size:64" json:"subscription_number,omitempty" validate:"max=64"`
	ReceiptMode        string                `gorm:"size:64" json:"receipt_mode,omitempty" validate:"max=64"` // Post, hand delivery, newsagent
	Comments           string                `gorm:"type:text" json:"comments,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func (PeriodicalSubscription) TableName() string {
	return "periodical_subscriptions"
}

// IsExpired reports whether the expiry date has passed. A subscription is
// still valid on its expiry day.
func (s *PeriodicalSubscription) IsExpired(now time.Time) bool {
	if s.Expiry == nil {
		return false
	}
	return time.Time(*s.Expiry).Before(StartOfDay(now))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
