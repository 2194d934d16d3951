// Package catalog provides database operations for the accession register:
// items and the metadata they point at.
//
// # Usage
//
//	repo := catalog.NewRepository(db)
//	author, err := repo.GetOrCreateCreator("Ada Lovelace")
//	err = repo.CreateItem(&entities.Item{Accession: "B-001", Title: "...", Authors: []entities.Creator{*author}})
package catalog

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/entities"
)

// Repository handles catalogue database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateItem inserts an item with its creator and genre links. Items start
// available; a loan is only ever created by borrowing.
func (r *Repository) CreateItem(item *entities.Item) error {
	item.Accession = strings.TrimSpace(item.Accession)
	if item.Kind == "" {
		item.Kind = entities.ItemKindBook
	}
	if item.Status == "" || item.Status == entities.ItemStatusBorrowed {
		item.Status = entities.ItemStatusAvailable
	}
	item.Loan = nil
	return r.db.Omit("CampusLocation", "PromoLocation", "PriceCurrency", "ItemType", "Publisher", "PublishPlace", "Subscription").
		Create(item).Error
}

// SearchItems matches title or accession, case-insensitively.
func (r *Repository) SearchItems(query string, limit int) ([]entities.Item, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var items []entities.Item
	err := r.db.
		Preload("CampusLocation").
		Preload("Loan").
		Where("LOWER(title) LIKE ? OR LOWER(accession) LIKE ?", pattern, pattern).
		Order("title ASC, accession ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *Repository) GetOrCreateLocation(name string, preventBorrowing bool) (*entities.CampusLocation, error) {
	location := entities.CampusLocation{Name: name}
	err := r.db.Where(entities.CampusLocation{Name: name}).
		Attrs(entities.CampusLocation{PreventBorrowing: preventBorrowing}).
		FirstOrCreate(&location).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", name, err)
	}
	return &location, nil
}

func (r *Repository) GetOrCreateCreator(name string) (*entities.Creator, error) {
	creator := entities.Creator{Name: name}
	if err := r.db.Where(entities.Creator{Name: name}).FirstOrCreate(&creator).Error; err != nil {
		return nil, fmt.Errorf("failed to get creator %s: %w", name, err)
	}
	return &creator, nil
}

func (r *Repository) GetOrCreateGenre(name string) (*entities.Genre, error) {
	genre := entities.Genre{Name: name}
	if err := r.db.Where(entities.Genre{Name: name}).FirstOrCreate(&genre).Error; err != nil {
		return nil, fmt.Errorf("failed to get genre %s: %w", name, err)
	}
	return &genre, nil
}

func (r *Repository) GetOrCreatePublisher(name string) (*entities.Publisher, error) {
	publisher := entities.Publisher{Name: name}
	if err := r.db.Where(entities.Publisher{Name: name}).FirstOrCreate(&publisher).Error; err != nil {
		return nil, fmt.Errorf("failed to get publisher %s: %w", name, err)
	}
	return &publisher, nil
}

func (r *Repository) GetItemTypeByName(name string) (*entities.ItemType, error) {
	var itemType entities.ItemType
	if err := r.db.Where("name = ?", name).First(&itemType).Error; err != nil {
		return nil, err
	}
	return &itemType, nil
}

// ExpireSubscriptions clears the current flag on subscriptions whose expiry
// date is before today. Returns the number of subscriptions changed.
func (r *Repository) ExpireSubscriptions(now time.Time) (int64, error) {
	result := r.db.Model(&entities.PeriodicalSubscription{}).
		Where("is_current = ? AND expiry IS NOT NULL AND expiry < ?", true, entities.StartOfDay(now)).
		Update("is_current", false)
	return result.RowsAffected, result.Error
}
