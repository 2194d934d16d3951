// Package admin is the back office: a JSON CRUD API over every table in the
// register, with the rules that keep loans consistent.
//
// # Usage
//
//	registry := admin.NewRegistry(db.DB, admin.Options{HashPassword: hasher})
//	items, _ := registry.Get("items")
//	created, err := items.Create(ctx, body)
package admin

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/entities"
)

// Sections, in index page order.
const (
	SectionRegistry = "Registry"
	SectionAccounts = "Accounts"
	SectionMetadata = "Metadata"
)

var sectionOrder = []string{SectionRegistry, SectionAccounts, SectionMetadata}

type Options struct {
	// HashPassword turns a plaintext password from a user payload into the
	// stored hash. It rejects passwords that are too short or too long.
	HashPassword func(password string) (string, error)
}

type Registry struct {
	resources map[string]Resource
	names     []string
}

// ResourceSummary is one row on the admin index page.
type ResourceSummary struct {
	Info
	Rows int64 `json:"rows"`
}

type SectionSummary struct {
	Name      string            `json:"name"`
	Resources []ResourceSummary `json:"resources"`
}

func NewRegistry(db *gorm.DB, opts Options) *Registry {
	r := &Registry{resources: make(map[string]Resource)}

	r.add(NewModel(db, Info{Name: "items", Label: "Items", Section: SectionRegistry}, itemHooks()))
	r.add(NewModel(db, Info{Name: "item-types", Label: "Item types", Section: SectionRegistry}, Hooks[entities.ItemType]{
		Order:        "name ASC",
		BeforeDelete: nullifyRefs[entities.ItemType]("items", "item_type_id"),
	}))
	r.add(NewModel(db, Info{Name: "subscriptions", Label: "Periodical subscriptions", Section: SectionRegistry}, Hooks[entities.PeriodicalSubscription]{
		New: func() *entities.PeriodicalSubscription {
			return &entities.PeriodicalSubscription{Frequency: entities.FrequencyUnknown, Current: true}
		},
		Preload:      []string{"PriceCurrency"},
		Order:        "periodical_name ASC",
		BeforeDelete: nullifyRefs[entities.PeriodicalSubscription]("items", "subscription_id"),
	}))

	r.add(NewModel(db, Info{Name: "users", Label: "Users", Section: SectionAccounts}, userHooks(opts.HashPassword)))
	r.add(NewModel(db, Info{Name: "groups", Label: "Groups", Section: SectionAccounts}, Hooks[entities.UserGroup]{
		Order:        "position ASC, name ASC",
		BeforeDelete: refuseIfReferenced[entities.UserGroup]("users", "group_id", "users"),
	}))
	r.add(NewModel(db, Info{Name: "roles", Label: "Roles", Section: SectionAccounts}, Hooks[entities.UserRole]{
		Order: "name ASC",
		BeforeDelete: func(tx *gorm.DB, role *entities.UserRole) error {
			return tx.Exec("DELETE FROM user_role_assignments WHERE user_role_id = ?", role.ID).Error
		},
	}))
	r.add(NewModel(db, Info{Name: "loan-records", Label: "Loan records", Section: SectionAccounts, ReadOnly: true}, Hooks[entities.LoanRecord]{
		Order: "return_date DESC",
	}))

	r.add(NewModel(db, Info{Name: "publishers", Label: "Publishers", Section: SectionMetadata}, Hooks[entities.Publisher]{
		Order:        "name ASC",
		BeforeDelete: nullifyRefs[entities.Publisher]("items", "publisher_id"),
	}))
	r.add(NewModel(db, Info{Name: "publish-places", Label: "Places of publication", Section: SectionMetadata}, Hooks[entities.PublishPlace]{
		Order:        "name ASC",
		BeforeDelete: nullifyRefs[entities.PublishPlace]("items", "publish_place_id"),
	}))
	r.add(NewModel(db, Info{Name: "locations", Label: "Campus locations", Section: SectionMetadata}, Hooks[entities.CampusLocation]{
		Order: "name ASC",
		BeforeDelete: func(tx *gorm.DB, location *entities.CampusLocation) error {
			if err := refuseIfReferenced[entities.CampusLocation]("items", "campus_location_id", "items")(tx, location); err != nil {
				return err
			}
			return nullifyRefs[entities.CampusLocation]("items", "promo_location_id")(tx, location)
		},
	}))
	r.add(NewModel(db, Info{Name: "genres", Label: "Genres", Section: SectionMetadata}, Hooks[entities.Genre]{
		Order: "name ASC",
		BeforeDelete: func(tx *gorm.DB, genre *entities.Genre) error {
			return tx.Exec("DELETE FROM item_genres WHERE genre_id = ?", genre.ID).Error
		},
	}))
	r.add(NewModel(db, Info{Name: "currencies", Label: "Currencies", Section: SectionMetadata}, Hooks[entities.Currency]{
		Order: "name ASC",
		BeforeDelete: func(tx *gorm.DB, currency *entities.Currency) error {
			if err := nullifyRefs[entities.Currency]("items", "price_currency_id")(tx, currency); err != nil {
				return err
			}
			return nullifyRefs[entities.Currency]("periodical_subscriptions", "price_currency_id")(tx, currency)
		},
	}))
	r.add(NewModel(db, Info{Name: "creators", Label: "Creators", Section: SectionMetadata}, Hooks[entities.Creator]{
		Order: "name ASC",
		BeforeDelete: func(tx *gorm.DB, creator *entities.Creator) error {
			for _, table := range []string{"item_authors", "item_editors", "item_illustrators"} {
				if err := tx.Exec("DELETE FROM "+table+" WHERE creator_id = ?", creator.ID).Error; err != nil {
					return fmt.Errorf("failed to unlink creator: %w", err)
				}
			}
			return nil
		},
	}))

	return r
}

func (r *Registry) add(res Resource) {
	name := res.Info().Name
	r.resources[name] = res
	r.names = append(r.names, name)
}

func (r *Registry) Get(name string) (Resource, error) {
	res, ok := r.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return res, nil
}

func (r *Registry) Resources() []Info {
	out := make([]Info, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.resources[name].Info())
	}
	return out
}

// Overview groups resources by section with their row counts.
func (r *Registry) Overview(ctx context.Context) ([]SectionSummary, error) {
	bySection := make(map[string][]ResourceSummary)
	for _, name := range r.names {
		res := r.resources[name]
		rows, err := res.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		info := res.Info()
		bySection[info.Section] = append(bySection[info.Section], ResourceSummary{Info: info, Rows: rows})
	}

	out := make([]SectionSummary, 0, len(sectionOrder))
	for _, section := range sectionOrder {
		resources := bySection[section]
		sort.SliceStable(resources, func(i, j int) bool {
			return resources[i].Label < resources[j].Label
		})
		out = append(out, SectionSummary{Name: section, Resources: resources})
	}
	return out, nil
}

func refuseIfReferenced[T any](table, column, what string) func(tx *gorm.DB, record *T) error {
	return func(tx *gorm.DB, record *T) error {
		var count int64
		if err := tx.Table(table).Where(column+" = ?", recordID(record)).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check %s: %w", table, err)
		}
		if count > 0 {
			return inUse(what)
		}
		return nil
	}
}

// requireRow reports a field error when id names no row of T.
func requireRow[T any](tx *gorm.DB, field string, id uint) error {
	var count int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check %s: %w", field, err)
	}
	if count == 0 {
		return fieldError(field, "unknown id")
	}
	return nil
}

func nullifyRefs[T any](table, column string) func(tx *gorm.DB, record *T) error {
	return func(tx *gorm.DB, record *T) error {
		err := tx.Table(table).Where(column+" = ?", recordID(record)).Update(column, nil).Error
		if err != nil {
			return fmt.Errorf("failed to detach %s: %w", table, err)
		}
		return nil
	}
}
