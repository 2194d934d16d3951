package admin

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/entities"
)

func itemHooks() Hooks[entities.Item] {
	return Hooks[entities.Item]{
		New: func() *entities.Item {
			return &entities.Item{Kind: entities.ItemKindBook, Status: entities.ItemStatusAvailable}
		},
		Preload: []string{"CampusLocation", "ItemType", "Authors", "Genres", "Loan"},
		Order:   "accession ASC",
		Associations: []Association{
			{Field: "Authors", Key: "authors"},
			{Field: "Editors", Key: "editors"},
			{Field: "Illustrators", Key: "illustrators"},
			{Field: "Genres", Key: "genres"},
		},
		BeforeSave:   checkItem,
		BeforeDelete: checkItemDelete,
	}
}

// checkItem keeps the borrowed status in the hands of circulation: only a
// borrow sets it and only a return clears it.
func checkItem(tx *gorm.DB, current, next *entities.Item, _ []byte) error {
	next.Accession = strings.TrimSpace(next.Accession)
	if next.Accession == "" {
		return fieldError("accession", "required")
	}
	next.Loan = nil
	if err := requireRow[entities.CampusLocation](tx, "campus_location_id", next.CampusLocationID); err != nil {
		return err
	}

	if current == nil {
		if next.Status == entities.ItemStatusBorrowed {
			return ErrSetBorrowed
		}
		return nil
	}

	wasBorrowed := current.Status == entities.ItemStatusBorrowed
	switch {
	case !wasBorrowed && next.Status == entities.ItemStatusBorrowed:
		return ErrSetBorrowed
	case wasBorrowed && next.Status != entities.ItemStatusBorrowed:
		return ErrClearBorrowed
	case wasBorrowed && next.Accession != current.Accession:
		return ErrAccessionBorrowed
	}
	return nil
}

func checkItemDelete(tx *gorm.DB, item *entities.Item) error {
	if item.Status == entities.ItemStatusBorrowed {
		return ErrDeleteBorrowed
	}
	var loans int64
	if err := tx.Model(&entities.Loan{}).Where("item_id = ?", item.ID).Count(&loans).Error; err != nil {
		return fmt.Errorf("failed to check loans: %w", err)
	}
	if loans > 0 {
		return ErrDeleteBorrowed
	}
	return nullifyRefs[entities.Item]("loan_records", "item_id")(tx, item)
}

func userHooks(hashPassword func(string) (string, error)) Hooks[entities.User] {
	return Hooks[entities.User]{
		New: func() *entities.User {
			return &entities.User{Active: true}
		},
		Preload:      []string{"Group", "Roles"},
		Order:        "name ASC, username ASC",
		Associations: []Association{{Field: "Roles", Key: "roles"}},
		BeforeSave: func(tx *gorm.DB, _, next *entities.User, body []byte) error {
			next.Username = strings.TrimSpace(next.Username)
			if err := requireRow[entities.UserGroup](tx, "group_id", next.GroupID); err != nil {
				return err
			}

			password := jsoniter.Get(body, "password").ToString()
			if password == "" {
				return nil
			}
			if hashPassword == nil {
				return fieldError("password", "passwords cannot be set here")
			}
			hash, err := hashPassword(password)
			if err != nil {
				return fieldError("password", err.Error())
			}
			next.PasswordHash = hash
			next.FailedLoginAttempts = 0
			next.LockedUntil = nil
			return nil
		},
		BeforeDelete: func(tx *gorm.DB, user *entities.User) error {
			var loans int64
			if err := tx.Model(&entities.Loan{}).Where("user_id = ?", user.ID).Count(&loans).Error; err != nil {
				return fmt.Errorf("failed to check loans: %w", err)
			}
			if loans > 0 {
				return ErrBorrowerHasLoans
			}
			return nullifyRefs[entities.User]("loan_records", "user_id")(tx, user)
		},
	}
}
