package admin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/growlin/internal/database"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Info describes a resource for the index page and the API.
type Info struct {
	Name     string `json:"name"` // URL segment
	Label    string `json:"label"`
	Section  string `json:"section"`
	ReadOnly bool   `json:"read_only"` // List, get and delete only
}

// Resource is one CRUD-able table in the back office.
type Resource interface {
	Info() Info
	List(ctx context.Context, limit, offset int) (any, int64, error)
	Get(ctx context.Context, id uint) (any, error)
	Create(ctx context.Context, body []byte) (any, error)
	Update(ctx context.Context, id uint, body []byte) (any, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

// Association is a many-to-many field replaced from a list of IDs when its
// JSON key is present in a payload.
type Association struct {
	Field string // Struct field, e.g. "Authors"
	Key   string // JSON key, e.g. "authors"
}

// Hooks customise a Model. Every hook runs inside the write transaction.
type Hooks[T any] struct {
	New          func() *T // Defaults for created records
	Preload      []string
	Order        string
	Associations []Association

	// BeforeSave sees the stored record (nil on create), the record about to
	// be written and the raw payload.
	BeforeSave   func(tx *gorm.DB, current, next *T, body []byte) error
	BeforeDelete func(tx *gorm.DB, record *T) error
}

// Model is a Resource backed by a gorm model whose primary key is a uint ID.
type Model[T any] struct {
	info  Info
	db    *gorm.DB
	hooks Hooks[T]
}

func NewModel[T any](db *gorm.DB, info Info, hooks Hooks[T]) *Model[T] {
	if hooks.Order == "" {
		hooks.Order = "id ASC"
	}
	return &Model[T]{info: info, db: db, hooks: hooks}
}

func (m *Model[T]) Info() Info {
	return m.info
}

func (m *Model[T]) List(ctx context.Context, limit, offset int) (any, int64, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := m.db.WithContext(ctx).Model(new(T)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", m.info.Name, err)
	}

	records := make([]T, 0)
	err := m.preloaded(m.db.WithContext(ctx)).
		Order(m.hooks.Order).
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", m.info.Name, err)
	}
	return records, total, nil
}

func (m *Model[T]) Get(ctx context.Context, id uint) (any, error) {
	return m.load(m.db.WithContext(ctx), id, true)
}

func (m *Model[T]) Count(ctx context.Context) (int64, error) {
	var total int64
	err := m.db.WithContext(ctx).Model(new(T)).Count(&total).Error
	return total, err
}

func (m *Model[T]) Create(ctx context.Context, body []byte) (any, error) {
	if m.info.ReadOnly {
		return nil, ErrReadOnly
	}

	var created *T
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := new(T)
		if m.hooks.New != nil {
			next = m.hooks.New()
		}
		if err := json.Unmarshal(body, next); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		setID(next, 0)

		if err := m.check(tx, nil, next, body); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(next).Error; err != nil {
			return m.writeError(err)
		}
		if err := m.replaceAssociations(tx, next, body); err != nil {
			return err
		}

		var err error
		created, err = m.load(tx, recordID(next), true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies a partial JSON payload on top of the stored record.
func (m *Model[T]) Update(ctx context.Context, id uint, body []byte) (any, error) {
	if m.info.ReadOnly {
		return nil, ErrReadOnly
	}

	var updated *T
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := m.load(forUpdate(tx), id, false)
		if err != nil {
			return err
		}
		next := new(T)
		*next = *current
		if err := json.Unmarshal(body, next); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		setID(next, id)

		if err := m.check(tx, current, next, body); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(next).Error; err != nil {
			return m.writeError(err)
		}
		if err := m.replaceAssociations(tx, next, body); err != nil {
			return err
		}

		updated, err = m.load(tx, id, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (m *Model[T]) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := m.load(forUpdate(tx), id, false)
		if err != nil {
			return err
		}
		if m.hooks.BeforeDelete != nil {
			if err := m.hooks.BeforeDelete(tx, record); err != nil {
				return err
			}
		}
		for _, a := range m.hooks.Associations {
			if err := tx.Model(record).Association(a.Field).Clear(); err != nil {
				return fmt.Errorf("failed to unlink %s: %w", a.Key, err)
			}
		}
		if err := tx.Delete(record).Error; err != nil {
			if database.IsForeignKeyViolation(err) {
				return inUse("other records")
			}
			return fmt.Errorf("failed to delete %s %d: %w", m.info.Name, id, err)
		}
		return nil
	})
}

func (m *Model[T]) check(tx *gorm.DB, current, next *T, body []byte) error {
	if err := validate.Struct(next); err != nil {
		return fromValidator(err)
	}
	if m.hooks.BeforeSave != nil {
		return m.hooks.BeforeSave(tx, current, next, body)
	}
	return nil
}

// forUpdate row-locks the next read until the transaction ends. SQLite has no
// row locks and relies on the immediate write lock taken at BEGIN instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func (m *Model[T]) load(tx *gorm.DB, id uint, withRelations bool) (*T, error) {
	record := new(T)
	query := tx
	if withRelations {
		query = m.preloaded(tx)
	}
	if err := query.First(record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %s %d: %w", m.info.Name, id, err)
	}
	return record, nil
}

func (m *Model[T]) preloaded(tx *gorm.DB) *gorm.DB {
	for _, p := range m.hooks.Preload {
		tx = tx.Preload(p)
	}
	return tx
}

func (m *Model[T]) writeError(err error) error {
	switch {
	case database.IsUniqueViolation(err):
		return ErrDuplicate
	case database.IsForeignKeyViolation(err):
		return &ValidationError{Fields: map[string]string{"_": "refers to a missing record"}}
	}
	return fmt.Errorf("failed to save %s: %w", m.info.Name, err)
}

// replaceAssociations swaps many-to-many links for the ones named in the
// payload. Only "id" is read from each linked object.
func (m *Model[T]) replaceAssociations(tx *gorm.DB, record *T, body []byte) error {
	for _, a := range m.hooks.Associations {
		if jsoniter.Get(body, a.Key).ValueType() == jsoniter.InvalidValue {
			continue
		}

		field := reflect.ValueOf(record).Elem().FieldByName(a.Field)
		ids := make([]uint, 0, field.Len())
		seen := make(map[uint]bool, field.Len())
		for i := 0; i < field.Len(); i++ {
			id := uint(field.Index(i).FieldByName("ID").Uint())
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}

		association := tx.Model(record).Association(a.Field)
		if len(ids) == 0 {
			if err := association.Clear(); err != nil {
				return fmt.Errorf("failed to clear %s: %w", a.Key, err)
			}
			continue
		}

		linked := reflect.New(field.Type())
		if err := tx.Where("id IN ?", ids).Find(linked.Interface()).Error; err != nil {
			return fmt.Errorf("failed to load %s: %w", a.Key, err)
		}
		if linked.Elem().Len() != len(ids) {
			return fieldError(a.Key, "unknown id")
		}
		if err := association.Replace(linked.Interface()); err != nil {
			return fmt.Errorf("failed to link %s: %w", a.Key, err)
		}
	}
	return nil
}

func setID(record any, id uint) {
	reflect.ValueOf(record).Elem().FieldByName("ID").SetUint(uint64(id))
}

func recordID(record any) uint {
	return uint(reflect.ValueOf(record).Elem().FieldByName("ID").Uint())
}

// RecordID returns the primary key of a record returned by a Resource,
// or 0 when it has none.
func RecordID(record any) uint {
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return 0
	}
	if f := v.Elem().FieldByName("ID"); f.IsValid() && f.CanUint() {
		return uint(f.Uint())
	}
	return 0
}
