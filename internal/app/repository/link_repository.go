package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/SnapLink/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errCodeTaken = errors.New("code already allocated")

// insertAttempts bounds retries when a conflicting insert from another
// transaction rolled back before we could see it.
const insertAttempts = 3

// LinkRepository is a GORM-backed LinkStore. Uniqueness rests on the primary
// key of the links table; click order is the order of the serial click id,
// which is assigned while the parent link row is locked.
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkStore.
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Models lists the tables this repository needs migrated.
func Models() []interface{} {
	return []interface{}{&model.LinkRecord{}, &model.ClickEvent{}}
}

func (r *LinkRepository) Insert(ctx context.Context, record model.LinkRecord) (bool, error) {
	taken, err := r.InsertAll(ctx, []model.LinkRecord{record})
	if err != nil {
		return false, err
	}
	return len(taken) == 0, nil
}

func (r *LinkRepository) InsertAll(ctx context.Context, records []model.LinkRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if repeated := repeatedCodes(records); len(repeated) > 0 {
		return repeated, nil
	}

	codes := make([]string, len(records))
	for i, rec := range records {
		codes[i] = rec.Code
	}

	for attempt := 0; attempt < insertAttempts; attempt++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return insertRows(tx, records)
		})
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, errCodeTaken) {
			return nil, fmt.Errorf("insert links: %w", err)
		}

		var taken []string
		if err := r.db.WithContext(ctx).
			Model(&model.LinkRecord{}).
			Where("code IN ?", codes).
			Pluck("code", &taken).Error; err != nil {
			return nil, fmt.Errorf("load taken codes: %w", err)
		}
		if len(taken) > 0 {
			return taken, nil
		}
	}

	return nil, fmt.Errorf("insert links: conflict on codes %v did not settle", codes)
}

func insertRows(tx *gorm.DB, records []model.LinkRecord) error {
	heads := make([]model.LinkRecord, len(records))
	var clicks []model.ClickEvent
	for i, rec := range records {
		heads[i] = rec
		heads[i].Clicks = nil
		for _, c := range rec.Clicks {
			c.ID = 0
			c.LinkCode = rec.Code
			clicks = append(clicks, c)
		}
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&heads)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(heads)) {
		return errCodeTaken
	}

	if len(clicks) > 0 {
		if err := tx.Create(&clicks).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *LinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&model.LinkRecord{}).
		Where("code = ?", code).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *LinkRepository) Lookup(ctx context.Context, code string) (*model.LinkRecord, error) {
	var link model.LinkRecord
	if err := r.db.WithContext(ctx).
		Preload("Clicks", orderClicks).
		Where("code = ?", code).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.Clicks == nil {
		link.Clicks = []model.ClickEvent{}
	}
	return &link, nil
}

func (r *LinkRepository) AppendClick(ctx context.Context, code string, event model.ClickEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head model.LinkRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("code").
			Where("code = ?", code).
			First(&head).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLinkNotFound
			}
			return err
		}

		event.ID = 0
		event.LinkCode = code
		return tx.Create(&event).Error
	})
}

func (r *LinkRepository) ListAll(ctx context.Context) ([]model.LinkRecord, error) {
	var result []model.LinkRecord
	if err := r.db.WithContext(ctx).
		Preload("Clicks", orderClicks).
		Order("created_at ASC, code ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	for i := range result {
		if result[i].Clicks == nil {
			result[i].Clicks = []model.ClickEvent{}
		}
	}
	return result, nil
}

func orderClicks(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

var _ LinkStore = (*LinkRepository)(nil)
