// Package store persists blocks. Every write runs in one transaction together
// with an outbox event describing the pages and blocks it touched.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notion-lite/workspace/database"
	"notion-lite/workspace/models"
)

const (
	BlockChangedEvent = "block.changed"
	BlockEntity       = "block"
)

var ErrNotFound = errors.New("block not found")

// Batch groups creates, patches and deletes that must land together.
type Batch struct {
	Creates []models.Block
	Patches []models.BlockPatch
	Deletes []uuid.UUID
}

func (b Batch) Empty() bool {
	return len(b.Creates) == 0 && len(b.Patches) == 0 && len(b.Deletes) == 0
}

type BlockStore interface {
	ListBlocks(ctx context.Context, userID uuid.UUID, pageID string) ([]models.Block, error)
	GetBlock(ctx context.Context, userID, id uuid.UUID) (models.Block, error)
	CreateBlock(ctx context.Context, block *models.Block) error
	PatchBlock(ctx context.Context, userID, id uuid.UUID, fields models.BlockFields) error
	DeleteBlock(ctx context.Context, userID, id uuid.UUID) error
	BatchPatch(ctx context.Context, userID uuid.UUID, patches []models.BlockPatch) error
	Apply(ctx context.Context, userID uuid.UUID, batch Batch) error
	PatchTaskStatus(ctx context.Context, userID, id uuid.UUID, status models.GTDStatus) error
}

type GormStore struct {
	db  *database.Database
	now func() time.Time
}

func NewGormStore(db *database.Database) *GormStore {
	return &GormStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

var orderByPosition = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "order"}},
	{Column: clause.Column{Name: "created_at"}},
	{Column: clause.Column{Name: "id"}},
}}

func (s *GormStore) ListBlocks(ctx context.Context, userID uuid.UUID, pageID string) ([]models.Block, error) {
	var blocks []models.Block
	err := s.db.DB.WithContext(ctx).
		Where("user_id = ? AND page_id = ?", userID, pageID).
		Clauses(orderByPosition).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		sanitize(&blocks[i])
	}
	return blocks, nil
}

func (s *GormStore) GetBlock(ctx context.Context, userID, id uuid.UUID) (models.Block, error) {
	var block models.Block
	err := s.db.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Block{}, ErrNotFound
	}
	if err != nil {
		return models.Block{}, err
	}
	sanitize(&block)
	return block, nil
}

// sanitize drops the empty metadata a NULL column scans into on non-todo blocks.
func sanitize(b *models.Block) {
	if !b.IsTodo() {
		b.TaskMetadata = nil
	}
}

func (s *GormStore) CreateBlock(ctx context.Context, block *models.Block) error {
	return s.Apply(ctx, block.UserID, Batch{Creates: []models.Block{*block}})
}

func (s *GormStore) PatchBlock(ctx context.Context, userID, id uuid.UUID, fields models.BlockFields) error {
	return s.Apply(ctx, userID, Batch{Patches: []models.BlockPatch{{ID: id, Fields: fields}}})
}

func (s *GormStore) DeleteBlock(ctx context.Context, userID, id uuid.UUID) error {
	return s.Apply(ctx, userID, Batch{Deletes: []uuid.UUID{id}})
}

func (s *GormStore) BatchPatch(ctx context.Context, userID uuid.UUID, patches []models.BlockPatch) error {
	return s.Apply(ctx, userID, Batch{Patches: patches})
}

// Apply writes the whole batch in one transaction. A patch or delete naming a
// block the user does not own aborts the batch with ErrNotFound.
func (s *GormStore) Apply(ctx context.Context, userID uuid.UUID, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	now := s.now()

	return s.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		change := models.BlockChange{UserID: userID}
		touch := func(pageID string, id uuid.UUID) {
			if !lo.Contains(change.PageIDs, pageID) {
				change.PageIDs = append(change.PageIDs, pageID)
			}
			change.BlockIDs = append(change.BlockIDs, id)
		}

		existingIDs := make([]uuid.UUID, 0, len(batch.Patches)+len(batch.Deletes))
		for _, p := range batch.Patches {
			existingIDs = append(existingIDs, p.ID)
		}
		existingIDs = lo.Uniq(append(existingIDs, batch.Deletes...))

		pageOf := map[uuid.UUID]string{}
		if len(existingIDs) > 0 {
			var rows []models.Block
			if err := tx.Select("id", "page_id").
				Where("user_id = ? AND id IN ?", userID, existingIDs).
				Find(&rows).Error; err != nil {
				return err
			}
			for _, r := range rows {
				pageOf[r.ID] = r.PageID
			}
			if len(pageOf) != len(existingIDs) {
				return ErrNotFound
			}
		}

		for i := range batch.Creates {
			b := batch.Creates[i]
			b.UserID = userID
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
			if err := tx.Create(&b).Error; err != nil {
				return fmt.Errorf("create block %s: %w", b.ID, err)
			}
			touch(b.PageID, b.ID)
		}

		for _, p := range batch.Patches {
			if p.Fields.IsEmpty() {
				continue
			}
			cols := p.Fields.Columns()
			cols["updated_at"] = now
			if err := tx.Model(&models.Block{}).
				Where("id = ? AND user_id = ?", p.ID, userID).
				Updates(cols).Error; err != nil {
				return fmt.Errorf("patch block %s: %w", p.ID, err)
			}
			touch(pageOf[p.ID], p.ID)
			if p.Fields.PageID != nil {
				touch(*p.Fields.PageID, p.ID)
			}
		}

		if len(batch.Deletes) > 0 {
			if err := tx.Where("user_id = ? AND id IN ?", userID, batch.Deletes).
				Delete(&models.Block{}).Error; err != nil {
				return fmt.Errorf("delete blocks: %w", err)
			}
			for _, id := range batch.Deletes {
				touch(pageOf[id], id)
			}
		}

		change.BlockIDs = lo.Uniq(change.BlockIDs)
		return writeEvent(tx, change)
	})
}

// PatchTaskStatus rewrites only the status inside a todo block's metadata.
// Done is left alone, so a concurrent completion is never undone.
func (s *GormStore) PatchTaskStatus(ctx context.Context, userID, id uuid.UUID, status models.GTDStatus) error {
	now := s.now()
	return s.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var block models.Block
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&block).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !block.IsTodo() {
			return nil
		}

		tm := block.TaskMetadata.Clone()
		if tm == nil {
			tm = &models.TaskMetadata{}
		}
		if tm.Status == status || tm.Status.Terminal() {
			return nil
		}
		tm.Status = status

		if err := tx.Model(&models.Block{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(map[string]interface{}{
				"task_metadata": tm,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		return writeEvent(tx, models.BlockChange{
			UserID:   userID,
			PageIDs:  []string{block.PageID},
			BlockIDs: []uuid.UUID{id},
		})
	})
}

func writeEvent(tx *gorm.DB, change models.BlockChange) error {
	event, err := models.NewEvent(BlockChangedEvent, BlockEntity, change)
	if err != nil {
		return err
	}
	return tx.Create(event).Error
}
