package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"notion-lite/workspace/metadata"
	"notion-lite/workspace/models"
	"notion-lite/workspace/outline"
	"notion-lite/workspace/store"
	"notion-lite/workspace/utils/shortcuts"
	"notion-lite/workspace/utils/tokens"
)

// BlockInput is a client supplied draft. An empty Type is inferred from a
// markdown shortcut at the start of Content.
type BlockInput struct {
	Type        models.BlockType `json:"type"`
	Content     string           `json:"content"`
	IndentLevel int              `json:"indentLevel"`
	IsChecked   bool             `json:"isChecked"`
}

// DropRequest describes a finished drag. Position wins over Geometry when both
// are set. An empty TargetPageID keeps the block on its page.
type DropRequest struct {
	BlockID       uuid.UUID
	TargetID      *uuid.UUID
	TargetPageID  string
	Position      outline.DropPosition
	Geometry      *outline.Geometry
	ChildBlockIDs []uuid.UUID
}

// Result reports the outcome of a block operation. Pages holds the ordered
// blocks of every page the operation wrote.
type Result struct {
	NoOp    bool                      `json:"noOp"`
	BlockID *uuid.UUID                `json:"blockId,omitempty"`
	Pages   map[string][]models.Block `json:"pages,omitempty"`
}

type BlockServiceInterface interface {
	ListBlocks(ctx context.Context, userID uuid.UUID, pageID string) ([]models.Block, error)
	CreateAfter(ctx context.Context, userID uuid.UUID, pageID string, anchor *uuid.UUID, in BlockInput) (Result, error)
	ImportDrafts(ctx context.Context, userID uuid.UUID, pageID string, anchor *uuid.UUID, drafts []BlockInput) (Result, error)
	Append(ctx context.Context, userID uuid.UUID, pageID string, in BlockInput) (Result, error)
	UpdateContent(ctx context.Context, userID, id uuid.UUID, content string) (Result, error)
	ChangeType(ctx context.Context, userID, id uuid.UUID, typ models.BlockType) (Result, error)
	Indent(ctx context.Context, userID, id uuid.UUID) (Result, error)
	Outdent(ctx context.Context, userID, id uuid.UUID) (Result, error)
	MoveUp(ctx context.Context, userID, id uuid.UUID) (Result, error)
	MoveDown(ctx context.Context, userID, id uuid.UUID) (Result, error)
	Duplicate(ctx context.Context, userID, id uuid.UUID) (Result, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (Result, error)
	SetChecked(ctx context.Context, userID, id uuid.UUID, checked bool) (Result, error)
	Drop(ctx context.Context, userID uuid.UUID, req DropRequest) (Result, error)
	MoveToPage(ctx context.Context, userID, id uuid.UUID, pageID string) (Result, error)
}

type BlockService struct {
	store store.BlockStore
	pages models.WorkflowPages
	ops   *operationLock
	locks *pageLocks
	now   func() time.Time
}

type BlockServiceOption func(*BlockService)

// WithOperationCooldown sets how long a successful create or delete blocks the
// next one on the same page.
func WithOperationCooldown(d time.Duration) BlockServiceOption {
	return func(s *BlockService) { s.ops = newOperationLock(d) }
}

func WithBlockClock(now func() time.Time) BlockServiceOption {
	return func(s *BlockService) { s.now = now }
}

func NewBlockService(st store.BlockStore, pages models.WorkflowPages, opts ...BlockServiceOption) *BlockService {
	s := &BlockService{
		store: st,
		pages: pages,
		ops:   newOperationLock(100 * time.Millisecond),
		locks: newPageLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var BlockServiceInstance BlockServiceInterface

func (s *BlockService) ListBlocks(ctx context.Context, userID uuid.UUID, pageID string) ([]models.Block, error) {
	if pageID == "" {
		return nil, ErrInvalidInput
	}
	unlock := s.locks.Lock(pageKey(userID, pageID))
	defer unlock()
	o, err := s.load(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}
	return o.Blocks(), nil
}

func (s *BlockService) CreateAfter(ctx context.Context, userID uuid.UUID, pageID string, anchor *uuid.UUID, in BlockInput) (Result, error) {
	return s.ImportDrafts(ctx, userID, pageID, anchor, []BlockInput{in})
}

// ImportDrafts inserts drafts one after another, starting after anchor, and
// writes them in a single batch. BlockID is the last inserted block.
func (s *BlockService) ImportDrafts(ctx context.Context, userID uuid.UUID, pageID string, anchor *uuid.UUID, drafts []BlockInput) (Result, error) {
	prepared, err := s.drafts(pageID, drafts)
	if err != nil {
		return Result{}, err
	}
	return s.guarded(CreateOperation, pageID, func() (Result, error) {
		return s.insert(ctx, userID, pageID, anchor, prepared)
	})
}

// Append adds a block to the end of a page. It skips the create lock, so API
// clients may post several blocks in a row.
func (s *BlockService) Append(ctx context.Context, userID uuid.UUID, pageID string, in BlockInput) (Result, error) {
	prepared, err := s.drafts(pageID, []BlockInput{in})
	if err != nil {
		return Result{}, err
	}
	return s.insert(ctx, userID, pageID, nil, prepared)
}

func (s *BlockService) drafts(pageID string, inputs []BlockInput) ([]outline.Draft, error) {
	if pageID == "" || len(inputs) == 0 {
		return nil, ErrInvalidInput
	}
	prepared := make([]outline.Draft, 0, len(inputs))
	for _, in := range inputs {
		d, err := s.draft(pageID, in)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, d)
	}
	return prepared, nil
}

func (s *BlockService) insert(ctx context.Context, userID uuid.UUID, pageID string, anchor *uuid.UUID, prepared []outline.Draft) (Result, error) {
	return s.withPage(ctx, userID, pageID, func(o *outline.Outline) (*uuid.UUID, error) {
		after := anchor
		for _, d := range prepared {
			b, err := o.InsertAfter(after, d)
			if err != nil {
				return nil, err
			}
			id := b.ID
			after = &id
		}
		return after, nil
	})
}

// draft turns client input into an outline draft, expanding shortcuts and
// mirroring inline tokens of todo blocks into task metadata.
func (s *BlockService) draft(pageID string, in BlockInput) (outline.Draft, error) {
	d := outline.Draft{
		Type:        in.Type,
		Content:     in.Content,
		IndentLevel: in.IndentLevel,
		IsChecked:   in.IsChecked,
	}
	if d.Type == "" {
		d.Type = models.ParagraphBlock
		if exp, ok := shortcuts.Expand(in.Content); ok {
			d.Type, d.Content = exp.Type, exp.Content
			d.IsChecked = d.IsChecked || exp.Checked
		}
	}
	if !d.Type.Valid() {
		return outline.Draft{}, ErrInvalidInput
	}
	if d.Type == models.TodoListBlock {
		parsed := tokens.Parse(d.Content, s.now())
		d.Content = parsed.CleanContent
		d.TaskMetadata = metadata.Mirror(nil, parsed.Tokens, pageID, s.pages)
	}
	return d, nil
}

// UpdateContent stores new text for a block. A shortcut typed into a paragraph
// converts it, and inline tokens of a todo are mirrored into its metadata.
func (s *BlockService) UpdateContent(ctx context.Context, userID, id uuid.UUID, content string) (Result, error) {
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		b, ok := o.Find(id)
		if !ok {
			return nil, outline.ErrNotFound
		}
		if b.Type == models.ParagraphBlock {
			if exp, ok := shortcuts.Expand(content); ok {
				if err := o.SetType(id, exp.Type); err != nil {
					return nil, err
				}
				content = exp.Content
				if exp.Checked {
					if err := o.SetChecked(id, true); err != nil {
						return nil, err
					}
				}
			}
		}
		now := s.now()
		return &id, o.Edit(id, func(b *models.Block) {
			if !b.IsTodo() {
				b.Content = content
				return
			}
			parsed := tokens.Parse(content, now)
			b.Content = parsed.CleanContent
			b.TaskMetadata = metadata.Mirror(b.TaskMetadata, parsed.Tokens, b.PageID, s.pages)
		})
	})
}

func (s *BlockService) ChangeType(ctx context.Context, userID, id uuid.UUID, typ models.BlockType) (Result, error) {
	if !typ.Valid() {
		return Result{}, ErrInvalidInput
	}
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		if err := o.SetType(id, typ); err != nil {
			return nil, err
		}
		b, _ := o.Find(id)
		if b.IsTodo() {
			b.TaskMetadata = metadata.Mirror(b.TaskMetadata, tokens.Tokens{}, b.PageID, s.pages)
		}
		return &id, nil
	})
}

func (s *BlockService) Indent(ctx context.Context, userID, id uuid.UUID) (Result, error) {
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		return &id, o.Indent(id)
	})
}

func (s *BlockService) Outdent(ctx context.Context, userID, id uuid.UUID) (Result, error) {
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		return &id, o.Outdent(id)
	})
}

func (s *BlockService) MoveUp(ctx context.Context, userID, id uuid.UUID) (Result, error) {
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		return &id, o.MoveUp(id)
	})
}

func (s *BlockService) MoveDown(ctx context.Context, userID, id uuid.UUID) (Result, error) {
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		return &id, o.MoveDown(id)
	})
}

func (s *BlockService) Duplicate(ctx context.Context, userID, id uuid.UUID) (Result, error) {
	pageID, err := s.pageOf(ctx, userID, id)
	if errors.Is(err, ErrBlockNotFound) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return s.guarded(CreateOperation, pageID, func() (Result, error) {
		return s.withPage(ctx, userID, pageID, func(o *outline.Outline) (*uuid.UUID, error) {
			b, err := o.Duplicate(id)
			if err != nil {
				return nil, err
			}
			copyID := b.ID
			return &copyID, nil
		})
	})
}

func (s *BlockService) Delete(ctx context.Context, userID, id uuid.UUID) (Result, error) {
	pageID, err := s.pageOf(ctx, userID, id)
	if errors.Is(err, ErrBlockNotFound) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return s.guarded(DeleteOperation, pageID, func() (Result, error) {
		return s.withPage(ctx, userID, pageID, func(o *outline.Outline) (*uuid.UUID, error) {
			return &id, o.Remove(id)
		})
	})
}

func (s *BlockService) SetChecked(ctx context.Context, userID, id uuid.UUID, checked bool) (Result, error) {
	return s.withBlock(ctx, userID, id, func(o *outline.Outline) (*uuid.UUID, error) {
		return &id, o.SetChecked(id, checked)
	})
}

// Drop resolves a finished drag against its target and moves the block with
// its run, on the same page or onto another one.
func (s *BlockService) Drop(ctx context.Context, userID uuid.UUID, req DropRequest) (Result, error) {
	srcPage, err := s.pageOf(ctx, userID, req.BlockID)
	if errors.Is(err, ErrBlockNotFound) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	dstPage := req.TargetPageID
	if dstPage == "" {
		dstPage = srcPage
	}

	if dstPage == srcPage {
		return s.withPage(ctx, userID, srcPage, func(o *outline.Outline) (*uuid.UUID, error) {
			move, err := s.resolve(o, req)
			if err != nil {
				return nil, err
			}
			return &req.BlockID, o.Move(move)
		})
	}
	return s.moveAcross(ctx, userID, srcPage, dstPage, req)
}

// MoveToPage appends a block and its subtree to the end of another page.
func (s *BlockService) MoveToPage(ctx context.Context, userID, id uuid.UUID, pageID string) (Result, error) {
	if pageID == "" {
		return Result{}, ErrInvalidInput
	}
	return s.Drop(ctx, userID, DropRequest{BlockID: id, TargetPageID: pageID, Position: outline.DropBelow})
}

func (s *BlockService) moveAcross(ctx context.Context, userID uuid.UUID, srcPage, dstPage string, req DropRequest) (Result, error) {
	unlock := s.locks.Lock(pageKey(userID, srcPage), pageKey(userID, dstPage))
	defer unlock()

	src, err := s.load(ctx, userID, srcPage)
	if err != nil {
		return Result{}, err
	}
	dst, err := s.load(ctx, userID, dstPage)
	if err != nil {
		return Result{}, err
	}
	move, err := s.resolve(dst, req)
	if err == nil {
		err = outline.MoveAcross(src, dst, move, s.pages)
	}
	if isNoOp(err) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		return Result{}, err
	}

	res, err := s.commit(ctx, userID, &req.BlockID, src, dst)
	if err != nil {
		log.Printf("Failed to move block %s from %s to %s: %v", req.BlockID, srcPage, dstPage, err)
		return Result{}, fmt.Errorf("%w: %w", ErrMoveFailed, err)
	}
	return res, nil
}

// resolve turns a drop request into a move against the outline holding its
// target, classifying the pointer geometry when no position was given.
func (s *BlockService) resolve(target *outline.Outline, req DropRequest) (outline.MoveRequest, error) {
	move := outline.MoveRequest{
		BlockID:       req.BlockID,
		TargetID:      req.TargetID,
		Position:      req.Position,
		ChildBlockIDs: req.ChildBlockIDs,
	}
	if move.Position != "" {
		return move, nil
	}
	move.Position = outline.DropBelow
	if req.Geometry != nil && req.TargetID != nil {
		t, ok := target.Find(*req.TargetID)
		if !ok {
			return move, outline.ErrNotFound
		}
		move.Position = outline.ClassifyDrop(*req.Geometry, t.Type)
	}
	return move, nil
}

func (s *BlockService) pageOf(ctx context.Context, userID, id uuid.UUID) (string, error) {
	block, err := s.store.GetBlock(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrBlockNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackingStore, err)
	}
	return block.PageID, nil
}

type planFunc func(o *outline.Outline) (*uuid.UUID, error)

// withBlock runs plan against the page currently holding id.
func (s *BlockService) withBlock(ctx context.Context, userID, id uuid.UUID, plan planFunc) (Result, error) {
	pageID, err := s.pageOf(ctx, userID, id)
	if errors.Is(err, ErrBlockNotFound) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return s.withPage(ctx, userID, pageID, plan)
}

// withPage loads the latest state of a page, plans on it and persists the diff
// while holding the page's writer lock.
func (s *BlockService) withPage(ctx context.Context, userID uuid.UUID, pageID string, plan planFunc) (Result, error) {
	unlock := s.locks.Lock(pageKey(userID, pageID))
	defer unlock()

	o, err := s.load(ctx, userID, pageID)
	if err != nil {
		return Result{}, err
	}
	affected, err := plan(o)
	if isNoOp(err) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, userID, affected, o)
}

func (s *BlockService) load(ctx context.Context, userID uuid.UUID, pageID string) (*outline.Outline, error) {
	blocks, err := s.store.ListBlocks(ctx, userID, pageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackingStore, err)
	}
	return outline.New(userID, pageID, blocks, outline.WithClock(s.now)), nil
}

// commit writes the combined diff of every outline in one batch.
func (s *BlockService) commit(ctx context.Context, userID uuid.UUID, affected *uuid.UUID, outlines ...*outline.Outline) (Result, error) {
	var changes outline.Changes
	res := Result{BlockID: affected, Pages: map[string][]models.Block{}}
	for _, o := range outlines {
		changes = changes.Merge(o.Diff())
		res.Pages[o.PageID()] = o.Blocks()
	}
	if changes.Empty() {
		res.NoOp = true
		return res, nil
	}

	err := s.store.Apply(ctx, userID, store.Batch{
		Creates: changes.Created,
		Patches: changes.Patches,
		Deletes: changes.Deleted,
	})
	if errors.Is(err, store.ErrNotFound) {
		return Result{NoOp: true}, nil
	}
	if err != nil {
		log.Printf("Failed to write %d block changes: %v", len(changes.BlockIDs()), err)
		return Result{}, fmt.Errorf("%w: %w", ErrBackingStore, err)
	}
	return res, nil
}

// guarded runs fn under the operation lock for kind on pageID.
func (s *BlockService) guarded(kind OperationKind, pageID string, fn func() (Result, error)) (Result, error) {
	if !s.ops.TryLock(kind, pageID) {
		return Result{}, ErrOperationLocked
	}
	res, err := fn()
	s.ops.Release(kind, pageID, err == nil && !res.NoOp)
	return res, err
}

func isNoOp(err error) bool {
	return errors.Is(err, outline.ErrNotFound) || errors.Is(err, outline.ErrInvalidTransition)
}

func pageKey(userID uuid.UUID, pageID string) string {
	return strings.Join([]string{userID.String(), pageID}, "/")
}
