package services

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const DefaultCapturePage = "Inbox"

// CaptureRequest is the body posted by quick capture clients.
type CaptureRequest struct {
	Content   string `json:"content"`
	UserID    string `json:"userId"`
	PageTitle string `json:"pageTitle"`
}

type CaptureResponse struct {
	Success bool      `json:"success"`
	BlockID uuid.UUID `json:"blockId"`
	PageID  string    `json:"pageId"`
}

type CaptureServiceInterface interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResponse, error)
	ResolvePage(title string) string
}

// CaptureService appends captured lines to the end of a page. Line prefixes
// such as "[] " or "# " pick the block type.
type CaptureService struct {
	blocks      BlockServiceInterface
	inboxPageID string
}

func NewCaptureService(blocks BlockServiceInterface, inboxPageID string) *CaptureService {
	return &CaptureService{blocks: blocks, inboxPageID: inboxPageID}
}

var CaptureServiceInstance CaptureServiceInterface

func (s *CaptureService) Capture(ctx context.Context, req CaptureRequest) (CaptureResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return CaptureResponse{}, ErrInvalidInput
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return CaptureResponse{}, ErrInvalidInput
	}

	pageID := s.ResolvePage(req.PageTitle)
	res, err := s.blocks.Append(ctx, userID, pageID, BlockInput{Content: content})
	if err != nil {
		return CaptureResponse{}, err
	}
	if res.BlockID == nil {
		return CaptureResponse{}, ErrBlockNotFound
	}
	return CaptureResponse{Success: true, BlockID: *res.BlockID, PageID: pageID}, nil
}

// ResolvePage maps a page title onto a page id. The inbox title, or no title,
// maps onto the configured inbox page; other titles become lower-case slugs.
func (s *CaptureService) ResolvePage(title string) string {
	title = strings.TrimSpace(title)
	if title == "" || strings.EqualFold(title, DefaultCapturePage) {
		return s.inboxPageID
	}
	return slugify(title)
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
