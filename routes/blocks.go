package routes

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"notion-lite/workspace/models"
	"notion-lite/workspace/outline"
	"notion-lite/workspace/services"
)

type createBlockRequest struct {
	AfterID *uuid.UUID `json:"afterId"`
	services.BlockInput
}

type importBlocksRequest struct {
	AfterID *uuid.UUID            `json:"afterId"`
	Blocks  []services.BlockInput `json:"blocks" binding:"required"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type typeRequest struct {
	Type models.BlockType `json:"type" binding:"required"`
}

type checkRequest struct {
	Checked *bool `json:"checked" binding:"required"`
}

type dropRequest struct {
	TargetID      *uuid.UUID        `json:"targetId"`
	TargetPageID  string            `json:"targetPageId"`
	Position      string            `json:"position"`
	Geometry      *outline.Geometry `json:"geometry"`
	ChildBlockIDs []uuid.UUID       `json:"childBlockIds"`
}

type moveRequest struct {
	PageID string `json:"pageId" binding:"required"`
}

func RegisterBlockRoutes(group *gin.RouterGroup, blockService services.BlockServiceInterface) {
	// Page scoped endpoints
	group.GET("/pages/:pageId/blocks", func(c *gin.Context) { ListBlocks(c, blockService) })
	group.POST("/pages/:pageId/blocks", func(c *gin.Context) { CreateBlock(c, blockService) })
	group.POST("/pages/:pageId/blocks/import", func(c *gin.Context) { ImportBlocks(c, blockService) })

	// Block operations
	group.PUT("/blocks/:id/content", func(c *gin.Context) { UpdateBlockContent(c, blockService) })
	group.PUT("/blocks/:id/type", func(c *gin.Context) { ChangeBlockType(c, blockService) })
	group.POST("/blocks/:id/indent", func(c *gin.Context) { runBlockOp(c, blockService.Indent) })
	group.POST("/blocks/:id/outdent", func(c *gin.Context) { runBlockOp(c, blockService.Outdent) })
	group.POST("/blocks/:id/move-up", func(c *gin.Context) { runBlockOp(c, blockService.MoveUp) })
	group.POST("/blocks/:id/move-down", func(c *gin.Context) { runBlockOp(c, blockService.MoveDown) })
	group.POST("/blocks/:id/duplicate", func(c *gin.Context) { runBlockOp(c, blockService.Duplicate) })
	group.POST("/blocks/:id/check", func(c *gin.Context) { CheckBlock(c, blockService) })
	group.POST("/blocks/:id/drop", func(c *gin.Context) { DropBlock(c, blockService) })
	group.POST("/blocks/:id/move", func(c *gin.Context) { MoveBlock(c, blockService) })
	group.DELETE("/blocks/:id", func(c *gin.Context) { runBlockOp(c, blockService.Delete) })
}

func ListBlocks(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	blocks, err := blockService.ListBlocks(c.Request.Context(), userID, c.Param("pageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

func CreateBlock(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := blockService.CreateAfter(c.Request.Context(), userID, c.Param("pageId"), req.AfterID, req.BlockInput)
	respondResult(c, res, err, http.StatusCreated)
}

func ImportBlocks(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req importBlocksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := blockService.ImportDrafts(c.Request.Context(), userID, c.Param("pageId"), req.AfterID, req.Blocks)
	respondResult(c, res, err, http.StatusCreated)
}

func UpdateBlockContent(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, id, ok := requireUserAndBlock(c)
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := blockService.UpdateContent(c.Request.Context(), userID, id, req.Content)
	respondResult(c, res, err, http.StatusOK)
}

func ChangeBlockType(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, id, ok := requireUserAndBlock(c)
	if !ok {
		return
	}
	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := blockService.ChangeType(c.Request.Context(), userID, id, req.Type)
	respondResult(c, res, err, http.StatusOK)
}

func CheckBlock(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, id, ok := requireUserAndBlock(c)
	if !ok {
		return
	}
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := blockService.SetChecked(c.Request.Context(), userID, id, *req.Checked)
	respondResult(c, res, err, http.StatusOK)
}

func DropBlock(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, id, ok := requireUserAndBlock(c)
	if !ok {
		return
	}
	var req dropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	drop := services.DropRequest{
		BlockID:       id,
		TargetID:      req.TargetID,
		TargetPageID:  req.TargetPageID,
		Geometry:      req.Geometry,
		ChildBlockIDs: req.ChildBlockIDs,
	}
	if req.Position != "" {
		pos, err := outline.ParseDropPosition(req.Position)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		drop.Position = pos
	}
	res, err := blockService.Drop(c.Request.Context(), userID, drop)
	respondResult(c, res, err, http.StatusOK)
}

func MoveBlock(c *gin.Context, blockService services.BlockServiceInterface) {
	userID, id, ok := requireUserAndBlock(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := blockService.MoveToPage(c.Request.Context(), userID, id, req.PageID)
	respondResult(c, res, err, http.StatusOK)
}

type blockOp func(ctx context.Context, userID, id uuid.UUID) (services.Result, error)

func runBlockOp(c *gin.Context, op blockOp) {
	userID, id, ok := requireUserAndBlock(c)
	if !ok {
		return
	}
	res, err := op(c.Request.Context(), userID, id)
	respondResult(c, res, err, http.StatusOK)
}

// requireUser reads the caller from the X-User-ID header or the user_id query.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		raw = c.Query("user_id")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return uuid.Nil, false
	}
	return userID, true
}

func requireUserAndBlock(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid block ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

// respondResult writes a block operation outcome. A no-op is reported with
// 200 whatever the success status.
func respondResult(c *gin.Context, res services.Result, err error, status int) {
	if err != nil {
		respondError(c, err)
		return
	}
	if res.NoOp {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrBlockNotFound), errors.Is(err, services.ErrPageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrOperationLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
