package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/internal/storage/sqlite"
	"github.com/brandpulse/backend/pkg/logger"
)

// CatalogHandler manages the tracked categories, brands and prompts that
// feed the scraping backlog.
type CatalogHandler struct {
	db *sqlite.Client
}

func NewCatalogHandler(db *sqlite.Client) *CatalogHandler {
	return &CatalogHandler{db: db}
}

func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	cat := &models.Category{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.db.CreateCategory(c.Context(), cat); err != nil {
		logger.Error("Failed to create category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create category",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *CatalogHandler) CreateBrand(c *fiber.Ctx) error {
	categoryID := c.Params("id")

	var req struct {
		Name       string  `json:"name"`
		LogoURL    *string `json:"logoUrl"`
		WebsiteURL *string `json:"websiteUrl"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	b := &models.Brand{
		ID:         uuid.NewString(),
		CategoryID: categoryID,
		Name:       req.Name,
		LogoURL:    req.LogoURL,
		WebsiteURL: req.WebsiteURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.db.CreateBrand(c.Context(), b); err != nil {
		logger.Error("Failed to create brand", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create brand",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *CatalogHandler) CreatePrompt(c *fiber.Ctx) error {
	categoryID := c.Params("id")

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}

	p := &models.Prompt{
		ID:         uuid.NewString(),
		CategoryID: categoryID,
		Text:       req.Text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.db.CreatePrompt(c.Context(), p); err != nil {
		logger.Error("Failed to create prompt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create prompt",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *CatalogHandler) GetBrands(c *fiber.Ctx) error {
	brands, err := h.db.GetBrands(c.Context(), c.Params("id"))
	if err != nil {
		logger.Error("Failed to list brands", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list brands",
		})
	}
	return c.JSON(fiber.Map{"brands": brands})
}

func (h *CatalogHandler) GetPrompts(c *fiber.Ctx) error {
	prompts, err := h.db.GetPrompts(c.Context(), c.Params("id"))
	if err != nil {
		logger.Error("Failed to list prompts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list prompts",
		})
	}
	return c.JSON(fiber.Map{"prompts": prompts})
}
