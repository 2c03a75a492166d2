package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store"
)

// Handlers bundles the API endpoints around the selected storage backend.
type Handlers struct {
	store store.Store
}

// New constructs the handler set on top of st.
func New(st store.Store) *Handlers {
	return &Handlers{store: st}
}

// idParam parses the :id path segment as a positive integer.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// categoryRequest is the create payload for a category.
type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// categoryPatchRequest is the partial-update payload; absent fields are left
// untouched on the stored row.
type categoryPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

// ListCategories handles GET /api/categories.
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, cats)
}

// CreateCategory handles POST /api/categories.
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	created, err := h.store.AddCategory(c.Request.Context(), domain.Category{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// UpdateCategory handles PUT /api/categories/:id.
func (h *Handlers) UpdateCategory(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var req categoryPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	updated, err := h.store.UpdateCategory(c.Request.Context(), id, store.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// DeleteCategory handles DELETE /api/categories/:id. Products under the
// category are removed with it.
func (h *Handlers) DeleteCategory(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	if err := h.store.DeleteCategory(c.Request.Context(), id); err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Category deleted"})
}

// productRequest is the create payload for a product.
type productRequest struct {
	CategoryID    int64             `json:"category_id" binding:"required"`
	Name          string            `json:"name" binding:"required"`
	Price         decimal.Decimal   `json:"price"`
	Stock         int               `json:"stock"`
	Description   string            `json:"description"`
	ImageURL      string            `json:"image_url"`
	Features      domain.StringList `json:"features"`
	SupportedMaps domain.StringList `json:"supported_maps"`
}

// productPatchRequest is the partial-update payload. A request that carries
// only a price never touches stock, and vice versa.
type productPatchRequest struct {
	CategoryID    *int64             `json:"category_id"`
	Name          *string            `json:"name"`
	Price         *decimal.Decimal   `json:"price"`
	Stock         *int               `json:"stock"`
	Description   *string            `json:"description"`
	ImageURL      *string            `json:"image_url"`
	Features      *domain.StringList `json:"features"`
	SupportedMaps *domain.StringList `json:"supported_maps"`
}

// ListProducts handles GET /api/products with an optional ?category_id filter.
func (h *Handlers) ListProducts(c *gin.Context) {
	var categoryID int64
	if raw := c.Query("category_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid category_id")
			return
		}
		categoryID = parsed
	}
	products, err := h.store.ListProducts(c.Request.Context(), categoryID)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, products)
}

// GetProduct handles GET /api/products/:id.
func (h *Handlers) GetProduct(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	p, err := h.store.GetProduct(c.Request.Context(), id)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// CreateProduct handles POST /api/products.
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	created, err := h.store.AddProduct(c.Request.Context(), domain.Product{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Price:         req.Price,
		Stock:         req.Stock,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Features:      req.Features,
		SupportedMaps: req.SupportedMaps,
	})
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// UpdateProduct handles PUT /api/products/:id.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var req productPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	updated, err := h.store.UpdateProduct(c.Request.Context(), id, store.ProductPatch{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Price:         req.Price,
		Stock:         req.Stock,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Features:      req.Features,
		SupportedMaps: req.SupportedMaps,
	})
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/products/:id.
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	if err := h.store.DeleteProduct(c.Request.Context(), id); err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Product deleted"})
}
