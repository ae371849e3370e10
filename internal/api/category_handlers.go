package api

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/readmodel"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)

// CategoryHandlers maintains categories_rm by direct writes. Categories are
// not event sourced; the admin surface owns their lifecycle.
type CategoryHandlers struct {
	readStore store.ReadStore
}

func NewCategoryHandlers(readStore store.ReadStore) *CategoryHandlers {
	return &CategoryHandlers{readStore: readStore}
}

type categoryRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID string `json:"parentId"`
}

func (h *CategoryHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.readStore.ListCategories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, apperr.New(apperr.CodeValidationError, "category name is required").WithFields("name"))
		return
	}

	if req.ParentID != "" {
		if _, found, err := h.readStore.GetCategory(r.Context(), req.ParentID); err != nil {
			respondError(w, err)
			return
		} else if !found {
			respondCode(w, apperr.CodeCategoryNotFound, "parent category not found")
			return
		}
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}

	now := time.Now().UTC()
	category := &readmodel.Category{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Slug:      slug,
		ParentID:  req.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.readStore.UpsertCategory(r.Context(), category); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

// DeleteCategory refuses to orphan products: a category still referenced by
// any product row rejects with CATEGORY_HAS_PRODUCTS.
func (h *CategoryHandlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := strings.TrimPrefix(r.URL.Path, "/admin/categories/")

	_, found, err := h.readStore.GetCategory(r.Context(), categoryID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !found {
		respondCode(w, apperr.CodeCategoryNotFound, "category not found")
		return
	}

	count, err := h.readStore.CountProductsInCategory(r.Context(), categoryID)
	if err != nil {
		respondError(w, err)
		return
	}
	if count > 0 {
		respondError(w, apperr.Newf(apperr.CodeCategoryHasProducts, "category still has %d products", count))
		return
	}

	if err := h.readStore.DeleteCategory(r.Context(), categoryID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugStrip.ReplaceAllString(slug, "")
	if slug == "" {
		slug = uuid.New().String()
	}
	return slug
}
