package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spendtrack/backend/internal/models"
)

type CategoryService struct {
	db        *sql.DB
	validator *ValidationHelper
}

type CreateCategoryRequest struct {
	Name string  `json:"name" validate:"required,max=100"`
	Icon *string `json:"icon" validate:"omitempty,max=50"`
	Type string  `json:"type" validate:"required,oneof=income expense"`
}

func NewCategoryService(db *sql.DB) *CategoryService {
	return &CategoryService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateCategory creates a new category
// @Summary Create category
// @Description Create an income or expense category
// @Tags categories
// @Accept json
// @Produce json
// @Param category body CreateCategoryRequest true "Category data"
// @Success 201 {object} models.Category
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /categories [post]
func (s *CategoryService) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateCategoryRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Category type must be 'income' or 'expense'", http.StatusBadRequest, err)
		return
	}

	category := models.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		Icon:      req.Icon,
		Type:      req.Type,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
        INSERT INTO categories (id, user_id, name, icon, type, is_deleted, created_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, $6)
    `, category.ID, category.UserID, category.Name, category.Icon, category.Type, category.CreatedAt)
	if err != nil {
		log.Printf("[CATEGORY] Failed to create category for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create category", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CATEGORY] Category %s (%s) created for user %d", category.ID, category.Type, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(category)
}

// GetCategories lists the user's categories
// @Summary List categories
// @Description List the user's non-deleted categories
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Failure 500 {object} ErrorResponse
// @Router /categories [get]
func (s *CategoryService) GetCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
        SELECT id, name, icon, type, created_at
        FROM categories
        WHERE user_id = $1 AND is_deleted = FALSE
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		log.Printf("[CATEGORY] Failed to fetch categories for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch categories", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		category := models.Category{UserID: userID}
		if err := rows.Scan(&category.ID, &category.Name, &category.Icon, &category.Type, &category.CreatedAt); err != nil {
			log.Printf("[CATEGORY] Failed to scan category for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch categories", http.StatusInternalServerError, nil)
			return
		}
		categories = append(categories, category)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}

// DeleteCategory soft-deletes a category
// @Summary Delete category
// @Description Soft-delete a category; past transactions keep referencing it
// @Tags categories
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /categories/{id} [delete]
func (s *CategoryService) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	categoryID := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
        UPDATE categories SET is_deleted = TRUE
        WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
    `, categoryID, userID)
	if err != nil {
		log.Printf("[CATEGORY] Failed to delete category %s: %v", categoryID, err)
		SendErrorResponse(w, "Failed to delete category", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Category not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[CATEGORY] Category %s deleted for user %d", categoryID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Category deleted"})
}
