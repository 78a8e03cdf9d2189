package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendtrack/backend/internal/models"
)

// Messages surfaced as-is for the month/year query pair shared by
// budgets and analytics.
var (
	errMonthYearRequired = errors.New("Month and year are required")
	errInvalidMonth      = errors.New("Invalid month")
	errInvalidYear       = errors.New("Invalid year")
)

type BudgetService struct {
	db        *sql.DB
	validator *ValidationHelper
}

type CreateBudgetRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Month      int             `json:"month" validate:"required,min=1,max=12"`
	Year       int             `json:"year" validate:"required,min=2000,max=2100"`
	CategoryID string          `json:"categoryId" validate:"required"`
}

func NewBudgetService(db *sql.DB) *BudgetService {
	return &BudgetService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateBudget creates a monthly budget for an expense category
// @Summary Create budget
// @Description Create a monthly budget; only expense categories can be budgeted, one budget per category and month
// @Tags budgets
// @Accept json
// @Produce json
// @Param budget body CreateBudgetRequest true "Budget data"
// @Success 201 {object} models.Budget
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /budgets [post]
func (s *BudgetService) CreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateBudgetRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Valid amount is required", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Budgets are only for expense categories
	var categoryType string
	err := s.db.QueryRow(`
        SELECT type FROM categories
        WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
    `, req.CategoryID, userID).Scan(&categoryType)
	if err != nil || categoryType != models.TypeExpense {
		if err != nil && err != sql.ErrNoRows {
			log.Printf("[BUDGET] Category lookup failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
			return
		}
		SendErrorResponse(w, "Category not found or not an expense category", http.StatusNotFound, nil)
		return
	}

	exists, err := s.budgetExists(userID, req.CategoryID, req.Month, req.Year)
	if err != nil {
		log.Printf("[BUDGET] Duplicate check failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "Budget already exists for this category, month, and year", http.StatusBadRequest, nil)
		return
	}

	budget := models.Budget{
		ID:         uuid.NewString(),
		UserID:     userID,
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		Month:      req.Month,
		Year:       req.Year,
	}

	err = s.db.QueryRow(`
        INSERT INTO budgets (id, user_id, category_id, amount, month, year, is_deleted, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
        RETURNING created_at
    `, budget.ID, budget.UserID, budget.CategoryID, budget.Amount, budget.Month, budget.Year).Scan(&budget.CreatedAt)
	if err != nil {
		log.Printf("[BUDGET] Failed to create budget for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BUDGET] Budget %s created for user %d (category %s, %d/%d)", budget.ID, userID, budget.CategoryID, budget.Month, budget.Year)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(budget)
}

// GetBudgets lists budgets for a month
// @Summary List budgets
// @Description List the user's budgets for the given month and year, with their categories
// @Tags budgets
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {array} models.Budget
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /budgets [get]
func (s *BudgetService) GetBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	month, year, err := parseMonthYear(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	rows, err := s.db.Query(`
        SELECT b.id, b.category_id, b.amount, b.month, b.year, b.created_at,
               c.name, c.icon, c.type, c.created_at
        FROM budgets b
        JOIN categories c ON b.category_id = c.id
        WHERE b.user_id = $1 AND b.month = $2 AND b.year = $3 AND b.is_deleted = FALSE
        ORDER BY b.created_at ASC
    `, userID, month, year)
	if err != nil {
		log.Printf("[BUDGET] Failed to fetch budgets for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch budgets", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		budget := models.Budget{UserID: userID}
		category := models.Category{UserID: userID}
		if err := rows.Scan(&budget.ID, &budget.CategoryID, &budget.Amount, &budget.Month, &budget.Year, &budget.CreatedAt,
			&category.Name, &category.Icon, &category.Type, &category.CreatedAt); err != nil {
			log.Printf("[BUDGET] Failed to scan budget for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch budgets", http.StatusInternalServerError, nil)
			return
		}
		category.ID = budget.CategoryID
		budget.Category = &category
		budgets = append(budgets, budget)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(budgets)
}

// DeleteBudget soft-deletes a budget
// @Summary Delete budget
// @Description Soft-delete a budget
// @Tags budgets
// @Produce json
// @Param id path string true "Budget ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /budgets/{id} [delete]
func (s *BudgetService) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	budgetID := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
        UPDATE budgets SET is_deleted = TRUE
        WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
    `, budgetID, userID)
	if err != nil {
		log.Printf("[BUDGET] Failed to delete budget %s: %v", budgetID, err)
		SendErrorResponse(w, "Failed to delete budget", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Budget not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[BUDGET] Budget %s deleted for user %d", budgetID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Budget deleted"})
}

func (s *BudgetService) budgetExists(userID int, categoryID string, month, year int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
        SELECT EXISTS(
            SELECT 1 FROM budgets
            WHERE user_id = $1 AND category_id = $2 AND month = $3 AND year = $4 AND is_deleted = FALSE
        )
    `, userID, categoryID, month, year).Scan(&exists)
	return exists, err
}

// parseMonthYear validates the month/year query pair shared by budgets
// and analytics.
func parseMonthYear(r *http.Request) (int, int, error) {
	monthStr := r.URL.Query().Get("month")
	yearStr := r.URL.Query().Get("year")
	if monthStr == "" || yearStr == "" {
		return 0, 0, errMonthYearRequired
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errInvalidMonth
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 2100 {
		return 0, 0, errInvalidYear
	}

	return month, year, nil
}
