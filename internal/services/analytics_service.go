package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsService serves the month-window aggregations consumed by the
// dashboard charts. Everything is a plain SUM/GROUP BY over non-deleted
// transactions; nothing here touches balances.
type AnalyticsService struct {
	db *sql.DB
}

type CategoryTotal struct {
	CategoryID *string         `json:"categoryId"`
	Total      decimal.Decimal `json:"total"`
}

type AccountTypeTotal struct {
	AccountID string          `json:"accountId"`
	Type      string          `json:"type"`
	Total     decimal.Decimal `json:"total"`
}

func NewAnalyticsService(db *sql.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// ExpenseByCategory sums expenses per category for one month
// @Summary Expense overview
// @Description Sum of expense amounts grouped by category for the given month
// @Tags analytics
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {array} CategoryTotal
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/expense-by-category [get]
func (s *AnalyticsService) ExpenseByCategory(w http.ResponseWriter, r *http.Request) {
	s.byCategory(w, r, "expense")
}

// IncomeByCategory sums income per category for one month
// @Summary Income overview
// @Description Sum of income amounts grouped by category for the given month
// @Tags analytics
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {array} CategoryTotal
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/income-by-category [get]
func (s *AnalyticsService) IncomeByCategory(w http.ResponseWriter, r *http.Request) {
	s.byCategory(w, r, "income")
}

func (s *AnalyticsService) byCategory(w http.ResponseWriter, r *http.Request, txType string) {
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

	start, end := monthWindow(month, year)
	rows, err := s.db.Query(`
        SELECT category_id, SUM(amount)
        FROM transactions
        WHERE user_id = $1 AND type = $2 AND is_deleted = FALSE
          AND created_at >= $3 AND created_at < $4
        GROUP BY category_id
    `, userID, txType, start, end)
	if err != nil {
		log.Printf("[ANALYTICS] %s by category failed for user %d: %v", txType, userID, err)
		SendErrorResponse(w, "Failed to fetch "+txType+" data", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	totals := []CategoryTotal{}
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.CategoryID, &t.Total); err != nil {
			log.Printf("[ANALYTICS] Failed to scan %s totals for user %d: %v", txType, userID, err)
			SendErrorResponse(w, "Failed to fetch "+txType+" data", http.StatusInternalServerError, nil)
			return
		}
		totals = append(totals, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(totals)
}

// AccountAnalysis sums amounts per account and type for one month
// @Summary Account analysis
// @Description Sum of amounts grouped by account and transaction type for the given month
// @Tags analytics
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {array} AccountTypeTotal
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/account-analysis [get]
func (s *AnalyticsService) AccountAnalysis(w http.ResponseWriter, r *http.Request) {
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

	start, end := monthWindow(month, year)
	rows, err := s.db.Query(`
        SELECT account_id, type, SUM(amount)
        FROM transactions
        WHERE user_id = $1 AND is_deleted = FALSE
          AND created_at >= $2 AND created_at < $3
        GROUP BY account_id, type
    `, userID, start, end)
	if err != nil {
		log.Printf("[ANALYTICS] Account analysis failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch account analysis", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	totals := []AccountTypeTotal{}
	for rows.Next() {
		var t AccountTypeTotal
		if err := rows.Scan(&t.AccountID, &t.Type, &t.Total); err != nil {
			log.Printf("[ANALYTICS] Failed to scan account analysis for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch account analysis", http.StatusInternalServerError, nil)
			return
		}
		totals = append(totals, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(totals)
}

func monthWindow(month, year int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
