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

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

type CreateAccountRequest struct {
	Name string  `json:"name" validate:"required,max=100"`
	Icon *string `json:"icon" validate:"omitempty,max=50"`
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateAccount creates a new account for the authenticated user
// @Summary Create account
// @Description Create a new account with a name and optional icon
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body CreateAccountRequest true "Account data"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateAccountRequest
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
		SendErrorResponse(w, "Account name is required", http.StatusBadRequest, err)
		return
	}

	account := models.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		Icon:      req.Icon,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
        INSERT INTO accounts (id, user_id, name, icon, is_deleted, created_at, updated_at)
        VALUES ($1, $2, $3, $4, FALSE, $5, $6)
    `, account.ID, account.UserID, account.Name, account.Icon, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to create account for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Account %s created for user %d", account.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccounts lists all accounts with derived balances
// @Summary List accounts with balances
// @Description List the user's accounts with balances reconstructed from the full transaction ledger
// @Tags accounts
// @Produce json
// @Success 200 {array} models.AccountWithBalance
// @Failure 500 {object} ErrorResponse
// @Router /accounts [get]
func (s *AccountService) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accounts, err := s.fetchAccounts(userID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to fetch accounts for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}

	transactions, err := s.fetchLedger(userID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to fetch ledger for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ComputeBalances(accounts, transactions))
}

// DeleteAccount soft-deletes an account
// @Summary Delete account
// @Description Soft-delete an account; its transactions remain in the ledger
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{id} [delete]
func (s *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountID := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
        UPDATE accounts SET is_deleted = TRUE, updated_at = NOW()
        WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
    `, accountID, userID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to delete account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[ACCOUNT] Account %s deleted for user %d", accountID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account deleted"})
}

func (s *AccountService) fetchAccounts(userID int) ([]models.Account, error) {
	rows, err := s.db.Query(`
        SELECT id, name, icon, created_at, updated_at
        FROM accounts
        WHERE user_id = $1 AND is_deleted = FALSE
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account := models.Account{UserID: userID}
		if err := rows.Scan(&account.ID, &account.Name, &account.Icon, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// fetchLedger loads the user's entire non-deleted transaction history,
// all accounts and all time. Balance reconstruction needs the full
// ledger; there is no stored balance to fall back on.
func (s *AccountService) fetchLedger(userID int) ([]models.Transaction, error) {
	rows, err := s.db.Query(`
        SELECT id, account_id, type, amount, transfer_group_id, transfer_role, created_at
        FROM transactions
        WHERE user_id = $1 AND is_deleted = FALSE
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx := models.Transaction{UserID: userID}
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.TransferGroupID, &tx.TransferRole, &tx.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
