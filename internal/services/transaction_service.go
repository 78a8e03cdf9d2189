package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendtrack/backend/internal/models"
)

var (
	errSourceNotFound       = errors.New("source account not found")
	errDestinationNotFound  = errors.New("destination account not found")
	errCategoryNotFound     = errors.New("category not found")
	errCategoryTypeMismatch = errors.New("category type mismatch")
)

type TransactionService struct {
	db        *sql.DB
	validator *ValidationHelper
}

type CreateTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"required,oneof=income expense transfer"`
	Note        *string         `json:"note" validate:"omitempty,max=200"`
	AccountID   string          `json:"accountId"`
	CategoryID  *string         `json:"categoryId"`
	ToAccountID *string         `json:"toAccountId"` // only for transfer
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateTransaction creates an income, expense or transfer transaction
// @Summary Create transaction
// @Description Create an income/expense transaction, or an atomic two-leg transfer between two accounts
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /transactions [post]
func (s *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateTransactionRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	// Validator cannot see inside decimal.Decimal, so the amount guard
	// is explicit. Zero and negative amounts never reach the store.
	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Invalid type", http.StatusBadRequest, err)
		return
	}

	if req.Type == models.TypeTransfer {
		s.createTransfer(w, userID, &req)
		return
	}

	if strings.TrimSpace(req.AccountID) == "" {
		SendErrorResponse(w, "accountId is required", http.StatusBadRequest, nil)
		return
	}

	exists, err := s.accountExists(userID, req.AccountID)
	if err != nil {
		log.Printf("[TRANSACTION] Account lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Transaction failed", http.StatusInternalServerError, nil)
		return
	}
	if !exists {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	if req.CategoryID != nil {
		if err := s.categoryMatches(userID, *req.CategoryID, req.Type); err != nil {
			if errors.Is(err, errCategoryNotFound) {
				SendErrorResponse(w, "Category not found", http.StatusNotFound, nil)
				return
			}
			if errors.Is(err, errCategoryTypeMismatch) {
				SendErrorResponse(w, "Category type must be "+req.Type, http.StatusBadRequest, nil)
				return
			}
			log.Printf("[TRANSACTION] Category lookup failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Transaction failed", http.StatusInternalServerError, nil)
			return
		}
	}

	tx := models.Transaction{
		ID:         uuid.NewString(),
		UserID:     userID,
		AccountID:  req.AccountID,
		Type:       req.Type,
		Amount:     req.Amount,
		Note:       req.Note,
		CategoryID: req.CategoryID,
	}

	err = s.db.QueryRow(`
        INSERT INTO transactions (id, user_id, account_id, type, amount, note, category_id, is_deleted, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())
        RETURNING created_at
    `, tx.ID, tx.UserID, tx.AccountID, tx.Type, tx.Amount, tx.Note, tx.CategoryID).Scan(&tx.CreatedAt)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to store transaction for user %d: %v", userID, err)
		SendErrorResponse(w, "Transaction failed", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[TRANSACTION] %s transaction %s created for user %d", tx.Type, tx.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tx)
}

// createTransfer builds the two linked ledger entries of a transfer as a
// single all-or-nothing unit: either both legs commit or neither does.
func (s *TransactionService) createTransfer(w http.ResponseWriter, userID int, req *CreateTransactionRequest) {
	if strings.TrimSpace(req.AccountID) == "" || req.ToAccountID == nil || strings.TrimSpace(*req.ToAccountID) == "" {
		SendErrorResponse(w, "Both accountId and toAccountId are required for transfers", http.StatusBadRequest, nil)
		return
	}

	if req.AccountID == *req.ToAccountID {
		SendErrorResponse(w, "Cannot transfer to the same account", http.StatusBadRequest, nil)
		return
	}

	if req.CategoryID != nil {
		SendErrorResponse(w, "categoryId is not allowed for transfers", http.StatusBadRequest, nil)
		return
	}

	if err := s.validateTransferAccounts(userID, req.AccountID, *req.ToAccountID); err != nil {
		switch {
		case errors.Is(err, errSourceNotFound):
			SendErrorResponse(w, "Source account not found", http.StatusNotFound, nil)
		case errors.Is(err, errDestinationNotFound):
			SendErrorResponse(w, "Destination account not found", http.StatusNotFound, nil)
		default:
			log.Printf("[TRANSACTION] Transfer account lookup failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Transfer failed", http.StatusInternalServerError, nil)
		}
		return
	}

	// Every call mints a fresh group id: a retried transfer creates a
	// new independent pair rather than racing duplicate detection.
	transferGroupID := uuid.NewString()

	dbTx, err := s.db.Begin()
	if err != nil {
		log.Printf("[TRANSACTION] Failed to begin transfer %s: %v", transferGroupID, err)
		SendErrorResponse(w, "Transfer failed", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	if err := s.insertTransferLeg(dbTx, userID, req.AccountID, transferGroupID, models.RoleSource, req); err != nil {
		log.Printf("[TRANSACTION] Failed to store source leg of transfer %s: %v", transferGroupID, err)
		SendErrorResponse(w, "Transfer failed", http.StatusInternalServerError, nil)
		return
	}

	if err := s.insertTransferLeg(dbTx, userID, *req.ToAccountID, transferGroupID, models.RoleDestination, req); err != nil {
		log.Printf("[TRANSACTION] Failed to store destination leg of transfer %s: %v", transferGroupID, err)
		SendErrorResponse(w, "Transfer failed", http.StatusInternalServerError, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		log.Printf("[TRANSACTION] Failed to commit transfer %s: %v", transferGroupID, err)
		SendErrorResponse(w, "Transfer failed", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[TRANSACTION] Transfer %s created for user %d (%s -> %s)", transferGroupID, userID, req.AccountID, *req.ToAccountID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message":         "Transfer successful",
		"transferGroupId": transferGroupID,
	})
}

func (s *TransactionService) insertTransferLeg(dbTx *sql.Tx, userID int, accountID, transferGroupID, role string, req *CreateTransactionRequest) error {
	_, err := dbTx.Exec(`
        INSERT INTO transactions (id, user_id, account_id, type, amount, note, transfer_group_id, transfer_role, is_deleted, created_at)
        VALUES ($1, $2, $3, 'transfer', $4, $5, $6, $7, FALSE, NOW())
    `, uuid.NewString(), userID, accountID, req.Amount, req.Note, transferGroupID, role)
	return err
}

// GetTransactions lists the user's transactions, newest first
// @Summary List transactions
// @Description List the user's non-deleted transactions
// @Tags transactions
// @Produce json
// @Success 200 {array} models.Transaction
// @Failure 500 {object} ErrorResponse
// @Router /transactions [get]
func (s *TransactionService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
        SELECT id, account_id, type, amount, note, category_id, transfer_group_id, transfer_role, created_at
        FROM transactions
        WHERE user_id = $1 AND is_deleted = FALSE
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to fetch transactions for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx := models.Transaction{UserID: userID}
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Note, &tx.CategoryID, &tx.TransferGroupID, &tx.TransferRole, &tx.CreatedAt); err != nil {
			log.Printf("[TRANSACTION] Failed to scan transaction for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, tx)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// DeleteTransaction soft-deletes a transaction
// @Summary Delete transaction
// @Description Tombstone a transaction; the row is retained for history but excluded from all computations
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /transactions/{id} [delete]
func (s *TransactionService) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	txID := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
        UPDATE transactions SET is_deleted = TRUE
        WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
    `, txID, userID)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to delete transaction %s: %v", txID, err)
		SendErrorResponse(w, "Failed to delete transaction", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[TRANSACTION] Transaction %s deleted for user %d", txID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Transaction deleted"})
}

// Lookup gates

func (s *TransactionService) accountExists(userID int, accountID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
        SELECT EXISTS(
            SELECT 1 FROM accounts
            WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
        )
    `, accountID, userID).Scan(&exists)
	return exists, err
}

func (s *TransactionService) categoryMatches(userID int, categoryID, expectedType string) error {
	var categoryType string
	err := s.db.QueryRow(`
        SELECT type FROM categories
        WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
    `, categoryID, userID).Scan(&categoryType)
	if err != nil {
		if err == sql.ErrNoRows {
			return errCategoryNotFound
		}
		return err
	}

	if categoryType != expectedType {
		return errCategoryTypeMismatch
	}
	return nil
}

func (s *TransactionService) validateTransferAccounts(userID int, sourceID, destinationID string) error {
	exists, err := s.accountExists(userID, sourceID)
	if err != nil {
		return err
	}
	if !exists {
		return errSourceNotFound
	}

	exists, err = s.accountExists(userID, destinationID)
	if err != nil {
		return err
	}
	if !exists {
		return errDestinationNotFound
	}
	return nil
}
