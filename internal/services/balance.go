package services

import (
	"log"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spendtrack/backend/internal/models"
)

// Transfer leg classification signs.
const (
	transferOut = -1
	transferIn  = +1
)

// ComputeBalances derives the current balance of every account from the
// owner's full non-deleted transaction history. No running balance is
// ever stored; this reconstruction is the ground truth and is recomputed
// from scratch on every read.
//
// Income adds, expense subtracts. For transfers, the two legs sharing a
// transferGroupId are classified as source (money out) and destination
// (money in): by their stored role when both legs carry one, otherwise
// by createdAt ascending with id ascending as the tie-break. A group
// without exactly two surviving legs is a data-integrity anomaly and
// contributes nothing; it is logged rather than guessed at.
//
// Accumulation is exact; rounding to 2 decimal places happens once per
// account, at the end.
func ComputeBalances(accounts []models.Account, transactions []models.Transaction) []models.AccountWithBalance {
	signs := classifyTransferLegs(transactions)

	totals := make(map[string]decimal.Decimal, len(accounts))
	for _, tx := range transactions {
		delta := decimal.Zero
		switch tx.Type {
		case models.TypeIncome:
			delta = tx.Amount
		case models.TypeExpense:
			delta = tx.Amount.Neg()
		case models.TypeTransfer:
			switch signs[tx.ID] {
			case transferOut:
				delta = tx.Amount.Neg()
			case transferIn:
				delta = tx.Amount
			}
		}
		totals[tx.AccountID] = totals[tx.AccountID].Add(delta)
	}

	result := make([]models.AccountWithBalance, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, models.AccountWithBalance{
			ID:        account.ID,
			Name:      account.Name,
			Icon:      account.Icon,
			Balance:   totals[account.ID].Round(2),
			CreatedAt: account.CreatedAt,
			UpdatedAt: account.UpdatedAt,
		})
	}
	return result
}

// classifyTransferLegs maps each transfer transaction id to its
// direction sign. Legs of anomalous groups are left unmapped and so
// contribute zero.
func classifyTransferLegs(transactions []models.Transaction) map[string]int {
	groups := make(map[string][]models.Transaction)
	for _, tx := range transactions {
		if tx.Type == models.TypeTransfer && tx.TransferGroupID != nil {
			groups[*tx.TransferGroupID] = append(groups[*tx.TransferGroupID], tx)
		}
	}

	signs := make(map[string]int)
	for groupID, legs := range groups {
		if len(legs) != 2 {
			log.Printf("[BALANCE] transfer group %s has %d surviving legs, contributing zero", groupID, len(legs))
			continue
		}

		a, b := legs[0], legs[1]
		if a.TransferRole != nil && b.TransferRole != nil && *a.TransferRole != *b.TransferRole {
			if *a.TransferRole == models.RoleSource {
				signs[a.ID], signs[b.ID] = transferOut, transferIn
			} else {
				signs[a.ID], signs[b.ID] = transferIn, transferOut
			}
			continue
		}

		// Legacy rows without stored roles: the earlier leg is the
		// source. Equal timestamps fall back to id ordering.
		sort.Slice(legs, func(i, j int) bool {
			if legs[i].CreatedAt.Equal(legs[j].CreatedAt) {
				return legs[i].ID < legs[j].ID
			}
			return legs[i].CreatedAt.Before(legs[j].CreatedAt)
		})
		signs[legs[0].ID] = transferOut
		signs[legs[1].ID] = transferIn
	}
	return signs
}
