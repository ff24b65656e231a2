// Package ledger provides normalized transactions and the sources that
// supply them to the analysis tools.
package ledger

import (
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/domain"
)

// Transaction is a single normalized ledger entry. Amount is a non-negative
// magnitude; Type carries the direction.
type Transaction struct {
	ID          string         `json:"id"`
	PostedOn    domain.Date    `json:"posted_on"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Amount      float64        `json:"amount"`
	Currency    string         `json:"currency"`
	Type        domain.TxnType `json:"txn_type"`
	AccountID   string         `json:"account_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (t Transaction) IsDebit() bool  { return t.Type == domain.TxnDebit }
func (t Transaction) IsCredit() bool { return t.Type == domain.TxnCredit }

// IsTransfer reports whether the transaction moves money between the user's
// own accounts.
func (t Transaction) IsTransfer() bool {
	if v, ok := t.Metadata["transfer"].(bool); ok {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(t.Category)) {
	case "transfer", "transfers", "internal transfer":
		return true
	}
	return false
}

// Entry is a transaction tagged with the source that produced it.
type Entry struct {
	Transaction
	Provider string `json:"provider"`
}

// Row renders the entry the way tool results carry transactions.
func (e Entry) Row() map[string]any {
	var account any
	if e.AccountID != "" {
		account = e.AccountID
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return map[string]any{
		"id":          e.ID,
		"provider":    e.Provider,
		"posted_on":   e.PostedOn.String(),
		"description": e.Description,
		"category":    e.Category,
		"amount":      e.Amount,
		"currency":    e.Currency,
		"txn_type":    string(e.Type),
		"account_id":  account,
		"metadata":    meta,
	}
}

// Matches applies the transaction-level filters of q.
func Matches(t Transaction, q domain.TransactionQuery) bool {
	if !q.DateRange.Start.IsZero() && t.PostedOn.Before(q.DateRange.Start) {
		return false
	}
	if !q.DateRange.End.IsZero() && t.PostedOn.After(q.DateRange.End) {
		return false
	}
	if len(q.Accounts) > 0 && !contains(q.Accounts, t.AccountID, false) {
		return false
	}
	if len(q.Categories) > 0 && !contains(q.Categories, t.Category, true) {
		return false
	}
	if q.Currency != "" && t.Currency != q.Currency {
		return false
	}
	if q.TxnType != "" && t.Type != q.TxnType {
		return false
	}
	if q.Positive != nil {
		if *q.Positive && !t.IsDebit() {
			return false
		}
		if !*q.Positive && !t.IsCredit() {
			return false
		}
	}
	if q.MinAmount != nil && t.Amount < *q.MinAmount {
		return false
	}
	if q.MaxAmount != nil && t.Amount > *q.MaxAmount {
		return false
	}
	if needle := strings.ToLower(strings.TrimSpace(q.Query)); needle != "" {
		if !strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(strings.ToLower(t.Category), needle) {
			return false
		}
	}
	if q.ExcludeTransfers != nil && *q.ExcludeTransfers && t.IsTransfer() {
		return false
	}
	return true
}

func contains(list []string, v string, fold bool) bool {
	for _, item := range list {
		if item == v || (fold && strings.EqualFold(item, v)) {
			return true
		}
	}
	return false
}
