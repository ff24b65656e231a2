package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/domain"
)

// File holds a loaded ledger export with its transactions and metadata.
type File struct {
	Path         string
	Hash         string
	Transactions []Transaction
}

// LoadFile reads a JSON or CSV ledger export and computes its SHA-256 hash.
// The format is chosen by extension; anything other than .csv is read as JSON.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger.LoadFile: %w", err)
	}
	h := sha256.Sum256(data)

	var recs []record
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		recs, err = parseCSV(data)
	} else {
		recs, err = parseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger.LoadFile: %s: %w", filepath.Base(path), err)
	}

	txns := make([]Transaction, 0, len(recs))
	for i, r := range recs {
		t, err := r.normalize()
		if err != nil {
			return nil, fmt.Errorf("ledger.LoadFile: %s: record %d: %w", filepath.Base(path), i+1, err)
		}
		txns = append(txns, t)
	}

	return &File{
		Path:         path,
		Hash:         fmt.Sprintf("sha256:%x", h),
		Transactions: txns,
	}, nil
}

// record is the loose export shape shared by the JSON and CSV readers.
type record struct {
	ID          string         `json:"id"`
	PostedOn    string         `json:"posted_on"`
	Date        string         `json:"date"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Amount      json.Number    `json:"amount"`
	Currency    string         `json:"currency"`
	TxnType     string         `json:"txn_type"`
	AccountID   string         `json:"account_id"`
	Metadata    map[string]any `json:"metadata"`
}

// normalize converts a record into a Transaction. A record without txn_type
// takes its direction from the amount sign: negative amounts are debits.
func (r record) normalize() (Transaction, error) {
	posted := r.PostedOn
	if posted == "" {
		posted = r.Date
	}
	day, err := domain.ParseDate(posted)
	if err != nil {
		return Transaction{}, err
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(r.Amount.String()), "$"), ",", ""), 64)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid amount %q", r.Amount)
	}

	typ := domain.TxnType(strings.ToLower(strings.TrimSpace(r.TxnType)))
	switch {
	case typ == "" && amount < 0:
		typ = domain.TxnDebit
	case typ == "":
		typ = domain.TxnCredit
	case !typ.Valid():
		return Transaction{}, fmt.Errorf("txn_type must be debit or credit, got %q", r.TxnType)
	}

	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = "USD"
	}
	category := strings.TrimSpace(r.Category)
	if category == "" {
		category = "Uncategorized"
	}

	t := Transaction{
		ID:          strings.TrimSpace(r.ID),
		PostedOn:    day,
		Description: strings.TrimSpace(r.Description),
		Category:    category,
		Amount:      domain.Round2(math.Abs(amount)),
		Currency:    currency,
		Type:        typ,
		AccountID:   strings.TrimSpace(r.AccountID),
		Metadata:    r.Metadata,
	}
	if t.ID == "" {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f|%s|%s", t.PostedOn, t.Description, t.Amount, t.Type, t.AccountID)))
		t.ID = fmt.Sprintf("txn_%x", sum[:6])
	}
	return t, nil
}

func parseJSON(data []byte) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Transactions []record `json:"transactions"`
		}
		if err := dec.Decode(&wrapped); err != nil {
			return nil, err
		}
		return wrapped.Transactions, nil
	}
	var recs []record
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseCSV(data []byte) ([]record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := index["amount"]; !ok {
		return nil, errors.New("csv header must include an amount column")
	}
	_, hasPosted := index["posted_on"]
	_, hasDate := index["date"]
	if !hasPosted && !hasDate {
		return nil, errors.New("csv header must include posted_on or date")
	}

	var recs []record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		recs = append(recs, record{
			ID:          get("id"),
			PostedOn:    get("posted_on"),
			Date:        get("date"),
			Description: get("description"),
			Category:    get("category"),
			Amount:      json.Number(get("amount")),
			Currency:    get("currency"),
			TxnType:     get("txn_type"),
			AccountID:   get("account_id"),
		})
	}
	return recs, nil
}
