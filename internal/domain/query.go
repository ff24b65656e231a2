package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date with no time-of-day or zone.
type Date struct {
	t time.Time
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "01-02-2006"}

// NewDate returns the date y-m-d.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts YYYY-MM-DD, YYYY/MM/DD, MM/DD/YYYY and MM-DD-YYYY.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		// Tolerate full timestamps by keeping the date part.
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return DateOf(t), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

func (d Date) IsZero() bool                 { return d.t.IsZero() }
func (d Date) Time() time.Time              { return d.t }
func (d Date) Year() int                    { return d.t.Year() }
func (d Date) Month() time.Month            { return d.t.Month() }
func (d Date) Day() int                     { return d.t.Day() }
func (d Date) Before(o Date) bool           { return d.t.Before(o.t) }
func (d Date) After(o Date) bool            { return d.t.After(o.t) }
func (d Date) AddDays(n int) Date           { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) FirstOfMonth() Date           { return NewDate(d.Year(), d.Month(), 1) }
func (d Date) DaysSince(o Date) int         { return int(d.t.Sub(o.t).Hours() / 24) }
func (d Date) String() string               { return d.t.Format("2006-01-02") }
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// LastOfMonth returns the final day of d's month.
func (d Date) LastOfMonth() Date {
	return Date{t: d.FirstOfMonth().t.AddDate(0, 1, -1)}
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Days returns the number of days covered, inclusive.
func (r DateRange) Days() int { return r.End.DaysSince(r.Start) + 1 }

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("date_range requires start and end")
	}
	if r.Start.After(r.End) {
		return errors.New("date_range.start must be <= date_range.end")
	}
	return nil
}

func (r *DateRange) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	type plain DateRange
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if err := DateRange(p).Validate(); err != nil {
		return err
	}
	*r = DateRange(p)
	return nil
}

// AsArgs renders the range the way tool args carry it.
func (r DateRange) AsArgs() map[string]any {
	return map[string]any{"start": r.Start.String(), "end": r.End.String()}
}

// TxnType is the direction of a transaction.
type TxnType string

const (
	TxnDebit  TxnType = "debit"
	TxnCredit TxnType = "credit"
)

func (t TxnType) Valid() bool {
	return t == TxnDebit || t == TxnCredit
}

// TransactionQuery is the canonical cross-source transaction filter.
type TransactionQuery struct {
	DateRange        DateRange `json:"date_range"`
	Source           string    `json:"source,omitempty"`
	Providers        []string  `json:"providers,omitempty"`
	ProviderNames    []string  `json:"provider_names,omitempty"`
	Accounts         []string  `json:"accounts,omitempty"`
	Categories       []string  `json:"categories,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	TxnType          TxnType   `json:"txn_type,omitempty"`
	Positive         *bool     `json:"positive,omitempty"`
	MinAmount        *float64  `json:"min_amount,omitempty"`
	MaxAmount        *float64  `json:"max_amount,omitempty"`
	Query            string    `json:"query,omitempty"`
	ExcludeTransfers *bool     `json:"exclude_transfers,omitempty"`
}

// Validate checks the query's internal consistency.
func (q TransactionQuery) Validate() error {
	if err := q.DateRange.Validate(); err != nil {
		return err
	}
	if q.TxnType != "" && !q.TxnType.Valid() {
		return fmt.Errorf("txn_type must be debit or credit, got %q", q.TxnType)
	}
	if q.MinAmount != nil && q.MaxAmount != nil && *q.MinAmount > *q.MaxAmount {
		return errors.New("min_amount must be <= max_amount")
	}
	if q.TxnType != "" && q.Positive != nil && *q.Positive != (q.TxnType == TxnDebit) {
		return errors.New("txn_type and positive filters conflict")
	}
	return nil
}

// RequestedSources returns the source names the query restricts to, if any.
func (q TransactionQuery) RequestedSources() []string {
	switch {
	case len(q.Providers) > 0:
		return q.Providers
	case len(q.ProviderNames) > 0:
		return q.ProviderNames
	case q.Source != "":
		return []string{q.Source}
	}
	return nil
}

// AsMap renders the query as a generic JSON object for tool results.
func (q TransactionQuery) AsMap() map[string]any {
	data, err := json.Marshal(q)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// QueryFromArgs extracts a TransactionQuery from loosely typed tool args.
// A missing or unparseable date_range leaves DateRange zero; callers decide
// the default window.
func QueryFromArgs(args map[string]any) (TransactionQuery, error) {
	var q TransactionQuery
	if args == nil {
		return q, nil
	}

	if dr, ok := args["date_range"].(map[string]any); ok {
		start, errS := ParseDate(stringValue(dr["start"]))
		end, errE := ParseDate(stringValue(dr["end"]))
		if errS == nil && errE == nil {
			q.DateRange = DateRange{Start: start, End: end}
		}
	}
	if s := stringValue(args["currency"]); s != "" {
		q.Currency = s
	}

	if nested, ok := args["filters"].(map[string]any); ok {
		if accts, ok := stringList(nested["accounts"]); ok {
			q.Accounts = accts
		}
		if b, ok := nested["exclude_transfers"].(bool); ok {
			q.ExcludeTransfers = &b
		}
	}

	q.Source = firstNonEmpty(stringValue(args["source"]), q.Source)
	if v, ok := stringList(args["providers"]); ok {
		q.Providers = v
	}
	if v, ok := stringList(args["provider_names"]); ok {
		q.ProviderNames = v
	}
	if v, ok := stringList(args["accounts"]); ok {
		q.Accounts = v
	}
	if v, ok := stringList(args["categories"]); ok {
		q.Categories = v
	}
	if s := stringValue(args["query"]); s != "" {
		q.Query = s
	}
	if s := stringValue(args["txn_type"]); s != "" {
		q.TxnType = TxnType(strings.ToLower(s))
	}
	if b, ok := args["positive"].(bool); ok {
		q.Positive = &b
	}
	if f, ok := floatValue(args["min_amount"]); ok {
		q.MinAmount = &f
	}
	if f, ok := floatValue(args["max_amount"]); ok {
		q.MaxAmount = &f
	}
	if b, ok := args["exclude_transfers"].(bool); ok {
		q.ExcludeTransfers = &b
	}

	if q.TxnType != "" && !q.TxnType.Valid() {
		return q, fmt.Errorf("txn_type must be debit or credit, got %q", q.TxnType)
	}
	if q.MinAmount != nil && q.MaxAmount != nil && *q.MinAmount > *q.MaxAmount {
		return q, errors.New("min_amount must be <= max_amount")
	}
	if q.TxnType != "" && q.Positive != nil && *q.Positive != (q.TxnType == TxnDebit) {
		return q, errors.New("txn_type and positive filters conflict")
	}
	return q, nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out, true
	}
	return nil, false
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
