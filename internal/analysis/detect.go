package analysis

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/domain"
	"github.com/Jeffawe/LedgerMind/internal/ledger"
	"github.com/Jeffawe/LedgerMind/internal/tools"
)

const (
	anomalyMinPeers = 3
	anomalyLimit    = 20
)

type anomaliesTool struct {
	deps Deps
}

func (t *anomaliesTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        Anomalies,
		Description: "Flag unusually large transactions compared with the user's recent history by category.",
		ArgsSchema:  transactionArgsSchema(),
	}
}

type anomaly struct {
	TransactionID     string  `json:"transaction_id"`
	PostedOn          string  `json:"posted_on"`
	Description       string  `json:"description"`
	Category          string  `json:"category"`
	Amount            float64 `json:"amount"`
	CategoryAvgAmount float64 `json:"category_avg_amount"`
	Threshold         float64 `json:"threshold"`
	Reason            string  `json:"reason"`
}

func (t *anomaliesTool) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	spec := t.Spec()
	if err := checkArgs(spec, req.Args); err != nil {
		return domain.ToolResponse{}, err
	}
	entries, q, err := fetch(ctx, t.deps, req, 120)
	if err != nil {
		return domain.ToolResponse{}, err
	}

	var debits []ledger.Entry
	byCategory := make(map[string][]ledger.Entry)
	for _, e := range entries {
		if e.IsCredit() {
			continue
		}
		debits = append(debits, e)
		byCategory[categoryOf(e)] = append(byCategory[categoryOf(e)], e)
	}

	found := []anomaly{}
	for _, e := range debits {
		category := categoryOf(e)
		var sum float64
		var peers int
		for _, p := range byCategory[category] {
			if p.ID == e.ID {
				continue
			}
			sum += p.Amount
			peers++
		}
		if peers < anomalyMinPeers {
			continue
		}
		avg := sum / float64(peers)
		threshold := math.Max(avg*2, avg+50)
		if e.Amount < threshold {
			continue
		}
		found = append(found, anomaly{
			TransactionID:     e.ID,
			PostedOn:          e.PostedOn.String(),
			Description:       e.Description,
			Category:          category,
			Amount:            domain.Round2(e.Amount),
			CategoryAvgAmount: domain.Round2(avg),
			Threshold:         domain.Round2(threshold),
			Reason:            "amount exceeds category baseline",
		})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Amount > found[j].Amount })
	if len(found) > anomalyLimit {
		found = found[:anomalyLimit]
	}

	return domain.Success(req, spec.Name, map[string]any{
		"anomalies":         found,
		"transaction_count": len(entries),
		"analyzed_debits":   len(debits),
		"filters_used":      q.AsMap(),
	}), nil
}

type recurringTool struct {
	deps Deps
}

func (t *recurringTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        RecurringCharges,
		Description: "Detect likely recurring charges (subscriptions and repeating bills) from recent debit transactions.",
		ArgsSchema:  transactionArgsSchema(),
	}
}

type recurringCharge struct {
	Merchant        string   `json:"merchant"`
	Count           int      `json:"count"`
	AvgAmount       float64  `json:"avg_amount"`
	AvgIntervalDays float64  `json:"avg_interval_days"`
	AmountSpread    float64  `json:"amount_spread"`
	LastSeen        string   `json:"last_seen"`
	NextExpectedOn  string   `json:"next_expected_on"`
	Examples        []string `json:"examples"`
}

func (t *recurringTool) Run(ctx context.Context, req domain.ToolRequest) (domain.ToolResponse, error) {
	spec := t.Spec()
	if err := checkArgs(spec, req.Args); err != nil {
		return domain.ToolResponse{}, err
	}
	entries, q, err := fetch(ctx, t.deps, req, 180)
	if err != nil {
		return domain.ToolResponse{}, err
	}
	return domain.Success(req, spec.Name, map[string]any{
		"detected":          detectRecurring(entries),
		"transaction_count": len(entries),
		"filters_used":      q.AsMap(),
	}), nil
}

var (
	digitsRe    = regexp.MustCompile(`\d+`)
	nonLetterRe = regexp.MustCompile(`[^a-z ]+`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// normalizeMerchant reduces a description to a merchant key: lowercase,
// digits removed, punctuation folded to spaces.
func normalizeMerchant(text string) string {
	v := strings.ToLower(text)
	v = digitsRe.ReplaceAllString(v, "")
	v = nonLetterRe.ReplaceAllString(v, " ")
	v = strings.TrimSpace(spacesRe.ReplaceAllString(v, " "))
	if v == "" {
		return "unknown"
	}
	return v
}

// detectRecurring finds merchants charged at least three times at a roughly
// monthly cadence (24-38 days) with a stable amount.
func detectRecurring(entries []ledger.Entry) []recurringCharge {
	var order []string
	byMerchant := make(map[string][]ledger.Entry)
	for _, e := range entries {
		if e.IsCredit() {
			continue
		}
		m := normalizeMerchant(e.Description)
		if _, ok := byMerchant[m]; !ok {
			order = append(order, m)
		}
		byMerchant[m] = append(byMerchant[m], e)
	}

	out := []recurringCharge{}
	for _, merchant := range order {
		charges := byMerchant[merchant]
		if len(charges) < 3 {
			continue
		}
		sort.SliceStable(charges, func(i, j int) bool { return charges[i].PostedOn.Before(charges[j].PostedOn) })

		var deltaSum float64
		for i := 1; i < len(charges); i++ {
			deltaSum += float64(charges[i].PostedOn.DaysSince(charges[i-1].PostedOn))
		}
		avgDelta := deltaSum / float64(len(charges)-1)
		if avgDelta < 24 || avgDelta > 38 {
			continue
		}

		var sum float64
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, c := range charges {
			sum += c.Amount
			lo = math.Min(lo, c.Amount)
			hi = math.Max(hi, c.Amount)
		}
		avgAmount := sum / float64(len(charges))
		spread := hi - lo
		if avgAmount <= 0 || spread > math.Max(3, avgAmount*0.25) {
			continue
		}

		last := charges[len(charges)-1]
		examples := make([]string, 0, 2)
		for _, c := range charges[len(charges)-2:] {
			examples = append(examples, c.Description)
		}
		out = append(out, recurringCharge{
			Merchant:        merchant,
			Count:           len(charges),
			AvgAmount:       domain.Round2(avgAmount),
			AvgIntervalDays: math.Round(avgDelta*10) / 10,
			AmountSpread:    domain.Round2(spread),
			LastSeen:        last.PostedOn.String(),
			NextExpectedOn:  last.PostedOn.AddDays(int(math.RoundToEven(avgDelta))).String(),
			Examples:        examples,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].AvgAmount > out[j].AvgAmount
	})
	return out
}
