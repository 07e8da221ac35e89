package contracts

import (
	"fmt"
	"time"
)

// DateOnly is the wire/database format for business dates
const DateOnly = "2006-01-02"

// Day normalizes a timestamp to a UTC calendar day.
// All pipeline date arithmetic happens on normalized days.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ContractStatus is the lifecycle status of a hedge contract
type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractSettled   ContractStatus = "settled"
	ContractCancelled ContractStatus = "cancelled"
)

// FixedSide says which side of the swap holds the fixed price
type FixedSide string

const (
	FixedBuy  FixedSide = "buy"  // we pay fixed, receive the average
	FixedSell FixedSide = "sell" // we receive fixed, pay the average
)

// PricingMode describes the variable leg of the trade
type PricingMode string

const (
	// PricingAvg averages the daily reference price over a calendar window
	PricingAvg PricingMode = "AVG"
	// PricingAvgInterval is the same payoff over an explicitly quoted sub-interval
	PricingAvgInterval PricingMode = "AVG-interval"
)

// TradeSpec describes the pricing legs of a hedge contract.
// The fixed leg is a price agreed at trade time; the variable leg is the
// arithmetic mean of a daily settlement series over [AvgStart, AvgEnd].
type TradeSpec struct {
	Symbol        string      `json:"symbol"`     // e.g. LME_AL
	PriceType     string      `json:"price_type"` // e.g. cash_settlement
	PricingMode   PricingMode `json:"pricing_mode"`
	QuantityMT    float64     `json:"quantity_mt"`
	FixedPriceUSD float64     `json:"fixed_price_usd"`
	FixedSide     FixedSide   `json:"fixed_side"`
	AvgStart      time.Time   `json:"avg_start"`
	AvgEnd        time.Time   `json:"avg_end"`
	Currency      string      `json:"currency"`
}

// Validate checks that the spec can be priced at all
func (s TradeSpec) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("trade spec: symbol is required")
	}
	if s.QuantityMT <= 0 {
		return fmt.Errorf("trade spec: quantity must be positive, got %f", s.QuantityMT)
	}
	if s.FixedSide != FixedBuy && s.FixedSide != FixedSell {
		return fmt.Errorf("trade spec: unknown fixed side %q", s.FixedSide)
	}
	if s.PricingMode != PricingAvg && s.PricingMode != PricingAvgInterval {
		return fmt.Errorf("trade spec: unknown pricing mode %q", s.PricingMode)
	}
	if s.AvgStart.IsZero() || s.AvgEnd.IsZero() {
		return fmt.Errorf("trade spec: averaging window is required")
	}
	if s.AvgEnd.Before(s.AvgStart) {
		return fmt.Errorf("trade spec: averaging window ends (%s) before it starts (%s)",
			s.AvgEnd.Format(DateOnly), s.AvgStart.Format(DateOnly))
	}
	return nil
}

// PayoffSign returns +1 when a rising average benefits us, -1 otherwise
func (s TradeSpec) PayoffSign() float64 {
	if s.FixedSide == FixedSell {
		return -1
	}
	return 1
}

// Contract is a hedge contract as read from the store.
// This core never mutates contracts; the trade-capture side owns them.
type Contract struct {
	ID             string         `json:"id"`
	Reference      string         `json:"reference"` // human deal number, e.g. HC-2026-0042
	Counterparty   string         `json:"counterparty"`
	Status         ContractStatus `json:"status"`
	Spec           TradeSpec      `json:"spec"`
	SettlementDate *time.Time     `json:"settlement_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsSettledBy reports whether the contract has a settlement date on or
// before the given day.
func (c *Contract) IsSettledBy(day time.Time) bool {
	if c.SettlementDate == nil {
		return false
	}
	return !Day(*c.SettlementDate).After(Day(day))
}

// ScopeFilters narrows the set of contracts a pipeline run touches.
// Empty fields mean "no restriction". Filters participate in the
// canonical inputs hash, so two runs with the same filters share a run row.
type ScopeFilters struct {
	Counterparty string   `json:"counterparty,omitempty"`
	Symbol       string   `json:"symbol,omitempty"`
	ContractIDs  []string `json:"contract_ids,omitempty"`
}

// IsZero reports whether no filter is set
func (f ScopeFilters) IsZero() bool {
	return f.Counterparty == "" && f.Symbol == "" && len(f.ContractIDs) == 0
}

// ParseScopeFilters decodes the schema-less filter map carried on a run
// request into typed filters. Unknown keys are rejected so a typo in a
// caller's filter does not silently widen the scope.
func ParseScopeFilters(raw map[string]interface{}) (ScopeFilters, error) {
	var f ScopeFilters
	for key, value := range raw {
		if value == nil {
			continue
		}
		switch key {
		case "counterparty":
			s, ok := value.(string)
			if !ok {
				return f, fmt.Errorf("scope filter %q: expected string, got %T", key, value)
			}
			f.Counterparty = s
		case "symbol":
			s, ok := value.(string)
			if !ok {
				return f, fmt.Errorf("scope filter %q: expected string, got %T", key, value)
			}
			f.Symbol = s
		case "contract_ids":
			switch ids := value.(type) {
			case []string:
				f.ContractIDs = ids
			case []interface{}:
				for _, id := range ids {
					s, ok := id.(string)
					if !ok {
						return f, fmt.Errorf("scope filter %q: expected string ids, got %T", key, id)
					}
					f.ContractIDs = append(f.ContractIDs, s)
				}
			default:
				return f, fmt.Errorf("scope filter %q: expected string list, got %T", key, value)
			}
		default:
			return f, fmt.Errorf("unknown scope filter %q", key)
		}
	}
	return f, nil
}
