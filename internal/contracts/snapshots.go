package contracts

import "time"

// Methodology labels recorded on snapshot rows so a reader can tell
// how a number was produced without chasing the producing run.
const (
	MethodologyAvgMtm         = "avg_vs_fixed_mtm"
	MethodologyAvgFinal       = "avg_vs_fixed_final"
	MethodologyMtmProjection  = "mtm_projection"
	MethodologyRealizedLocked = "realized_locked"
)

// Data-quality flags carried on snapshot rows. Missing upstream data
// degrades to flags, it never fails the pipeline.
const (
	FlagMissingSettlementDate = "missing_settlement_date"
	FlagMtmNotAvailable       = "mtm_not_available"
	FlagPnlNotAvailable       = "pnl_not_available"
	FlagFinalNotAvailable     = "final_not_available"
)

// ContractMtmSnapshot is the mark-to-market value of one contract on one
// date. Unique per (contract_id, as_of_date, currency); immutable once
// written; a run with the same inputs hash never overwrites it.
type ContractMtmSnapshot struct {
	ID             int64     `json:"id"`
	ContractID     string    `json:"contract_id"`
	AsOfDate       time.Time `json:"as_of_date"`
	Currency       string    `json:"currency"`
	AverageUSD     float64   `json:"average_usd"`
	FixedUSD       float64   `json:"fixed_usd"`
	QuantityMT     float64   `json:"quantity_mt"`
	MtmValueUSD    float64   `json:"mtm_value_usd"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	PricedThrough  time.Time `json:"priced_through"` // last settlement day in the average
	DaysUsed       int       `json:"days_used"`
	WindowComplete bool      `json:"window_complete"`
	Methodology    string    `json:"methodology"`
	QualityFlags   []string  `json:"quality_flags,omitempty"`
	InputsHash     string    `json:"inputs_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

// PnlKind distinguishes point-in-time valuations from locked outcomes
type PnlKind string

const (
	PnlUnrealized PnlKind = "unrealized"
	PnlRealized   PnlKind = "realized"
)

// ContractPnlSnapshot is one PnL row per contract per date.
// Unrealized rows are keyed by (contract, as_of_date); realized rows use
// the settlement date as their as_of_date and are written exactly once.
type ContractPnlSnapshot struct {
	ID            int64     `json:"id"`
	ContractID    string    `json:"contract_id"`
	AsOfDate      time.Time `json:"as_of_date"`
	Currency      string    `json:"currency"`
	Kind          PnlKind   `json:"kind"`
	PnlUSD        float64   `json:"pnl_usd"`
	AverageUSD    float64   `json:"average_usd"`
	FixedUSD      float64   `json:"fixed_usd"`
	QuantityMT    float64   `json:"quantity_mt"`
	Methodology   string    `json:"methodology"`
	QualityFlags  []string  `json:"quality_flags,omitempty"`
	InputsHash    string    `json:"inputs_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// CashflowBaselineItem is the daily operational view of one contract:
// best-available projected value, plus the locked settlement value once
// the settlement date has passed. Always produced, possibly flagged.
type CashflowBaselineItem struct {
	ID             int64      `json:"id"`
	ContractID     string     `json:"contract_id"`
	AsOfDate       time.Time  `json:"as_of_date"`
	Currency       string     `json:"currency"`
	ProjectedUSD   *float64   `json:"projected_usd,omitempty"`
	FinalUSD       *float64   `json:"final_usd,omitempty"`
	SettlementDate *time.Time `json:"settlement_date,omitempty"`
	Methodology    string     `json:"methodology"`
	QualityFlags   []string   `json:"quality_flags,omitempty"`
	DataIncomplete bool       `json:"data_incomplete"`
	InputsHash     string     `json:"inputs_hash"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RiskFlagType identifies a risk condition raised on a contract
type RiskFlagType string

const (
	RiskSettlementOverdue    RiskFlagType = "settlement_overdue"
	RiskValuationUnavailable RiskFlagType = "valuation_unavailable"
	RiskStaleMarketData      RiskFlagType = "stale_market_data"
)

// RiskSeverity grades a risk flag
type RiskSeverity string

const (
	SeverityInfo     RiskSeverity = "info"
	SeverityWarning  RiskSeverity = "warning"
	SeverityCritical RiskSeverity = "critical"
)

// RiskFlag is one raised risk condition for a contract on a date.
// Unique per (contract_id, as_of_date, flag_type).
type RiskFlag struct {
	ID         int64        `json:"id"`
	ContractID string       `json:"contract_id"`
	AsOfDate   time.Time    `json:"as_of_date"`
	FlagType   RiskFlagType `json:"flag_type"`
	Severity   RiskSeverity `json:"severity"`
	Message    string       `json:"message"`
	InputsHash string       `json:"inputs_hash"`
	CreatedAt  time.Time    `json:"created_at"`
}
