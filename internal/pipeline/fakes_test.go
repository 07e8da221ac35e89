package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// In-memory collaborators mirroring the Postgres repositories'
// conflict semantics, so orchestration tests run without a database.

type fakeContractStore struct {
	contracts []*contracts.Contract
}

func (f *fakeContractStore) Get(ctx context.Context, id string) (*contracts.Contract, error) {
	for _, c := range f.contracts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("contract %s not found", id)
}

func (f *fakeContractStore) ListInScope(ctx context.Context, filters contracts.ScopeFilters) ([]*contracts.Contract, error) {
	var out []*contracts.Contract
	for _, c := range f.contracts {
		if filters.Counterparty != "" && c.Counterparty != filters.Counterparty {
			continue
		}
		if filters.Symbol != "" && c.Spec.Symbol != filters.Symbol {
			continue
		}
		if len(filters.ContractIDs) > 0 {
			found := false
			for _, id := range filters.ContractIDs {
				if id == c.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

type memFeed struct {
	prices map[string]float64
	failed bool // when set, lookups error
}

func (f *memFeed) LatestPublishedDate(ctx context.Context, symbol, priceType string) (time.Time, bool, error) {
	if f.failed {
		return time.Time{}, false, fmt.Errorf("feed unavailable")
	}
	var latest time.Time
	for d := range f.prices {
		day, _ := time.Parse(contracts.DateOnly, d)
		if day.After(latest) {
			latest = day
		}
	}
	if latest.IsZero() {
		return time.Time{}, false, nil
	}
	return latest, true, nil
}

func (f *memFeed) PriceOn(ctx context.Context, symbol, priceType string, day time.Time) (float64, bool, error) {
	if f.failed {
		return 0, false, fmt.Errorf("feed unavailable")
	}
	p, ok := f.prices[day.Format(contracts.DateOnly)]
	return p, ok, nil
}

func (f *memFeed) SeriesBetween(ctx context.Context, symbol, priceType string, from, to time.Time) ([]contracts.SettlementPrice, error) {
	if f.failed {
		return nil, fmt.Errorf("feed unavailable")
	}
	var series []contracts.SettlementPrice
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if p, ok := f.prices[d.Format(contracts.DateOnly)]; ok {
			series = append(series, contracts.SettlementPrice{Symbol: symbol, PriceType: priceType, Date: d, PriceUSD: p})
		}
	}
	return series, nil
}

type fakeRunStore struct {
	mu     sync.Mutex
	nextID int
	runs   map[string]*contracts.PipelineRun
	byHash map[string]string
	steps  map[string]map[contracts.StepName]*contracts.PipelineStep
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs:   make(map[string]*contracts.PipelineRun),
		byHash: make(map[string]string),
		steps:  make(map[string]map[contracts.StepName]*contracts.PipelineStep),
	}
}

func (f *fakeRunStore) CreateOrGetRun(ctx context.Context, run *contracts.PipelineRun) (*contracts.PipelineRun, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byHash[run.InputsHash]; ok {
		copied := *f.runs[id]
		return &copied, false, nil
	}

	f.nextID++
	stored := *run
	stored.ID = fmt.Sprintf("run-%d", f.nextID)
	stored.Status = contracts.RunQueued
	stored.CreatedAt = time.Now().UTC()
	f.runs[stored.ID] = &stored
	f.byHash[stored.InputsHash] = stored.ID
	f.steps[stored.ID] = make(map[contracts.StepName]*contracts.PipelineStep)

	copied := stored
	return &copied, true, nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, id string) (*contracts.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

func (f *fakeRunStore) GetRunByHash(ctx context.Context, inputsHash string) (*contracts.PipelineRun, error) {
	f.mu.Lock()
	id, ok := f.byHash[inputsHash]
	f.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return f.GetRun(ctx, id)
}

func (f *fakeRunStore) SetRunStatus(ctx context.Context, id string, status contracts.RunStatus, errorCode, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	run.Status = status
	run.ErrorCode = errorCode
	run.ErrorMessage = errorMessage
	now := time.Now().UTC()
	if status == contracts.RunRunning && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if status.IsTerminal() {
		run.FinishedAt = &now
	} else {
		run.FinishedAt = nil
	}
	return nil
}

func (f *fakeRunStore) EnsureSteps(ctx context.Context, runID string, names []contracts.StepName) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps, ok := f.steps[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	for i, name := range names {
		if _, exists := steps[name]; !exists {
			steps[name] = &contracts.PipelineStep{
				ID:     int64(i + 1),
				RunID:  runID,
				Name:   name,
				Status: contracts.StepPending,
			}
		}
	}
	return nil
}

func (f *fakeRunStore) ListSteps(ctx context.Context, runID string) ([]*contracts.PipelineStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*contracts.PipelineStep
	for _, name := range contracts.StepOrder() {
		if s, ok := f.steps[runID][name]; ok {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRunStore) SetStepStatus(ctx context.Context, runID string, name contracts.StepName, status contracts.StepStatus, errorCode, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.steps[runID][name]
	if !ok {
		return fmt.Errorf("step %s of run %s not found", name, runID)
	}
	s.Status = status
	s.ErrorCode = errorCode
	s.ErrorMessage = errorMessage
	now := time.Now().UTC()
	if status == contracts.StepRunning && s.StartedAt == nil {
		s.StartedAt = &now
	}
	if status.IsTerminal() {
		s.FinishedAt = &now
	}
	return nil
}

func (f *fakeRunStore) SetStepArtifacts(ctx context.Context, runID string, name contracts.StepName, artifacts map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.steps[runID][name]
	if !ok {
		return fmt.Errorf("step %s of run %s not found", name, runID)
	}
	s.Artifacts = artifacts
	return nil
}

type fakeMtmStore struct {
	mu       sync.Mutex
	rows     map[string]*contracts.ContractMtmSnapshot
	inserts  int
	failNext bool
}

func newFakeMtmStore() *fakeMtmStore {
	return &fakeMtmStore{rows: make(map[string]*contracts.ContractMtmSnapshot)}
}

func mtmKey(contractID string, asOf time.Time, currency string) string {
	return fmt.Sprintf("%s|%s|%s", contractID, contracts.Day(asOf).Format(contracts.DateOnly), currency)
}

func (f *fakeMtmStore) Insert(ctx context.Context, snap *contracts.ContractMtmSnapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return false, fmt.Errorf("mtm storage unavailable: transient write failure on snapshot insert")
	}
	key := mtmKey(snap.ContractID, snap.AsOfDate, snap.Currency)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	copied := *snap
	f.rows[key] = &copied
	f.inserts++
	return true, nil
}

func (f *fakeMtmStore) Get(ctx context.Context, contractID string, asOf time.Time, currency string) (*contracts.ContractMtmSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.rows[mtmKey(contractID, asOf, currency)]
	if !ok {
		return nil, nil
	}
	copied := *snap
	return &copied, nil
}

func (f *fakeMtmStore) ListByDate(ctx context.Context, asOf time.Time) ([]*contracts.ContractMtmSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*contracts.ContractMtmSnapshot
	for _, snap := range f.rows {
		if contracts.Day(snap.AsOfDate).Equal(contracts.Day(asOf)) {
			copied := *snap
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakePnlStore struct {
	mu      sync.Mutex
	rows    map[string]*contracts.ContractPnlSnapshot
	inserts int
}

func newFakePnlStore() *fakePnlStore {
	return &fakePnlStore{rows: make(map[string]*contracts.ContractPnlSnapshot)}
}

func pnlKey(contractID string, asOf time.Time, currency string, kind contracts.PnlKind) string {
	return fmt.Sprintf("%s|%s|%s|%s", contractID, contracts.Day(asOf).Format(contracts.DateOnly), currency, kind)
}

func (f *fakePnlStore) Insert(ctx context.Context, snap *contracts.ContractPnlSnapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pnlKey(snap.ContractID, snap.AsOfDate, snap.Currency, snap.Kind)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	copied := *snap
	f.rows[key] = &copied
	f.inserts++
	return true, nil
}

func (f *fakePnlStore) Get(ctx context.Context, contractID string, asOf time.Time, currency string) (*contracts.ContractPnlSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Realized rows win over unrealized for the same date
	if snap, ok := f.rows[pnlKey(contractID, asOf, currency, contracts.PnlRealized)]; ok {
		copied := *snap
		return &copied, nil
	}
	if snap, ok := f.rows[pnlKey(contractID, asOf, currency, contracts.PnlUnrealized)]; ok {
		copied := *snap
		return &copied, nil
	}
	return nil, nil
}

func (f *fakePnlStore) HasRealized(ctx context.Context, contractID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, snap := range f.rows {
		if snap.ContractID == contractID && snap.Kind == contracts.PnlRealized {
			return true, nil
		}
	}
	return false, nil
}

type fakeCashflowStore struct {
	mu      sync.Mutex
	rows    map[string]*contracts.CashflowBaselineItem
	inserts int
}

func newFakeCashflowStore() *fakeCashflowStore {
	return &fakeCashflowStore{rows: make(map[string]*contracts.CashflowBaselineItem)}
}

func (f *fakeCashflowStore) Insert(ctx context.Context, item *contracts.CashflowBaselineItem) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", item.ContractID, contracts.Day(item.AsOfDate).Format(contracts.DateOnly), item.Currency)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	copied := *item
	f.rows[key] = &copied
	f.inserts++
	return true, nil
}

func (f *fakeCashflowStore) ListByDate(ctx context.Context, asOf time.Time) ([]*contracts.CashflowBaselineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*contracts.CashflowBaselineItem
	for _, item := range f.rows {
		if contracts.Day(item.AsOfDate).Equal(contracts.Day(asOf)) {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeRiskStore struct {
	mu       sync.Mutex
	rows     map[string]*contracts.RiskFlag
	inserts  int
	failNext bool
}

func newFakeRiskStore() *fakeRiskStore {
	return &fakeRiskStore{rows: make(map[string]*contracts.RiskFlag)}
}

func (f *fakeRiskStore) Insert(ctx context.Context, flag *contracts.RiskFlag) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return false, fmt.Errorf("risk storage unavailable: transient write failure on flag insert")
	}
	key := fmt.Sprintf("%s|%s|%s", flag.ContractID, contracts.Day(flag.AsOfDate).Format(contracts.DateOnly), flag.FlagType)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	copied := *flag
	f.rows[key] = &copied
	f.inserts++
	return true, nil
}

func (f *fakeRiskStore) ListByDate(ctx context.Context, asOf time.Time) ([]*contracts.RiskFlag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*contracts.RiskFlag
	for _, flag := range f.rows {
		if contracts.Day(flag.AsOfDate).Equal(contracts.Day(asOf)) {
			copied := *flag
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events map[string]contracts.TimelineEvent // by idempotency key
	order  []string
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{events: make(map[string]contracts.TimelineEvent)}
}

func (f *fakeEmitter) Emit(ctx context.Context, event contracts.TimelineEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.events[event.IdempotencyKey]; exists {
		return nil
	}
	f.events[event.IdempotencyKey] = event
	f.order = append(f.order, event.IdempotencyKey)
	return nil
}

func (f *fakeEmitter) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, key := range f.order {
		types = append(types, f.events[key].EventType)
	}
	return types
}
