package stamping

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "test", Level: "error"})
}

// ── Repos en memoria ─────────────────────────────────────────────────────────

type fakeCFDIRepo struct {
	mu    sync.Mutex
	docs  map[string]*entity.CFDI
	lines *fakeLineRepo // para resolver period_id vía la línea en ListPendingByPeriod
}

func newFakeCFDIRepo(docs ...*entity.CFDI) *fakeCFDIRepo {
	r := &fakeCFDIRepo{docs: make(map[string]*entity.CFDI)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeCFDIRepo) Create(_ context.Context, c *entity.CFDI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[c.ID] = c
	return nil
}

func (r *fakeCFDIRepo) GetByID(_ context.Context, id string) (*entity.CFDI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeCFDIRepo) ListPendingByPeriod(_ context.Context, periodID string) ([]*entity.CFDI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.CFDI
	for _, d := range r.docs {
		if d.Status != entity.CFDIStatusPending || r.lines == nil {
			continue
		}
		if l, ok := r.lines.lines[d.LineItemID]; ok && l.PeriodID == periodID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCFDIRepo) MarkStamped(_ context.Context, id, folio string, stampedAt time.Time, stampedDocument, pacResponse string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Status != entity.CFDIStatusPending {
		return false, nil
	}
	d.Status = entity.CFDIStatusStamped
	d.Folio = folio
	d.StampedAt = &stampedAt
	d.StampedDocument = stampedDocument
	d.LastPACResponse = pacResponse
	return true, nil
}

func (r *fakeCFDIRepo) MarkError(_ context.Context, id, errorMessage string, attemptCount int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Status != entity.CFDIStatusPending {
		return false, nil
	}
	d.Status = entity.CFDIStatusError
	d.ErrorMessage = errorMessage
	d.AttemptCount = attemptCount
	return true, nil
}

type fakeLineRepo struct {
	mu    sync.Mutex
	lines map[string]*entity.PayrollLineItem
}

func newFakeLineRepo(lines ...*entity.PayrollLineItem) *fakeLineRepo {
	r := &fakeLineRepo{lines: make(map[string]*entity.PayrollLineItem)}
	for _, l := range lines {
		r.lines[l.ID] = l
	}
	return r
}

func (r *fakeLineRepo) Create(_ context.Context, item *entity.PayrollLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[item.ID] = item
	return nil
}

func (r *fakeLineRepo) GetByID(_ context.Context, id string) (*entity.PayrollLineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLineRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok {
		return errors.New("línea no encontrada")
	}
	l.Status = status
	return nil
}

// fakePeriodRepo deriva CountItemsNotStamped de las líneas registradas.
type fakePeriodRepo struct {
	mu      sync.Mutex
	periods map[string]*entity.PayrollPeriod
	lines   *fakeLineRepo
}

func newFakePeriodRepo(lines *fakeLineRepo, periods ...*entity.PayrollPeriod) *fakePeriodRepo {
	r := &fakePeriodRepo{periods: make(map[string]*entity.PayrollPeriod), lines: lines}
	for _, p := range periods {
		r.periods[p.ID] = p
	}
	return r
}

func (r *fakePeriodRepo) Create(_ context.Context, p *entity.PayrollPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods[p.ID] = p
	return nil
}

func (r *fakePeriodRepo) GetByID(_ context.Context, id string) (*entity.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePeriodRepo) CountItemsNotStamped(_ context.Context, periodID string) (int64, error) {
	r.lines.mu.Lock()
	defer r.lines.mu.Unlock()
	var n int64
	for _, l := range r.lines.lines {
		if l.PeriodID == periodID && l.Status != entity.LineItemStatusStampOK {
			n++
		}
	}
	return n, nil
}

func (r *fakePeriodRepo) MarkProcessing(_ context.Context, periodID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[periodID]
	if !ok {
		return false, nil
	}
	switch p.Status {
	case entity.PeriodStatusCalculated, entity.PeriodStatusProcessing:
		p.Status = entity.PeriodStatusProcessing
		return true, nil
	}
	return false, nil
}

func (r *fakePeriodRepo) TransitionIfProcessing(_ context.Context, periodID, toStatus string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[periodID]
	if !ok || p.Status != entity.PeriodStatusProcessing {
		return false, nil
	}
	p.Status = toStatus
	return true, nil
}

func (r *fakePeriodRepo) ListStuckProcessing(_ context.Context, _ string) ([]*entity.PayrollPeriod, error) {
	return nil, nil
}

// fakeAttemptRepo respeta la unicidad: a lo sumo un intento sin resolver por
// (CFDIID, ReceiptVersion), igual que el índice parcial del store real.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*entity.StampingAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[string]*entity.StampingAttempt)}
}

func (r *fakeAttemptRepo) CreateIfNoneUnresolved(_ context.Context, attempt *entity.StampingAttempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.CFDIID == attempt.CFDIID && a.ReceiptVersion == attempt.ReceiptVersion && !a.IsResolved() {
			return false, nil
		}
	}
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return true, nil
}

func (r *fakeAttemptRepo) GetUnresolved(_ context.Context, cfdiID string, receiptVersion int) (*entity.StampingAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.CFDIID == cfdiID && a.ReceiptVersion == receiptVersion && !a.IsResolved() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAttemptRepo) Resolve(_ context.Context, attemptID, outcome, errorType, errorMessage, pacResponse string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok || a.IsResolved() {
		return false, nil
	}
	now := time.Now()
	a.Outcome = outcome
	a.ErrorType = errorType
	a.ErrorMessage = errorMessage
	a.PACResponse = pacResponse
	a.ResolvedAt = &now
	return true, nil
}

func (r *fakeAttemptRepo) MarkExpired(_ context.Context, attemptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return errors.New("intento no encontrado")
	}
	now := time.Now()
	a.Outcome = entity.AttemptOutcomeFailure
	a.ErrorMessage = "candado vencido"
	a.ResolvedAt = &now
	return nil
}

func (r *fakeAttemptRepo) unresolvedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.attempts {
		if !a.IsResolved() {
			n++
		}
	}
	return n
}

type fakeBatchRepo struct {
	mu      sync.Mutex
	batches map[string]*entity.StampingBatch
}

func newFakeBatchRepo(batches ...*entity.StampingBatch) *fakeBatchRepo {
	r := &fakeBatchRepo{batches: make(map[string]*entity.StampingBatch)}
	for _, b := range batches {
		r.batches[b.ID] = b
	}
	return r
}

func (r *fakeBatchRepo) Create(_ context.Context, b *entity.StampingBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = b
	return nil
}

func (r *fakeBatchRepo) GetByID(_ context.Context, id string) (*entity.StampingBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBatchRepo) IncrementCompleted(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.Completed++
	}
	return nil
}

func (r *fakeBatchRepo) IncrementFailed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.Failed++
	}
	return nil
}

type fakeCompanyRepo struct {
	companies map[string]*entity.Company
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	if r.companies == nil {
		return nil, nil
	}
	return r.companies[id], nil
}

type fakeEmployeeRepo struct {
	employees map[string]*entity.Employee
}

func newFakeEmployeeRepo(emps ...*entity.Employee) *fakeEmployeeRepo {
	r := &fakeEmployeeRepo{employees: make(map[string]*entity.Employee)}
	for _, e := range emps {
		r.employees[e.ID] = e
	}
	return r
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string) (*entity.Employee, error) {
	return r.employees[id], nil
}

// ── Puertos ──────────────────────────────────────────────────────────────────

type auditCall struct {
	Actor      string
	Action     string
	EntityType string
	EntityID   string
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditCall
	err     error
}

func (a *fakeAudit) Record(_ context.Context, actorID, action, entityType, entityID string, _, _ map[string]any) (*entity.AuditEntry, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditCall{Actor: actorID, Action: action, EntityType: entityType, EntityID: entityID})
	return &entity.AuditEntry{SequenceNumber: int64(len(a.records))}, nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.Action
	}
	return out
}

// fakeTxRunner ejecuta el cierre directamente sobre los repos en memoria; con
// failErr simula un commit que no pudo completarse.
type fakeTxRunner struct {
	cfdis   *fakeCFDIRepo
	lines   *fakeLineRepo
	failErr error
}

func (t *fakeTxRunner) RunStamping(_ context.Context, fn func(repository.CFDIRepository, repository.PayrollLineItemRepository) error) error {
	if t.failErr != nil {
		return t.failErr
	}
	return fn(t.cfdis, t.lines)
}

type fakeClient struct {
	mu     sync.Mutex
	calls  int
	result *StampResult
	err    error
}

func (c *fakeClient) Stamp(_ context.Context, _ string, _ *SigningCredentials) (*StampResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeCreds struct {
	err error
}

func (c *fakeCreds) GetSigningCredentials(_ context.Context, _ string) (*SigningCredentials, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &SigningCredentials{Provider: "finkok", Mode: "dev"}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakePublisher) Publish(_ context.Context, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Name
	}
	return out
}
