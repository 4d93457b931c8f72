package stamping

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/infrastructure/queue"
)

type fakeEnqueuer struct {
	jobs []StampJob
	err  error
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, jobType string, payload []byte, _ *queue.Options) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if jobType != JobTypeStampCFDI {
		return "", nil
	}
	var job StampJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return "", err
	}
	e.jobs = append(e.jobs, job)
	return "job-" + job.DocumentID, nil
}

func serviceFixture() (*Service, *fakeCFDIRepo, *fakePeriodRepo, *fakeBatchRepo, *fakeEnqueuer) {
	lines := newFakeLineRepo(
		&entity.PayrollLineItem{ID: "l-1", PeriodID: "per-1", Status: entity.LineItemStatusCalculated},
		&entity.PayrollLineItem{ID: "l-2", PeriodID: "per-1", Status: entity.LineItemStatusCalculated},
	)
	cfdis := newFakeCFDIRepo(
		&entity.CFDI{ID: "doc-1", CompanyID: "emp-1", LineItemID: "l-1", EmployeeID: "trab-1", Status: entity.CFDIStatusPending},
		&entity.CFDI{ID: "doc-2", CompanyID: "emp-1", LineItemID: "l-2", EmployeeID: "trab-2", Status: entity.CFDIStatusPending},
	)
	cfdis.lines = lines
	periods := newFakePeriodRepo(lines, &entity.PayrollPeriod{ID: "per-1", CompanyID: "emp-1", Status: entity.PeriodStatusCalculated})
	batches := newFakeBatchRepo()
	employees := newFakeEmployeeRepo(
		&entity.Employee{ID: "trab-1", CompanyID: "emp-1", FullName: "Ana Torres Gil", RFC: "TOGA900101AB1"},
	)
	enq := &fakeEnqueuer{}
	svc := NewService(cfdis, periods, batches, employees, enq, testLogger())
	return svc, cfdis, periods, batches, enq
}

// TestService_EncolaDocumento un documento PENDING se despacha con su línea y empresa.
func TestService_EncolaDocumento(t *testing.T) {
	svc, _, _, _, enq := serviceFixture()

	jobID, err := svc.EnqueueDocument(context.Background(), "doc-1", "user-7", 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	require.Len(t, enq.jobs, 1)
	assert.Equal(t, "doc-1", enq.jobs[0].DocumentID)
	assert.Equal(t, "l-1", enq.jobs[0].LineItemID)
	assert.Equal(t, "emp-1", enq.jobs[0].CompanyID)
	assert.Equal(t, "user-7", enq.jobs[0].ActorID)
}

// TestService_EncolaConVersionYPrioridad la versión del recibo y la prioridad viajan en el trabajo.
func TestService_EncolaConVersionYPrioridad(t *testing.T) {
	svc, _, _, _, enq := serviceFixture()

	_, err := svc.EnqueueDocument(context.Background(), "doc-1", "user-7", 2, 5)
	require.NoError(t, err)

	require.Len(t, enq.jobs, 1)
	assert.Equal(t, 2, enq.jobs[0].ReceiptVersion)
	assert.Equal(t, 5, enq.jobs[0].Priority)
}

// TestService_RechazaYaTimbrado encolar un documento STAMPED es ErrAlreadyStamped.
func TestService_RechazaYaTimbrado(t *testing.T) {
	svc, cfdis, _, _, enq := serviceFixture()
	cfdis.docs["doc-1"].Status = entity.CFDIStatusStamped
	cfdis.docs["doc-1"].Folio = "XYZ-999"

	_, err := svc.EnqueueDocument(context.Background(), "doc-1", "user-7", 0, 0)
	assert.ErrorIs(t, err, ErrAlreadyStamped)
	assert.Empty(t, enq.jobs)
}

// TestService_RechazaDocumentoEnError un documento en ERROR exige nueva versión del recibo.
func TestService_RechazaDocumentoEnError(t *testing.T) {
	svc, cfdis, _, _, _ := serviceFixture()
	cfdis.docs["doc-1"].Status = entity.CFDIStatusError

	_, err := svc.EnqueueDocument(context.Background(), "doc-1", "user-7", 0, 0)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// TestService_EncolaPeriodo el período CALCULATED pasa a PROCESSING, se crea un
// lote con el total y cada CFDI pendiente viaja con el batchId.
func TestService_EncolaPeriodo(t *testing.T) {
	svc, _, periods, batches, enq := serviceFixture()
	ctx := context.Background()

	batch, enqueued, err := svc.EnqueuePeriod(ctx, "per-1", "user-7")
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)
	assert.Equal(t, 2, batch.Total)

	p, _ := periods.GetByID(ctx, "per-1")
	assert.Equal(t, entity.PeriodStatusProcessing, p.Status)

	stored, _ := batches.GetByID(ctx, batch.ID)
	require.NotNil(t, stored)

	require.Len(t, enq.jobs, 2)
	for _, job := range enq.jobs {
		assert.Equal(t, "per-1", job.PeriodID)
		assert.Equal(t, batch.ID, job.BatchID)
	}
}

// TestService_PeriodoNoTimbrable un período APPROVED no acepta re-encolado.
func TestService_PeriodoNoTimbrable(t *testing.T) {
	svc, _, periods, _, _ := serviceFixture()
	periods.periods["per-1"].Status = entity.PeriodStatusApproved

	_, _, err := svc.EnqueuePeriod(context.Background(), "per-1", "user-7")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// TestService_PeriodoSinPendientes un período cuyo timbrado ya corrió no genera lote.
func TestService_PeriodoSinPendientes(t *testing.T) {
	svc, cfdis, _, _, _ := serviceFixture()
	cfdis.docs["doc-1"].Status = entity.CFDIStatusStamped
	cfdis.docs["doc-2"].Status = entity.CFDIStatusStamped

	_, _, err := svc.EnqueuePeriod(context.Background(), "per-1", "user-7")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestService_EstadoDePeriodo devuelve el conteo vivo de líneas sin timbrar.
func TestService_EstadoDePeriodo(t *testing.T) {
	svc, _, _, _, _ := serviceFixture()

	st, err := svc.GetPeriodStatus(context.Background(), "per-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.PendingItems)
	assert.Equal(t, "per-1", st.Period.ID)
}

// TestService_DocumentoConEmpleado la consulta resuelve el empleado receptor.
func TestService_DocumentoConEmpleado(t *testing.T) {
	svc, _, _, _, _ := serviceFixture()

	det, err := svc.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, det.Employee)
	assert.Equal(t, "Ana Torres Gil", det.Employee.FullName)
	assert.Equal(t, "TOGA900101AB1", det.Employee.RFC)
}

// TestService_DocumentoSinEmpleado un empleado irresoluble no bloquea la consulta.
func TestService_DocumentoSinEmpleado(t *testing.T) {
	svc, _, _, _, _ := serviceFixture()

	det, err := svc.GetDocument(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.Nil(t, det.Employee)
	assert.Equal(t, "doc-2", det.Doc.ID)
}

// TestService_DocumentoInexistente consultar un id desconocido es ErrNotFound.
func TestService_DocumentoInexistente(t *testing.T) {
	svc, _, _, _, _ := serviceFixture()
	_, err := svc.GetDocument(context.Background(), "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
