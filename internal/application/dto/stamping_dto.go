package dto

import (
	"time"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// StampDocumentRequest cuerpo opcional al encolar el timbrado de un documento.
type StampDocumentRequest struct {
	ReceiptVersion int `json:"receipt_version"` // versión del recibo a timbrar (0 = vigente)
	Priority       int `json:"priority"`        // prioridad del trabajo en la cola
}

// StampAcceptedResponse respuesta al encolar el timbrado de un documento.
type StampAcceptedResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
}

// PeriodStampAcceptedResponse respuesta al encolar el timbrado de un período.
type PeriodStampAcceptedResponse struct {
	BatchID  string `json:"batch_id"`
	PeriodID string `json:"period_id"`
	Enqueued int    `json:"enqueued"`
}

// CFDIResponse proyección de un comprobante para el operador. El documento
// origen y el timbrado completo no viajan en consultas de estado.
type CFDIResponse struct {
	ID           string     `json:"id"`
	LineItemID   string     `json:"line_item_id"`
	EmployeeID   string     `json:"employee_id"`
	EmployeeName string     `json:"employee_name,omitempty"`
	EmployeeRFC  string     `json:"employee_rfc,omitempty"`
	Status       string     `json:"status"`
	Folio        string     `json:"folio,omitempty"`
	StampedAt    *time.Time `json:"stamped_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AttemptCount int        `json:"attempt_count"`
}

// NewCFDIResponse arma la proyección desde la entidad. emp puede ser nil.
func NewCFDIResponse(c *entity.CFDI, emp *entity.Employee) CFDIResponse {
	out := CFDIResponse{
		ID:           c.ID,
		LineItemID:   c.LineItemID,
		EmployeeID:   c.EmployeeID,
		Status:       c.Status,
		Folio:        c.Folio,
		StampedAt:    c.StampedAt,
		ErrorMessage: c.ErrorMessage,
		AttemptCount: c.AttemptCount,
	}
	if emp != nil {
		out.EmployeeName = emp.FullName
		out.EmployeeRFC = emp.RFC
	}
	return out
}

// PeriodStatusResponse estado de un período con su conteo vivo de pendientes.
type PeriodStatusResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	PendingItems int64      `json:"pending_items"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

// NewPeriodStatusResponse arma la proyección desde la entidad.
func NewPeriodStatusResponse(p *entity.PayrollPeriod, pending int64) PeriodStatusResponse {
	return PeriodStatusResponse{
		ID:           p.ID,
		Name:         p.Name,
		Status:       p.Status,
		PendingItems: pending,
		ApprovedAt:   p.ApprovedAt,
	}
}

// BatchResponse avance de un lote de timbrado.
type BatchResponse struct {
	ID        string `json:"id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Done      bool   `json:"done"`
}

// NewBatchResponse arma la proyección desde la entidad.
func NewBatchResponse(b *entity.StampingBatch) BatchResponse {
	return BatchResponse{
		ID:        b.ID,
		Total:     b.Total,
		Completed: b.Completed,
		Failed:    b.Failed,
		Done:      b.Done(),
	}
}

// VerifyChainRequest rango de bitácora a verificar. Con ceros se verifica desde
// la primera entrada.
type VerifyChainRequest struct {
	FromSeq int64 `json:"from_seq"`
	ToSeq   int64 `json:"to_seq"`
}
