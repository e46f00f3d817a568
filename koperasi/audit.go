package koperasi

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Auditor builds audit entries with a timestamp taken at append time.
type Auditor struct {
	Now func() time.Time
}

func NewAuditor() *Auditor {
	return &Auditor{Now: time.Now}
}

// Entry builds an entry for a member transition. The caller appends it,
// usually inside the same WithTx as the transition itself.
func (a *Auditor) Entry(actor string, action AuditAction, anggota Anggota, payload map[string]any) AuditEntry {
	now := time.Now
	if a != nil && a.Now != nil {
		now = a.Now
	}
	return AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   now().UTC(),
		ActorID:     actor,
		Action:      action,
		AnggotaID:   anggota.ID,
		AnggotaNama: anggota.Nama,
		Payload:     payload,
	}
}

// Record builds and appends in one step.
func (a *Auditor) Record(ctx context.Context, log AuditLog, actor string, action AuditAction, anggota Anggota, payload map[string]any) error {
	return log.AppendAudit(ctx, a.Entry(actor, action, anggota, payload))
}
