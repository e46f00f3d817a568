package anggota

import (
	"context"

	"github.com/warp/koperasi-engine/koperasi"
)

// Gate rejects transactions for members who have left the cooperative.
// It has no side effects; gated workflows call it before any write.
type Gate struct {
	Members koperasi.AnggotaRepository
}

func NewGate(members koperasi.AnggotaRepository) *Gate {
	return &Gate{Members: members}
}

// AssertCanTransact returns nil when anggotaID names an existing member
// whose membership is not Keluar.
func (g *Gate) AssertCanTransact(ctx context.Context, anggotaID string) (err error) {
	defer koperasi.Guard(&err)

	a, err := findAnggota(ctx, g.Members, anggotaID)
	if err != nil {
		return err
	}
	if a.IsKeluar() {
		return koperasi.Errorf(koperasi.CodeAnggotaKeluar,
			"Anggota %s sudah keluar dari koperasi dan tidak dapat melakukan transaksi", a.Nama).
			WithData(map[string]any{"anggotaId": a.ID, "tanggalKeluar": a.TanggalKeluar})
	}
	return nil
}

// AssertCanTransact on Service uses the service's store.
func (s *Service) AssertCanTransact(ctx context.Context, anggotaID string) error {
	return NewGate(s.Store).AssertCanTransact(ctx, anggotaID)
}
