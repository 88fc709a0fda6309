package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"pharmacy/internal/domain"
)

// FileMedicineSource reads the catalog from a JSON array on disk on every call.
type FileMedicineSource struct {
	path string
}

func NewFileMedicineSource(path string) *FileMedicineSource {
	return &FileMedicineSource{path: path}
}

func (s *FileMedicineSource) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	const op = "FileMedicineSource.ListMedicines"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return DecodeMedicines(b)
}

// DecodeMedicines parses and validates a JSON catalog.
func DecodeMedicines(b []byte) ([]domain.Medicine, error) {
	var ms []domain.Medicine
	if err := json.Unmarshal(b, &ms); err != nil {
		return nil, fmt.Errorf("decode medicines: %w", err)
	}
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("decode medicines: duplicate id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return ms, nil
}
