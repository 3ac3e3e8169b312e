package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"mesapos/backend/internal/domain"
)

var (
	ErrDuplicate     = errors.New("duplicate sale id")
	ErrInvalidRecord = errors.New("invalid sale record")
)

// Remote is the shared sales repository that local records are pushed to.
type Remote interface {
	Insert(ctx context.Context, record domain.SaleRecord) error
	SelectAll(ctx context.Context) ([]domain.SaleRecord, error)
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// ValidateForInsert rejects records a remote must never store.
func ValidateForInsert(record domain.SaleRecord) error {
	if record.ID == "" || record.TableNumber < 1 || record.Timestamp <= 0 {
		return ErrInvalidRecord
	}
	return nil
}

// DecodeItems normalizes a stored items column. It accepts a JSON array or a
// JSON string holding an array; anything else yields an empty slice.
func DecodeItems(raw []byte) []domain.LineItem {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.LineItem{}
	}

	switch raw[0] {
	case '[':
		var items []domain.LineItem
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			return []domain.LineItem{}
		}
		return items
	case '"':
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return []domain.LineItem{}
		}
		return DecodeItems([]byte(inner))
	default:
		return []domain.LineItem{}
	}
}

// EncodeItems is the inverse of DecodeItems for an array column.
func EncodeItems(items []domain.LineItem) ([]byte, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	return json.Marshal(items)
}
