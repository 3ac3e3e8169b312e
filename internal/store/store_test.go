package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mesapos/backend/internal/domain"
)

func TestDecodeItems(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []domain.LineItem
	}{
		{
			name: "array",
			raw:  `[{"name":"Taco","price":20,"quantity":3}]`,
			want: []domain.LineItem{{Name: "Taco", Price: 20, Quantity: 3}},
		},
		{
			name: "string wrapped array",
			raw:  `"[{\"name\":\"Agua\",\"price\":\"15.5\",\"quantity\":1}]"`,
			want: []domain.LineItem{{Name: "Agua", Price: 15.5, Quantity: 1}},
		},
		{
			name: "non numeric price",
			raw:  `[{"name":"Caldo","price":"gratis","quantity":1}]`,
			want: []domain.LineItem{{Name: "Caldo", Price: 0, Quantity: 1}},
		},
		{name: "malformed string", raw: `"[{broken"`, want: []domain.LineItem{}},
		{name: "object", raw: `{"name":"Taco"}`, want: []domain.LineItem{}},
		{name: "null", raw: `null`, want: []domain.LineItem{}},
		{name: "empty", raw: ``, want: []domain.LineItem{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeItems([]byte(tc.raw)))
		})
	}
}

func TestValidateForInsert(t *testing.T) {
	ok := domain.SaleRecord{ID: "sale-1", TableNumber: 2, Timestamp: 1}
	assert.NoError(t, ValidateForInsert(ok))

	noTable := ok
	noTable.TableNumber = 0
	assert.ErrorIs(t, ValidateForInsert(noTable), ErrInvalidRecord)
}
