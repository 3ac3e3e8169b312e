package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type LineItem struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

// UnmarshalJSON accepts a price encoded as a number or a numeric string.
// Anything else decodes as a zero price instead of failing the whole record.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string          `json:"name"`
		Price    json.RawMessage `json:"price"`
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Name = raw.Name
	l.Price = looseNumber(raw.Price)
	l.Quantity = int(looseNumber(raw.Quantity))
	return nil
}

func looseNumber(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed
		}
	}
	return 0
}

func (l LineItem) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

type SaleRecord struct {
	ID          string     `json:"id"`
	TableNumber int        `json:"table_number"`
	TableName   string     `json:"table_name"`
	Items       []LineItem `json:"items"`
	Total       float64    `json:"total"`
	Timestamp   int64      `json:"timestamp"`
	Date        string     `json:"date"`
	Synced      bool       `json:"synced"`
}

// Time returns the event time of the sale in loc.
func (r SaleRecord) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(r.Timestamp).In(loc)
}

func (r SaleRecord) ItemCount() int {
	count := 0
	for _, item := range r.Items {
		count += item.Quantity
	}
	return count
}

// ItemsTotal is the sum of price*quantity over the line items.
func ItemsTotal(items []LineItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

type RecordSaleRequest struct {
	TableNumber int        `json:"table_number" validate:"gt=0"`
	TableName   string     `json:"table_name,omitempty" validate:"max=64"`
	Items       []LineItem `json:"items" validate:"dive"`
	Total       float64    `json:"total" validate:"gte=0"`
}

type RecordSaleResponse struct {
	Sale SaleRecord `json:"sale"`
}

type SaleListResponse struct {
	Period string       `json:"period"`
	Sales  []SaleRecord `json:"sales"`
	Source string       `json:"source"`
}

type TableNameRequest struct {
	Name string `json:"name" validate:"max=64"`
}

type TableName struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type SyncReport struct {
	Online    bool      `json:"online"`
	Attempted int       `json:"attempted"`
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	Abandoned int       `json:"abandoned"`
	Orphans   int       `json:"orphans"`
	Remaining int       `json:"remaining"`
	RanAt     time.Time `json:"ran_at"`
}

type SyncStatus struct {
	Online      bool `json:"online"`
	Pending     int  `json:"pending"`
	Abandoned   int  `json:"abandoned"`
	Total       int  `json:"total"`
	MaxAttempts int  `json:"max_attempts"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleManager = "manager"
	RoleStaff   = "staff"
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)
