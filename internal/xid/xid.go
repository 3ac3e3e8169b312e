package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns prefix-<unix ms>-<suffix>. The suffix is the random tail of a
// v7 UUID, so two IDs minted in the same millisecond still differ.
func New(prefix string) string {
	now := time.Now()
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, now.UnixNano())
	}
	raw := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), raw[len(raw)-12:])
}
