package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable field/format preset. At most one template per owner
// may carry IsDefault; writes enforce this by unsetting all siblings.
type Template struct {
	ID      uuid.UUID
	OwnerID uuid.UUID

	Name string // unique per owner

	Format     Format
	Fields     []FieldSpec
	FilterSpec []byte
	SortSpec   string

	IsDefault  bool
	IsPublic   bool
	UsageCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
