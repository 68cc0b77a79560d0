package domain

import "time"

// LookupKind identifies a managed option list.
type LookupKind string

const (
	LookupKindCategory   LookupKind = "CATEGORY"
	LookupKindDepartment LookupKind = "DEPARTMENT"
)

// ValidLookupKind reports whether k names a managed list.
func ValidLookupKind(k LookupKind) bool {
	return k == LookupKindCategory || k == LookupKindDepartment
}

// LookupOption is one entry of a persisted option list. Replaces the ad hoc
// client-side "+New" array growth with an administered table.
type LookupOption struct {
	ID        string
	Kind      LookupKind
	Label     string
	CreatedAt time.Time
}
