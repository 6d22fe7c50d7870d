package domain

// Record is one row returned by the external record provider.
// Keys are field names; values are whatever the provider yields.
type Record map[string]any

// RecordQuery carries the opaque query description to the record provider.
type RecordQuery struct {
	FilterSpec       []byte
	SortSpec         string
	RelatedInclusion []string
}
