package store

import (
	"strings"
	"time"

	"github.com/Barneycle/ganapp-core/internal/models"
)

// Filter is a single list filter condition.
type Filter interface {
	// SQL returns the WHERE fragment for this filter
	SQL() string

	// Args returns the bind arguments for this filter
	Args() []interface{}

	// Valid checks if the filter is usable
	Valid() bool
}

// EqFilter matches a column against an exact value.
type EqFilter struct {
	Column string
	Value  interface{}
}

// Columns open to equality filtering. List queries never interpolate
// caller input into SQL, so unknown columns are rejected up front.
var filterableColumns = map[string]bool{
	"status":        true,
	"event_id":      true,
	"user_id":       true,
	"organizer_id":  true,
	"survey_id":     true,
	"respondent_id": true,
	"method":        true,
}

// Valid checks the column is in the filterable set.
func (f *EqFilter) Valid() bool {
	return filterableColumns[f.Column] && f.Value != nil
}

// SQL returns the equality fragment.
func (f *EqFilter) SQL() string {
	return f.Column + " = ?"
}

// Args returns the bound value.
func (f *EqFilter) Args() []interface{} {
	return []interface{}{f.Value}
}

// DateRangeFilter matches rows whose column falls inside [From, To].
type DateRangeFilter struct {
	Column string
	From   int64
	To     int64
}

// Valid checks at least one boundary is set and they are ordered.
func (f *DateRangeFilter) Valid() bool {
	if f.Column != "created_at" && f.Column != "starts_at" && f.Column != "checked_in_at" {
		return false
	}
	if f.From == 0 && f.To == 0 {
		return false
	}
	if f.From > 0 && f.To > 0 && f.From > f.To {
		return false
	}
	// Allow a day of clock skew before rejecting future bounds.
	if f.To > 0 && f.To > time.Now().Unix()+86400 {
		return false
	}
	return true
}

// SQL returns the range fragment for the set boundaries.
func (f *DateRangeFilter) SQL() string {
	var parts []string
	if f.From > 0 {
		parts = append(parts, f.Column+" >= ?")
	}
	if f.To > 0 {
		parts = append(parts, f.Column+" <= ?")
	}
	return strings.Join(parts, " AND ")
}

// Args returns the boundary values in SQL order.
func (f *DateRangeFilter) Args() []interface{} {
	var args []interface{}
	if f.From > 0 {
		args = append(args, f.From)
	}
	if f.To > 0 {
		args = append(args, f.To)
	}
	return args
}

// FilterBuilder accumulates filters into a WHERE clause. Invalid
// filters are silently skipped so callers can chain unconditionally.
type FilterBuilder struct {
	filters []Filter
}

// NewFilterBuilder creates an empty FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{filters: make([]Filter, 0)}
}

// Eq adds an equality filter on column.
func (fb *FilterBuilder) Eq(column string, value interface{}) *FilterBuilder {
	filter := &EqFilter{Column: column, Value: value}
	if filter.Valid() {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// Status adds a status equality filter.
func (fb *FilterBuilder) Status(status string) *FilterBuilder {
	return fb.Eq("status", status)
}

// Event adds an event_id equality filter.
func (fb *FilterBuilder) Event(id models.UUID) *FilterBuilder {
	return fb.Eq("event_id", string(id))
}

// User adds a user_id equality filter.
func (fb *FilterBuilder) User(id models.UUID) *FilterBuilder {
	return fb.Eq("user_id", string(id))
}

// Survey adds a survey_id equality filter.
func (fb *FilterBuilder) Survey(id models.UUID) *FilterBuilder {
	return fb.Eq("survey_id", string(id))
}

// DateRange adds a created_at range filter.
func (fb *FilterBuilder) DateRange(from, to int64) *FilterBuilder {
	filter := &DateRangeFilter{Column: "created_at", From: from, To: to}
	if filter.Valid() {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// StartsBetween adds a starts_at range filter for event listings.
func (fb *FilterBuilder) StartsBetween(from, to int64) *FilterBuilder {
	filter := &DateRangeFilter{Column: "starts_at", From: from, To: to}
	if filter.Valid() {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// HasFilters returns true if any filters have been added.
func (fb *FilterBuilder) HasFilters() bool {
	return len(fb.filters) > 0
}

// Count returns the number of accepted filters.
func (fb *FilterBuilder) Count() int {
	return len(fb.filters)
}

// Build returns the WHERE fragment and its arguments. The fragment is
// empty when no filters were accepted.
func (fb *FilterBuilder) Build() (string, []interface{}) {
	if !fb.HasFilters() {
		return "", nil
	}

	var sqlParts []string
	var args []interface{}
	for _, filter := range fb.filters {
		sqlParts = append(sqlParts, filter.SQL())
		args = append(args, filter.Args()...)
	}
	return strings.Join(sqlParts, " AND "), args
}
