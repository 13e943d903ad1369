package csvimport

import (
	"fmt"
	"strings"

	"github.com/catalogd/backend/internal/domain/catalog"
)

// ProductRecord is a normalized, validated product row ready for upsert
type ProductRecord struct {
	SKU         string
	Name        string
	Description string
}

// RowError reports why one CSV row was rejected
type RowError struct {
	Row     int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NormalizeRow validates and cleans one parsed row. Values are trimmed
// and internal whitespace runs collapsed to single spaces; sku and
// name are required and truncated to their column limits.
func NormalizeRow(row Row, rowNum int) (ProductRecord, error) {
	sku := collapseWhitespace(row[ColumnSKU])
	if sku == "" {
		return ProductRecord{}, &RowError{Row: rowNum, Message: "missing required field 'sku'"}
	}
	name := collapseWhitespace(row[ColumnName])
	if name == "" {
		return ProductRecord{}, &RowError{Row: rowNum, Message: "missing required field 'name'"}
	}

	sku = truncateRunes(sku, catalog.MaxSKULength)
	name = truncateRunes(name, catalog.MaxNameLength)

	return ProductRecord{
		SKU:         sku,
		Name:        name,
		Description: collapseWhitespace(row[ColumnDescription]),
	}, nil
}

// truncateRunes cuts s to at most max characters, never splitting a
// multibyte rune
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// collapseWhitespace trims the value and replaces each run of
// whitespace with a single space
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
