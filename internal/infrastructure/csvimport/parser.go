package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/catalogd/backend/internal/domain/shared"
)

// Column names recognized in the header, matched case-insensitively
const (
	ColumnSKU         = "sku"
	ColumnName        = "name"
	ColumnDescription = "description"
)

// Row is one data row keyed by normalized header name
type Row map[string]string

// Parser reads product rows out of a CSV stream. Headers are
// lowercased and trimmed; a UTF-8 BOM on the first header cell is
// stripped.
type Parser struct {
	reader  *csv.Reader
	columns []string
	// line tracks the 1-based data row number, excluding the header
	line int
}

// NewParser wraps r and validates the header. The header must contain
// sku and name columns in any casing.
func NewParser(r io.Reader) (*Parser, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, shared.NewDomainError("EMPTY_FILE", "CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\uFEFF")
		}
		columns[i] = strings.ToLower(strings.TrimSpace(col))
		seen[columns[i]] = true
	}

	if !seen[ColumnSKU] || !seen[ColumnName] {
		return nil, shared.NewDomainError("MISSING_COLUMNS",
			fmt.Sprintf("CSV must contain '%s' and '%s' columns", ColumnSKU, ColumnName))
	}

	return &Parser{reader: cr, columns: columns}, nil
}

// Next returns the next data row and its 1-based row number. io.EOF
// signals the end of the file.
func (p *Parser) Next() (Row, int, error) {
	record, err := p.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		p.line++
		return nil, p.line, fmt.Errorf("malformed CSV row: %w", err)
	}
	p.line++

	row := make(Row, len(p.columns))
	for i, col := range p.columns {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	return row, p.line, nil
}

// CountRows counts the data rows in a CSV stream, header excluded.
// Malformed rows still count; they surface as errors in the processing
// pass.
func CountRows(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	count := 0
	for {
		_, err := cr.Read()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			count++
			continue
		}
		count++
	}
}
