package excel

// RawRowData represents a row of raw sheet data keyed by lower-cased header
type RawRowData map[string]string

// SheetData represents one parsed domain file
type SheetData struct {
	Headers []string     // Column headers, lower-cased
	Rows    []RawRowData // Data rows
}
