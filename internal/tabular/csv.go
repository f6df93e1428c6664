package tabular

import "strings"

// ParseMatrix parses CSV text into a row matrix. Handles quoted fields with
// embedded commas, newlines and doubled quotes, strips a leading BOM, and
// reads both LF and CRLF line endings. Fully empty trailing rows are dropped.
func ParseMatrix(text string) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")

	rows := [][]string{}
	row := []string{}
	var cell strings.Builder
	inQuotes := false

	pushCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}
	pushRow := func() {
		rows = append(rows, row)
		row = []string{}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if inQuotes {
			if ch == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cell.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				cell.WriteRune(ch)
			}
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
		case ',':
			pushCell()
		case '\r':
			// handled on LF
		case '\n':
			pushCell()
			pushRow()
		default:
			cell.WriteRune(ch)
		}
	}
	pushCell()
	pushRow()

	for len(rows) > 0 {
		last := rows[len(rows)-1]
		empty := true
		for _, c := range last {
			if c != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		rows = rows[:len(rows)-1]
	}

	return rows
}

// WriteMatrix serializes a row matrix to CSV text: comma separated, CRLF line
// endings, no BOM. Fields containing a comma, quote or newline are wrapped in
// double quotes with internal quotes doubled.
func WriteMatrix(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		for i, field := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeField(field))
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

func escapeField(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
