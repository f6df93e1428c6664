package tabular

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"palletdesk/internal"
)

// ImportHTML reads the first <table> of an HTML document into canonical
// line-items. Some warehouse systems hand over table exports as .html; the
// first row is treated as the header, the rest as data.
func ImportHTML(content []byte) ([]internal.LineItem, []internal.RowError, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: document has no table", ErrUnreadable)
	}

	matrix := [][]string{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := []string{}
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		if len(row) > 0 {
			matrix = append(matrix, row)
		}
	})
	if len(matrix) == 0 {
		return nil, nil, fmt.Errorf("%w: table has no rows", ErrUnreadable)
	}

	return RowsFromMatrix(matrix)
}
