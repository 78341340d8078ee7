package tables

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"quizagent/internal/quiz"
	"quizagent/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported tabular format")

func cellText(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	return htmlutil.CleanText(htmlutil.GetText(sel.Nodes[0]))
}

// ReadHtml returns every `table` element in document order. A table with header
// cells and data rows becomes a table with columns, a table with only data rows
// becomes a headerless table, anything else is skipped. Rows without data cells
// are not counted.
func ReadHtml(doc *goquery.Document) []quiz.Table {
	var out []quiz.Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var columns []string
		table.Find("th").Each(func(_ int, th *goquery.Selection) {
			columns = append(columns, cellText(th))
		})

		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() == 0 {
				return
			}
			row := make([]string, 0, cells.Length())
			cells.Each(func(_ int, td *goquery.Selection) {
				row = append(row, cellText(td))
			})
			rows = append(rows, row)
		})

		if len(rows) == 0 {
			return
		}
		out = append(out, quiz.Table{
			Columns: columns,
			Rows:    rows,
		})
	})
	return out
}

// ReadDelimited reads a delimited text file whose first record is the header.
func ReadDelimited(r io.Reader, comma rune) (quiz.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return quiz.Table{}, err
	}
	return fromRecords(records), nil
}

// ReadXlsx reads the first sheet of a workbook whose first row is the header.
func ReadXlsx(r io.Reader) (quiz.Table, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return quiz.Table{}, err
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return quiz.Table{}, nil
	}
	records, err := file.GetRows(sheets[0])
	if err != nil {
		return quiz.Table{}, err
	}
	return fromRecords(records), nil
}

func fromRecords(records [][]string) quiz.Table {
	if len(records) == 0 {
		return quiz.Table{}
	}
	columns := make([]string, len(records[0]))
	for i, c := range records[0] {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}

	var rows [][]string
	for _, record := range records[1:] {
		empty := true
		for _, cell := range record {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		rows = append(rows, record)
	}
	return quiz.Table{Columns: columns, Rows: rows}
}

// ReadJson treats each element of a top level array as a row. Object elements
// contribute their keys as columns in order of first appearance, scalar elements
// make a headerless single column table. A top level object is a single row.
func ReadJson(data []byte) (quiz.Table, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		return quiz.Table{}, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return quiz.Table{}, fmt.Errorf("%w: json document is a scalar", ErrUnsupportedFormat)
	}

	var elements []json.RawMessage
	switch delim {
	case '[':
		for decoder.More() {
			var element json.RawMessage
			err = decoder.Decode(&element)
			if err != nil {
				return quiz.Table{}, err
			}
			elements = append(elements, element)
		}
		_, err = decoder.Token()
		if err != nil {
			return quiz.Table{}, err
		}
	case '{':
		elements = []json.RawMessage{data}
	}

	var columns []string
	columnIdx := map[string]int{}
	var objects []orderedObject
	var scalars [][]string

	for _, element := range elements {
		obj, isObject, err := decodeObject(element)
		if err != nil {
			return quiz.Table{}, err
		}
		if !isObject {
			scalars = append(scalars, []string{jsonCell(element)})
			continue
		}
		for _, key := range obj.keys {
			if _, seen := columnIdx[key]; seen {
				continue
			}
			columnIdx[key] = len(columns)
			columns = append(columns, key)
		}
		objects = append(objects, obj)
	}

	if len(objects) == 0 {
		return quiz.Table{Rows: scalars}, nil
	}

	rows := make([][]string, 0, len(objects))
	for _, obj := range objects {
		row := make([]string, len(columns))
		for i, key := range obj.keys {
			row[columnIdx[key]] = jsonCell(obj.values[i])
		}
		rows = append(rows, row)
	}
	return quiz.Table{Columns: columns, Rows: rows}, nil
}

type orderedObject struct {
	keys   []string
	values []json.RawMessage
}

func decodeObject(raw json.RawMessage) (orderedObject, bool, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		return orderedObject{}, false, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return orderedObject{}, false, nil
	}

	var obj orderedObject
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return orderedObject{}, false, err
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		err = decoder.Decode(&value)
		if err != nil {
			return orderedObject{}, false, err
		}

		// a repeated key keeps its first position and its last value
		replaced := false
		for i, k := range obj.keys {
			if k == key {
				obj.values[i] = value
				replaced = true
				break
			}
		}
		if !replaced {
			obj.keys = append(obj.keys, key)
			obj.values = append(obj.values, value)
		}
	}
	return obj, true, nil
}

func jsonCell(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		err := json.Unmarshal(trimmed, &s)
		if err == nil {
			return s
		}
	}
	return string(trimmed)
}
