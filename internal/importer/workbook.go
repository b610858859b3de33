package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// ImportWorkbook reads puzzles from the first sheet of an .xlsx workbook. Each
// row holds the fields of one line. A leading header row whose first cell is
// "title" is ignored.
func ImportWorkbook(r io.Reader, lang models.Language) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}

	var res Result
	now := time.Now().UTC()
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		if i == 0 && isHeader(row) {
			continue
		}
		res.add(i+1, row, lang, now)
	}
	return res, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isHeader(row []string) bool {
	switch strings.ToLower(strings.TrimSpace(row[0])) {
	case "title", "标题":
		return true
	}
	return false
}
