package query

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"weaponwatch/alerting/internal/models"
)

// TimestampLayout is the absolute timestamp format used in exports.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var ExportHeader = []string{"Timestamp", "Camera", "Location", "Weapon", "Confidence", "Severity", "Status"}

// Row returns the export fields of a, in ExportHeader order.
func Row(a models.Alert) []string {
	return []string{
		a.Timestamp.UTC().Format(TimestampLayout),
		a.Camera,
		a.Location,
		a.Weapon,
		strconv.FormatFloat(a.Confidence, 'f', -1, 64),
		string(a.Severity),
		string(a.Status),
	}
}

// CSVFilename names an export taken on the given day.
func CSVFilename(day time.Time) string {
	return fmt.Sprintf("cid-alerts-%s.csv", day.Format("2006-01-02"))
}

func XLSXFilename(day time.Time) string {
	return fmt.Sprintf("cid-alerts-%s.xlsx", day.Format("2006-01-02"))
}

// WriteCSV writes the header and one row per alert. Fields holding commas
// or quotes are quoted.
func WriteCSV(w io.Writer, alerts []models.Alert) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, a := range alerts {
		if err := cw.Write(Row(a)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Alerts"

var columnWidths = []float64{26, 22, 28, 12, 12, 12, 14}

// WriteXLSX renders alerts as a single-sheet workbook.
func WriteXLSX(w io.Writer, alerts []models.Alert) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, a := range alerts {
		row := Row(a)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		// numeric confidence so spreadsheets can sort it
		values[4] = a.Confidence

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
