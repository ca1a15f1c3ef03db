package reporting

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

const (
	usageSheet   = "Uso de agua"
	summarySheet = "Resumen"
)

var (
	usageHeader   = []string{"ID", "Fecha", "Parcela ID", "Parcela", "Litros"}
	summaryHeader = []string{"Parcela", "Total (L)", "Promedio (L)", "Pico (L)", "Registros"}
)

// ExportXLSX writes the filtered usage log and a per-parcel summary as an xlsx workbook.
func (s *Service) ExportXLSX(ctx context.Context, filter models.UsageFilter, w io.Writer) error {
	records, err := s.Records(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(usageSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9EAD3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{
			r.ID,
			r.Timestamp.In(s.loc).Format("2006-01-02 15:04:05"),
			r.ParcelID,
			r.ParcelName,
			r.Liters,
		})
	}
	if err := writeTable(f, usageSheet, usageHeader, rows, headerStyle); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	summaries := Summarize(records, GroupByParcel, s.loc)
	rows = rows[:0]
	for _, sm := range summaries {
		rows = append(rows, []interface{}{sm.Key, sm.TotalLiters, sm.AverageLiters, sm.PeakLiters, sm.Count})
	}
	if err := writeTable(f, summarySheet, summaryHeader, rows, headerStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []string, rows [][]interface{}, headerStyle int) error {
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", cell, err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}
