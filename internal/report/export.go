package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/lombard/internal/model"
)

// SheetName is the worksheet holding exported rows.
const SheetName = "Pawn Report"

// ContentType is the MIME type of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []any{
	"No", "Customer Name", "Customer NRC", "Item Type", "Amount",
	"Pawn Date", "Due Date", "Checked Out Date", "Checked Out By", "Status",
}

// Export writes rows as an XLSX workbook with a header row and a status
// column computed against today.
func Export(w io.Writer, rows []model.ReportItem, today model.Date) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0E7EF"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("creating amount style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "J1", header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, it := range rows {
		checkedOut := ""
		if it.CheckedOutDate != nil {
			checkedOut = it.CheckedOutDate.String()
		}
		row := []any{
			it.No, it.CustomerName, it.CustomerNRC, string(it.ItemType), it.Amount,
			it.PawnDate.String(), it.DueDate.String(), checkedOut, it.CheckedOutBy,
			it.StatusText(today),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if len(rows) > 0 {
		last := fmt.Sprintf("E%d", len(rows)+1)
		if err := f.SetCellStyle(SheetName, "E2", last, amount); err != nil {
			return fmt.Errorf("styling amounts: %w", err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "A", 6); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "J", 18); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
