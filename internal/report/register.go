package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/cargocheck/internal/model"
)

// RegisterSheet is the worksheet name of the inspection register.
const RegisterSheet = "Inspections"

var registerHeader = []any{
	"Invoice Number",
	"Material Type",
	"Quantity Received",
	"Receive Date",
	"Storage Location",
	"Quality Inspector",
	"Safety Inspector",
	"Logistics Inspector",
	"Status",
	"Non-Conformance Type",
	"Non-Conforming Quantity",
	"Photos",
	"Notes",
	"Inspection Date",
}

// WriteRegister writes a spreadsheet with one row per record to w.
func (r *Renderer) WriteRegister(w io.Writer, records []model.InspectionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RegisterSheet); err != nil {
		return fmt.Errorf("naming register sheet: %w", err)
	}
	if err := f.SetSheetRow(RegisterSheet, "A1", &registerHeader); err != nil {
		return fmt.Errorf("writing register header: %w", err)
	}

	for i := range records {
		rec := &records[i]
		status := "Compliant"
		ncType := ""
		if rec.NonConforming {
			status = "Non-conforming"
			if rec.NonConformanceType != "" {
				ncType = r.label(rec.NonConformanceType)
			}
		}
		receive := ""
		if rec.ReceiveDate != nil && !rec.ReceiveDate.IsZero() {
			receive = rec.ReceiveDate.Format(dateLayout)
		}
		row := []any{
			rec.InvoiceNumber,
			rec.MaterialType,
			rec.QuantityReceived,
			receive,
			rec.StorageLocation,
			rec.QualityInspector,
			rec.SafetyInspector,
			rec.LogisticsInspector,
			status,
			ncType,
			rec.NonConformingQuantity,
			len(rec.Photos),
			rec.Notes,
			rec.InspectionDate.Format(time.DateTime),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(RegisterSheet, cell, &row); err != nil {
			return fmt.Errorf("writing register row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(RegisterSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing register header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing register: %w", err)
	}
	return nil
}
