package interfaces

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"busway-cloud/internal/billing/application"
	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/observability/metrics"
)

// ExportsHandler serves ledger exports for a billing period. Admin scope.
type ExportsHandler struct {
	queries *application.DueQueryService
}

// NewExportsHandler constructs an ExportsHandler.
func NewExportsHandler(queries *application.DueQueryService) (*ExportsHandler, error) {
	if queries == nil {
		return nil, errors.New("exports handler: nil query service")
	}
	return &ExportsHandler{queries: queries}, nil
}

// ServeHTTP handles GET /api/v1/exports/dues.{csv,xlsx}.
func (h *ExportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var format string
	switch r.URL.Path {
	case "/api/v1/exports/dues.csv":
		format = "csv"
	case "/api/v1/exports/dues.xlsx":
		format = "xlsx"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	period, err := billing.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, "period must be YYYY-MM", http.StatusBadRequest)
		return
	}

	start := time.Now()
	views, err := h.queries.ListByPeriod(r.Context(), period)
	if err != nil {
		metrics.ObserveDueExport(format, metrics.ResultError, time.Since(start))
		respondDomainError(w, err)
		return
	}

	switch format {
	case "csv":
		err = writeDuesCSV(w, period, views)
	case "xlsx":
		err = writeDuesXLSX(w, period, views)
	}
	if err != nil {
		metrics.ObserveDueExport(format, metrics.ResultError, time.Since(start))
		return
	}
	metrics.ObserveDueExport(format, metrics.ResultSuccess, time.Since(start))
}

func writeDuesCSV(w http.ResponseWriter, period billing.Period, views []application.DueView) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=dues-%s.csv", period))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"due_id",
		"student_id",
		"student_name",
		"period",
		"base_fee",
		"discount",
		"penalty",
		"total_due",
		"due_date",
		"status",
		"payment_id",
		"payment_method",
		"paid_at",
	})
	for _, view := range views {
		paidAt := ""
		if view.PaidAt != nil {
			paidAt = view.PaidAt.Format(time.RFC3339)
		}
		_ = writer.Write([]string{
			view.ID,
			view.StudentID,
			view.StudentName,
			view.Period,
			strconv.FormatFloat(view.BaseFee, 'f', 2, 64),
			strconv.FormatFloat(view.Discount, 'f', 2, 64),
			strconv.FormatFloat(view.Penalty, 'f', 2, 64),
			strconv.FormatFloat(view.TotalDue, 'f', 2, 64),
			view.DueDate.Format("2006-01-02"),
			view.Status,
			view.PaymentID,
			view.Method,
			paidAt,
		})
	}
	writer.Flush()
	return writer.Error()
}

func writeDuesXLSX(w http.ResponseWriter, period billing.Period, views []application.DueView) error {
	f := excelize.NewFile()
	summarySheet := "summary"
	duesSheet := "dues"
	f.SetSheetName("Sheet1", summarySheet)
	_, err := f.NewSheet(duesSheet)
	if err != nil {
		return err
	}

	var pending, captured, waived int
	var owed, collected float64
	for _, view := range views {
		switch billing.Status(view.Status) {
		case billing.StatusPending:
			pending++
			owed += view.TotalDue
		case billing.StatusCaptured:
			captured++
			collected += view.TotalDue
		case billing.StatusWaived:
			waived++
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Transport Fee Ledger")
	_ = f.SetCellValue(summarySheet, "A3", "Period")
	_ = f.SetCellValue(summarySheet, "B3", period.String())
	_ = f.SetCellValue(summarySheet, "A4", "Dues")
	_ = f.SetCellValue(summarySheet, "B4", len(views))
	_ = f.SetCellValue(summarySheet, "A5", "Pending")
	_ = f.SetCellValue(summarySheet, "B5", pending)
	_ = f.SetCellValue(summarySheet, "A6", "Captured")
	_ = f.SetCellValue(summarySheet, "B6", captured)
	_ = f.SetCellValue(summarySheet, "A7", "Waived")
	_ = f.SetCellValue(summarySheet, "B7", waived)
	_ = f.SetCellValue(summarySheet, "A8", "Outstanding")
	_ = f.SetCellValue(summarySheet, "B8", owed)
	_ = f.SetCellValue(summarySheet, "A9", "Collected")
	_ = f.SetCellValue(summarySheet, "B9", collected)

	headers := []string{"Due ID", "Student", "Name", "Base Fee", "Discount", "Penalty", "Total", "Due Date", "Status", "Payment", "Method", "Paid At"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = f.SetCellValue(duesSheet, cell, header)
	}
	for i, view := range views {
		row := i + 2
		paidAt := ""
		if view.PaidAt != nil {
			paidAt = view.PaidAt.Format(time.RFC3339)
		}
		values := []any{
			view.ID, view.StudentID, view.StudentName,
			view.BaseFee, view.Discount, view.Penalty, view.TotalDue,
			view.DueDate.Format("2006-01-02"), view.Status,
			view.PaymentID, view.Method, paidAt,
		}
		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			_ = f.SetCellValue(duesSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=dues-%s.xlsx", period))
	_, err = w.Write(buf.Bytes())
	return err
}
