// Package export renders stored vehicle reports into downloadable
// formats.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/vindash/internal/database"
)

// ReportCSV renders a report as Field,Value rows.
func ReportCSV(report *database.VehicleReport) ([]byte, error) {
	rows := [][]string{
		{"Field", "Value"},
		{"VIN", report.VIN},
		{"Year", strconv.Itoa(report.Year)},
		{"Make", report.Make},
		{"Model", report.Model},
		{"Trim", report.Trim},
		{"Mileage", strconv.Itoa(report.Mileage)},
		{"Price", report.Price},
		{"Color", report.Color},
		{"Engine Type", report.EngineType},
		{"Transmission", report.Transmission},
		{"Accident Count", strconv.Itoa(report.AccidentCount)},
		{"Owner Count", strconv.Itoa(report.OwnerCount)},
		{"Service Record Count", strconv.Itoa(report.ServiceRecordCount)},
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}

	return buf.Bytes(), nil
}

// CSVFilename builds the download filename for a report export.
func CSVFilename(report *database.VehicleReport) string {
	return fmt.Sprintf("carfax_%s_%d.csv", report.VIN, time.Now().UnixMilli())
}

// PDFFilename builds the download filename for a PDF export.
func PDFFilename(report *database.VehicleReport) string {
	return fmt.Sprintf("carfax_%s_%d.pdf", report.VIN, time.Now().UnixMilli())
}
