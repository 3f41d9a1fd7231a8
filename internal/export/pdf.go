package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/database"
)

// historyEntry covers service and accident records, only the fields the
// PDF prints.
type historyEntry struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Mileage     int    `json:"mileage,omitempty"`
	Description string `json:"description,omitempty"`
}

type ownershipEntry struct {
	Period   string `json:"period"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

// ReportPDF renders a report as a printable vehicle history document.
func ReportPDF(report *database.VehicleReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Vehicle History Report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("VIN: %s", report.VIN))
	pdf.Ln(10)

	writeSectionHeader(pdf, "Vehicle Information")
	writeField(pdf, "Year", strconv.Itoa(report.Year))
	writeField(pdf, "Make", report.Make)
	writeField(pdf, "Model", report.Model)
	writeField(pdf, "Trim", report.Trim)
	writeField(pdf, "Mileage", strconv.Itoa(report.Mileage))
	writeField(pdf, "Price", report.Price)
	writeField(pdf, "Color", report.Color)
	writeField(pdf, "Engine", report.EngineType)
	writeField(pdf, "Transmission", report.Transmission)
	pdf.Ln(4)

	writeSectionHeader(pdf, "History Summary")
	writeField(pdf, "Accidents", strconv.Itoa(report.AccidentCount))
	writeField(pdf, "Owners", strconv.Itoa(report.OwnerCount))
	writeField(pdf, "Service Records", strconv.Itoa(report.ServiceRecordCount))
	pdf.Ln(4)

	writeSectionHeader(pdf, "Accident History")
	var accidents []historyEntry
	if report.AccidentHistory != "" {
		if err := json.Unmarshal([]byte(report.AccidentHistory), &accidents); err != nil {
			logrus.Warnf("Failed to parse accident history for VIN %s: %v", report.VIN, err)
		}
	}
	if len(accidents) == 0 {
		writeLine(pdf, "No accidents reported")
	}
	for _, a := range accidents {
		line := fmt.Sprintf("%s: %s", a.Date, a.Type)
		if a.Description != "" {
			line += " - " + a.Description
		}
		writeLine(pdf, line)
	}
	pdf.Ln(4)

	writeSectionHeader(pdf, "Service History")
	var services []historyEntry
	if report.ServiceHistory != "" {
		if err := json.Unmarshal([]byte(report.ServiceHistory), &services); err != nil {
			logrus.Warnf("Failed to parse service history for VIN %s: %v", report.VIN, err)
		}
	}
	if len(services) == 0 {
		writeLine(pdf, "No service records")
	}
	for _, s := range services {
		writeLine(pdf, fmt.Sprintf("%s: %s (%d miles)", s.Date, s.Type, s.Mileage))
	}
	pdf.Ln(4)

	writeSectionHeader(pdf, "Ownership History")
	var owners []ownershipEntry
	if report.OwnershipHistory != "" {
		if err := json.Unmarshal([]byte(report.OwnershipHistory), &owners); err != nil {
			logrus.Warnf("Failed to parse ownership history for VIN %s: %v", report.VIN, err)
		}
	}
	if len(owners) == 0 {
		writeLine(pdf, "No ownership records")
	}
	for _, o := range owners {
		writeLine(pdf, fmt.Sprintf("%s: %s (%s)", o.Period, o.Type, o.Location))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func writeSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	pdf.Cell(50, 6, label)
	pdf.Cell(0, 6, value)
	pdf.Ln(6)
}

func writeLine(pdf *gofpdf.Fpdf, text string) {
	pdf.Cell(0, 6, text)
	pdf.Ln(6)
}
