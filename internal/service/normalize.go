package service

import (
	"encoding/json"
	"time"

	"github.com/vindash/internal/apify"
	"github.com/vindash/internal/database"
	"github.com/vindash/internal/utils"
)

// reportFromItem maps a scraped dataset item onto a vehicle report row.
// Fields the actor did not return stay at their zero values, the report
// is stored regardless of how sparse the scrape was.
func reportFromItem(submission *database.Submission, item *apify.DatasetItem) *database.VehicleReport {
	vin := utils.NormalizeVIN(item.VIN)
	if vin == "" {
		vin = utils.NormalizeVIN(submission.VIN)
	}

	return &database.VehicleReport{
		SubmissionID:       submission.ID,
		VIN:                vin,
		Year:               item.Year,
		Make:               item.Make,
		Model:              item.Model,
		Trim:               item.Trim,
		Mileage:            item.Mileage,
		Price:              item.Price,
		Color:              item.Color,
		EngineType:         item.EngineType,
		Transmission:       item.Transmission,
		AccidentCount:      item.AccidentCount,
		OwnerCount:         item.OwnerCount,
		ServiceRecordCount: item.ServiceRecordCount,
		AccidentHistory:    rawString(item.AccidentHistory),
		ServiceHistory:     rawString(item.ServiceHistory),
		OwnershipHistory:   rawString(item.OwnershipHistory),
		TitleInfo:          rawString(item.TitleInfo),
		ScrapedAt:          time.Now(),
	}
}

// rawString keeps nested history documents as JSON text. Null and empty
// documents collapse to the empty string.
func rawString(raw json.RawMessage) string {
	s := string(raw)
	if s == "null" {
		return ""
	}
	return s
}
