// Package instant serves canned vehicle reports for demo VINs without
// touching the scraping platform.
package instant

import (
	"time"

	"github.com/vindash/internal/database"
	"github.com/vindash/internal/utils"
)

// knownVehicles maps demo VINs to fixed report data. Lookups are
// deterministic, an unknown VIN is a miss rather than fabricated data.
var knownVehicles = map[string]database.VehicleReport{
	"SBM26ACA7MW815131": {
		VIN:                "SBM26ACA7MW815131",
		Year:               2022,
		Make:               "BMW",
		Model:              "3 Series",
		Trim:               "330i",
		Mileage:            28450,
		Price:              "35900",
		Color:              "Alpine White",
		EngineType:         "2.0L Turbocharged 4-Cylinder",
		Transmission:       "Automatic 8-Speed",
		AccidentCount:      0,
		OwnerCount:         1,
		ServiceRecordCount: 3,
		AccidentHistory:    `[]`,
		ServiceHistory:     `[{"date":"2024-01-15","type":"Oil Change","mileage":25000},{"date":"2023-08-20","type":"Tire Rotation","mileage":20000},{"date":"2023-03-10","type":"Air Filter Replacement","mileage":15000}]`,
		OwnershipHistory:   `[{"period":"2022-Present","type":"Personal","location":"California"}]`,
		TitleInfo:          `{"status":"Clean","type":"Sedan"}`,
		AdditionalData:     `{"fuelType":"Gasoline","driveType":"RWD","bodyType":"Sedan","doors":4,"mpg":"26 city / 35 highway"}`,
	},
	"3KPF24AD6KE105424": {
		VIN:                "3KPF24AD6KE105424",
		Year:               2014,
		Make:               "Hyundai",
		Model:              "Santa Fe",
		Trim:               "GLS",
		Mileage:            145230,
		Price:              "12995",
		Color:              "Silver",
		EngineType:         "2.0L 4-Cylinder",
		Transmission:       "Automatic",
		AccidentCount:      1,
		OwnerCount:         2,
		ServiceRecordCount: 8,
		AccidentHistory:    `[{"date":"2019-03-15","type":"Minor Accident","severity":"Minor","description":"Side impact, minor damage to door"}]`,
		ServiceHistory:     `[{"date":"2023-01-10","type":"Oil Change","mileage":140000},{"date":"2022-06-15","type":"Tire Rotation","mileage":135000},{"date":"2022-01-20","type":"Brake Service","mileage":130000}]`,
		OwnershipHistory:   `[{"period":"2014-2018","type":"Personal","location":"California"},{"period":"2018-Present","type":"Personal","location":"Texas"}]`,
		TitleInfo:          `{"status":"Clean","type":"SUV"}`,
		AdditionalData:     `{"fuelType":"Gasoline","driveType":"AWD","bodyType":"SUV","doors":4}`,
	},
	"2T1BURHE6KC161298": {
		VIN:                "2T1BURHE6KC161298",
		Year:               2019,
		Make:               "Toyota",
		Model:              "Corolla",
		Trim:               "LE",
		Mileage:            67890,
		Price:              "18500",
		Color:              "Black",
		EngineType:         "1.8L 4-Cylinder",
		Transmission:       "Automatic CVT",
		AccidentCount:      0,
		OwnerCount:         1,
		ServiceRecordCount: 5,
		AccidentHistory:    `[]`,
		ServiceHistory:     `[{"date":"2023-11-05","type":"Oil Change","mileage":65000},{"date":"2023-05-20","type":"Tire Rotation","mileage":60000}]`,
		OwnershipHistory:   `[{"period":"2019-Present","type":"Personal","location":"Florida"}]`,
		TitleInfo:          `{"status":"Clean","type":"Sedan"}`,
		AdditionalData:     `{"fuelType":"Gasoline","driveType":"FWD","bodyType":"Sedan","doors":4}`,
	},
}

// Generate returns the canned report for a demo VIN, or false when the
// VIN is not in the demo set.
func Generate(vin string) (*database.VehicleReport, bool) {
	report, ok := knownVehicles[utils.NormalizeVIN(vin)]
	if !ok {
		return nil, false
	}

	report.ScrapedAt = time.Now()
	return &report, true
}

// KnownVINs lists the demo VINs the generator can serve.
func KnownVINs() []string {
	vins := make([]string, 0, len(knownVehicles))
	for vin := range knownVehicles {
		vins = append(vins, vin)
	}
	return vins
}
