package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindash/internal/database"
	"github.com/vindash/internal/instant"
)

func sampleReport(t *testing.T) *database.VehicleReport {
	t.Helper()

	report, ok := instant.Generate("3KPF24AD6KE105424")
	require.True(t, ok)
	return report
}

func TestReportCSV(t *testing.T) {
	data, err := ReportCSV(sampleReport(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 14)
	assert.Equal(t, "Field,Value", lines[0])
	assert.Equal(t, "VIN,3KPF24AD6KE105424", lines[1])
	assert.Contains(t, lines, "Make,Hyundai")
	assert.Contains(t, lines, "Model,Santa Fe")
	assert.Contains(t, lines, "Accident Count,1")
}

func TestReportCSV_QuotesCommas(t *testing.T) {
	report := sampleReport(t)
	report.Trim = "GLS, Premium"

	data, err := ReportCSV(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"GLS, Premium"`)
}

func TestReportPDF(t *testing.T) {
	data, err := ReportPDF(sampleReport(t))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Greater(t, len(data), 1000)
}

func TestReportPDF_EmptyHistories(t *testing.T) {
	report := &database.VehicleReport{VIN: "2T1BURHE6KC161298", Year: 2019, Make: "Toyota", Model: "Corolla"}

	data, err := ReportPDF(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestReportPDF_CorruptHistoryRendersAndWarns(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	report := sampleReport(t)
	report.AccidentHistory = `{"not": "an array"`

	data, err := ReportPDF(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	require.NotEmpty(t, hook.Entries)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "accident history")
	assert.Contains(t, entry.Message, report.VIN)
}

func TestFilenames(t *testing.T) {
	report := sampleReport(t)

	assert.True(t, strings.HasPrefix(CSVFilename(report), "carfax_3KPF24AD6KE105424_"))
	assert.True(t, strings.HasSuffix(CSVFilename(report), ".csv"))
	assert.True(t, strings.HasSuffix(PDFFilename(report), ".pdf"))
}
