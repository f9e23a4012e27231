package query

import (
	"bytes"
	"encoding/csv"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"weaponwatch/alerting/internal/models"
	"weaponwatch/alerting/internal/testutils"
)

func ids(alerts []models.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	alerts := testutils.MixedAlerts()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"critical any status", Filter{Severity: "critical", Status: All}, []string{"alert-00", "alert-04", "alert-06", "alert-09"}},
		{"critical pending", Filter{Severity: "critical", Status: "pending"}, []string{"alert-00", "alert-06", "alert-09"}},
		{"acknowledged", Filter{Status: "acknowledged"}, []string{"alert-02", "alert-05", "alert-08"}},
		{"camera substring", Filter{Search: "parking"}, []string{"alert-01", "alert-05", "alert-09"}},
		{"weapon case insensitive", Filter{Search: "GUN", Severity: "warning"}, []string{"alert-01", "alert-03", "alert-07"}},
		{"location matches all", Filter{Search: "building a"}, ids(alerts)},
		{"no constraint", Filter{Severity: "ALL"}, ids(alerts)},
		{"nothing", Filter{Search: "rifle"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(slices.Values(alerts), tt.filter)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSortSeverityGroupsByRank(t *testing.T) {
	alerts := testutils.MixedAlerts()
	rng := rand.New(rand.NewPCG(7, 7))
	rng.Shuffle(len(alerts), func(i, j int) { alerts[i], alerts[j] = alerts[j], alerts[i] })

	Sort(alerts, SortSeverity)

	assert.Equal(t, []string{
		"alert-00", "alert-04", "alert-06", "alert-09",
		"alert-01", "alert-03", "alert-07", "alert-08",
		"alert-02", "alert-05",
	}, ids(alerts))
}

func TestSortTimestampAndConfidence(t *testing.T) {
	alerts := testutils.MixedAlerts()
	slices.Reverse(alerts)

	Sort(alerts, SortTimestamp)
	assert.Equal(t, ids(testutils.MixedAlerts()), ids(alerts))

	Sort(alerts, SortConfidence)
	assert.Equal(t, "alert-09", alerts[0].ID)
	assert.Equal(t, "alert-00", alerts[9].ID)
}

func TestSortIsStableOnTies(t *testing.T) {
	ts := testutils.BaseTime
	alerts := []models.Alert{
		testutils.CreateAlert("b", models.SeverityWarning, models.StatusPending, 0.7, ts),
		testutils.CreateAlert("a", models.SeverityWarning, models.StatusPending, 0.7, ts),
		testutils.CreateAlert("c", models.SeverityWarning, models.StatusPending, 0.7, ts.Add(time.Second)),
	}

	Sort(alerts, SortTimestamp)
	assert.Equal(t, []string{"c", "b", "a"}, ids(alerts))

	Sort(alerts, SortConfidence)
	assert.Equal(t, []string{"c", "b", "a"}, ids(alerts))
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortTimestamp, key)

	key, err = ParseSortKey("Severity")
	require.NoError(t, err)
	assert.Equal(t, SortSeverity, key)

	_, err = ParseSortKey("camera")
	assert.ErrorIs(t, err, ErrUnknownSortKey)
}

func TestAggregate(t *testing.T) {
	s := Aggregate(slices.Values(testutils.MixedAlerts()))

	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 4, s.CriticalCount)
	assert.Equal(t, 4, s.PendingCount)
	assert.Equal(t, 3, s.AcknowledgedCount)
	assert.InDelta(t, 0.78, s.AverageConfidence, 1e-9)

	resp := s.Response()
	require.NotNil(t, resp.AverageConfidence)
	assert.InDelta(t, 0.78, *resp.AverageConfidence, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(slices.Values([]models.Alert(nil)))

	assert.Zero(t, s.Total)
	assert.True(t, math.IsNaN(s.AverageConfidence))
	assert.Nil(t, s.Response().AverageConfidence)
}

func TestWriteCSV(t *testing.T) {
	alerts := Apply(slices.Values(testutils.MixedAlerts()), Filter{Severity: "critical"}, SortTimestamp)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, alerts))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Timestamp,Camera,Location,Weapon,Confidence,Severity,Status", lines[0])
	assert.Equal(t, "2024-05-01T12:00:00.000Z,Main Entrance,Building A - Ground Floor,knife,0.6,critical,pending", lines[1])
	for _, line := range lines {
		assert.Len(t, strings.Split(line, ","), 7, line)
	}
}

func TestWriteCSVQuotesDelimiters(t *testing.T) {
	a := testutils.CreateAlert("x", models.SeverityInfo, models.StatusSent, 0.5, testutils.BaseTime)
	a.Location = "Building B, Floor 2"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.Alert{a}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[1], 7)
	assert.Equal(t, "Building B, Floor 2", records[1][2])
}

func TestWriteXLSX(t *testing.T) {
	alerts := testutils.MixedAlerts()[:3]

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, alerts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ExportHeader, rows[0])
	assert.Equal(t, "Main Entrance", rows[1][1])
	assert.Equal(t, "warning", rows[2][5])
}

func TestFilenames(t *testing.T) {
	day := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "cid-alerts-2024-05-01.csv", CSVFilename(day))
	assert.Equal(t, "cid-alerts-2024-05-01.xlsx", XLSXFilename(day))
}
