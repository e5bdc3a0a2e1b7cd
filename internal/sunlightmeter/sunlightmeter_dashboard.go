package sunlightmeter

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/ztkent/lux-engine/internal/tools"
)

// Reference light levels drawn behind the lux series
var lightLevels = []struct {
	Lux   int
	Title string
	Color string
}{
	{500, "Shade", "DarkGrey"},
	{1000, "Partial Shade", "WhiteSmoke"},
	{10000, "Partial Sun", "SkyBlue"},
	{25000, "Full Sun", "Yellow"},
}

// Serve the sqlite db for download
func (m *SLMeter) ServeResultsDB() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbPath := m.DBPath
		if dbPath == "" {
			dbPath = DB_PATH
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", "sunlightmeter.db"))
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, dbPath)
	}
}

type graphPoint struct {
	Lux             float64
	ResolutionIndex int
	CreatedAt       time.Time
}

func (m *SLMeter) queryGraph(startDate, endDate string) ([]graphPoint, error) {
	rows, err := m.ResultsDB.Query(
		"SELECT lux, COALESCE(resolution_index, 0), created_at FROM sunlight WHERE created_at BETWEEN ? AND ? ORDER BY created_at",
		startDate, endDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []graphPoint
	for rows.Next() {
		var p graphPoint
		if err := rows.Scan(&p.Lux, &p.ResolutionIndex, &p.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Serve the results graph: lux over time, and the resolution the engine picked
func (m *SLMeter) ServeResultsGraph() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startDate, endDate := tools.ParseStartAndEndDate(r, m.Location, m.Clock.Now())
		points, err := m.queryGraph(startDate, endDate)
		if err != nil {
			log.Println(err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var luxValues, indexValues []opts.LineData
		var timeValues []string
		var maxLux int
		for _, p := range points {
			if p.Lux > float64(maxLux) {
				// Round up to the nearest 5000
				maxLux = int(math.Ceil(p.Lux/5000) * 5000)
			}
			luxValues = append(luxValues, opts.LineData{Value: p.Lux})
			indexValues = append(indexValues, opts.LineData{Value: p.ResolutionIndex})
			timeValues = append(timeValues, p.CreatedAt.Format(tools.LAYOUT_DB))
		}

		line := charts.NewLine()
		for _, level := range lightLevels {
			data := make([]opts.LineData, len(timeValues))
			for i := range data {
				data[i] = opts.LineData{Value: level.Lux}
			}
			line.AddSeries(level.Title, data, charts.WithLineChartOpts(opts.LineChart{
				Color: level.Color,
			}))
		}
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				PageTitle: "Sunlight Meter",
				Theme:     types.ThemeChalk,
			}),
			charts.WithXAxisOpts(opts.XAxis{
				Name: "Time",
			}),
			charts.WithYAxisOpts(opts.YAxis{
				Name: "Lux",
				Min:  "0",
				Max:  fmt.Sprintf("%d", maxLux),
			}),
			charts.WithTooltipOpts(opts.Tooltip{
				Show:      true,
				Trigger:   "axis",
				TriggerOn: "mousemove",
				Formatter: "{a4}: {c4}<br> Time: {b0}",
			}),
			charts.WithToolboxOpts(opts.Toolbox{
				Show: true,
				Feature: &opts.ToolBoxFeature{
					SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
						Show:  true,
						Title: "Save as Image",
						Name:  "sunlight-meter",
					},
				},
			}),
		)
		line.SetXAxis(timeValues).AddSeries("Lux", luxValues)

		modes := charts.NewLine()
		modes.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				Theme: types.ThemeChalk,
			}),
			charts.WithTitleOpts(opts.Title{
				Title: "Resolution index",
			}),
			charts.WithXAxisOpts(opts.XAxis{
				Name: "Time",
			}),
		)
		modes.SetXAxis(timeValues).AddSeries("Index", indexValues, charts.WithLineChartOpts(opts.LineChart{
			Step: true,
		}))

		page := components.NewPage()
		page.AddCharts(line, modes)

		w.Header().Set("Content-Type", "text/html")
		if err := page.Render(w); err != nil {
			log.Println(err)
		}
	}
}

// Serve the latest reading along with a summary of the date range
func (m *SLMeter) ServeResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditions, err := m.getCurrentConditions()
		if err != nil && err != sql.ErrNoRows {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		startDate, endDate := tools.ParseStartAndEndDate(r, m.Location, m.Clock.Now())
		conditions, err = m.getHistoricalConditions(conditions, startDate, endDate)
		if err != nil {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		serveJSON(w, conditions, http.StatusOK)
	}
}

// Summarize the recorded results in the date range
func (m *SLMeter) getHistoricalConditions(conditions Conditions, startDate string, endDate string) (Conditions, error) {
	if m.ResultsDB == nil {
		return conditions, nil
	}
	conditions.DateRange = fmt.Sprintf("%s - %s UTC", startDate, endDate)

	row := m.ResultsDB.QueryRow(`
    SELECT 
        COALESCE(AVG(lux), 0), 
        MIN(created_at), 
        MAX(created_at) 
    FROM sunlight 
    WHERE created_at BETWEEN ? AND ?`, startDate, endDate)
	var oldest, mostRecent sql.NullString
	err := row.Scan(&conditions.AverageLuxInRange, &oldest, &mostRecent)
	if err != nil {
		return conditions, err
	}
	if !oldest.Valid || !mostRecent.Valid {
		conditions.LightConditionInRange = "No Data in Range"
		return conditions, nil
	}

	// Minutes where the average lux was above 10k
	var fullSunMinutes int
	err = m.ResultsDB.QueryRow(`
    SELECT COUNT(*) 
    FROM (
        SELECT AVG(lux) as avg_lux 
        FROM sunlight 
        WHERE created_at BETWEEN ? AND ? 
        GROUP BY strftime('%Y-%m-%d %H:%M', created_at)
    ) 
    WHERE avg_lux > 10000`, startDate, endDate).Scan(&fullSunMinutes)
	if err != nil {
		return conditions, err
	}
	conditions.FullSunlightInRange = float64(fullSunMinutes) / 60

	first, last, err := tools.StartAndEndDateToTime(normalizeDBTime(oldest.String), normalizeDBTime(mostRecent.String))
	if err != nil {
		return conditions, err
	}
	conditions.RecordedHoursInRange = last.Sub(first).Hours()
	conditions.LightConditionInRange = LightCondition(conditions.FullSunlightInRange, conditions.RecordedHoursInRange)
	return conditions, nil
}

// LightCondition classifies a range by the share of hours in full sun
func LightCondition(fullSunHours, recordedHours float64) string {
	if recordedHours <= 0 {
		if fullSunHours > 0 {
			return "Full Sun"
		}
		return "Shade"
	}
	share := fullSunHours / recordedHours
	switch {
	case share > 0.5:
		return "Full Sun"
	case share > 0.25:
		return "Partial Sun"
	case share > 0.1:
		return "Partial Shade"
	default:
		return "Shade"
	}
}

// sqlite hands DATETIME aggregates back as text, sometimes in RFC3339
func normalizeDBTime(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(tools.LAYOUT_DB)
	}
	return s
}
