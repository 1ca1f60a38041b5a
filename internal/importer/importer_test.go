package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-dashboard/internal/models"
	"growth-dashboard/internal/store"
)

const (
	keywordsFixture = `keyword,category,traffic_2024,traffic_2025,traffic_change_pct,position_2024,position_2025,position_change,signups_2024,signups_2025,conversion_rate_2024,conversion_rate_2025,ai_overview_triggered,difficulty_score,cpc_usd
crm software,Product,10000,12000,20,3,2,1,150,100,1.5,0.8,No,70,12.5
what is crm,Informational,8000,5000,-37.5,1,1,0,40,20,0.5,0.4,Yes,40,3.1
"sales pipeline, template",Template,"2,000","2,500",25,5,4,1,30,25,1.5,1.0,true,35,2
`
	regionalFixture = `region,country,city,month,organic_traffic,paid_traffic,total_traffic,trials_started,paid_conversions,trial_to_paid_rate,mrr_usd,cac_usd,ltv_usd
EMEA,Germany,Berlin,2025-01,1000,500,1500,100,20,20,4000,200,2400
APAC,Japan,Tokyo,2025-01,800,200,1000,90,10,11,2000,100,1800
`
	monthlyFixture = `month,website_traffic,unique_signups,trials_started,paid_conversions,mrr_usd,churn_rate,signup_to_trial_rate,trial_to_paid_rate,net_new_mrr,expansion_mrr,churned_mrr
2025-01,100000,3000,900,120,50000,0.03,30,13.3,4000,1000,1500
2025-02,98000,2900,870,118,52000,0.04,30,13.6,3500,900,2000
2025-03,97000,2800,850,110,53000,0.09,30.4,12.9,3000,800,4700
`
	channelsFixture = `month,channel,sessions,signups,conversion_rate,avg_session_duration_sec,bounce_rate,pages_per_session
2025-01,Social (Organic),1000,18,1.8,45,70,1.8
2025-01,Social (Paid),800,16,2.0,50,65,2.1
2025-01,Organic Search,9000,270,3.0,120,40,3.5
2025-02,Social (Organic),1500,30,2.0,47,68,1.9
`
)

func writeFixtures(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func fullFixtures() map[string]string {
	return map[string]string{
		"keywords.csv": keywordsFixture,
		"regional.csv": regionalFixture,
		"monthly.csv":  monthlyFixture,
		"channels.csv": channelsFixture,
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "import.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImportDir(t *testing.T) {
	s := openTestStore(t)
	dir := writeFixtures(t, fullFixtures())
	ctx := context.Background()

	result, err := New(s, nil).ImportDir(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, Breakdown{Keywords: 3, Regional: 2, Monthly: 3, Channels: 4}, result.Breakdown)
	assert.Equal(t, 12, result.RecordCount)

	keywords, err := s.FindKeywords(ctx, store.KeywordQuery{OrderBy: store.OrderByTraffic, Descending: true})
	require.NoError(t, err)
	require.Len(t, keywords, 3)
	assert.Equal(t, "crm software", keywords[0].Keyword)
	assert.False(t, keywords[0].AIOverviewTriggered)
	assert.Equal(t, "what is crm", keywords[1].Keyword)
	assert.True(t, keywords[1].AIOverviewTriggered, `"Yes" maps to true`)
	assert.Equal(t, "sales pipeline, template", keywords[2].Keyword)
	assert.True(t, keywords[2].AIOverviewTriggered, `"true" maps to true`)
	assert.Equal(t, 2500.0, keywords[2].Traffic2025)

	latest, err := s.LatestMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", latest)

	history, err := s.ImportHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ImportSuccess, history[0].Status)
	assert.Equal(t, 12, history[0].RecordCount)
	assert.Equal(t, dir, history[0].Filename)
}

func TestImportDir_MissingFileKeepsPreviousData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	im := New(s, nil)

	_, err := im.ImportDir(ctx, writeFixtures(t, fullFixtures()))
	require.NoError(t, err)

	partial := fullFixtures()
	delete(partial, "channels.csv")
	partial["keywords.csv"] = "keyword,traffic_2025,traffic_change_pct,conversion_rate_2025,ai_overview_triggered\nonly one,1,0,0,No\n"

	_, err = im.ImportDir(ctx, writeFixtures(t, partial))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channels.csv")

	count, err := s.CountKeywords(ctx, store.KeywordQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, count, "nothing is written when a file fails to parse")

	history, err := s.ImportHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ImportFailed, history[0].Status)
	assert.Contains(t, history[0].ErrorMsg, "channels.csv")
}

func TestImportDir_RejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "negative traffic",
			file:    "keywords.csv",
			content: "keyword,traffic_2025,traffic_change_pct,conversion_rate_2025,ai_overview_triggered\nok,10,0,1,No\nbad,-5,0,1,No\n",
			wantErr: "keywords.csv: line 3, column traffic_2025",
		},
		{
			name:    "negative conversion",
			file:    "channels.csv",
			content: "month,channel,sessions,conversion_rate\n2025-01,Email,10,-1\n",
			wantErr: "column conversion_rate",
		},
		{
			name:    "churn above one",
			file:    "monthly.csv",
			content: "month,website_traffic,churn_rate\n2025-01,100,5\n",
			wantErr: "column churn_rate",
		},
		{
			name:    "bad month",
			file:    "monthly.csv",
			content: "month,website_traffic,churn_rate\nJanuary,100,0.05\n",
			wantErr: "not a YYYY-MM month",
		},
		{
			name:    "not a number",
			file:    "regional.csv",
			content: "region,month,trial_to_paid_rate,cac_usd\nEMEA,2025-01,abc,10\n",
			wantErr: "not a number",
		},
		{
			name:    "infinite traffic",
			file:    "keywords.csv",
			content: "keyword,traffic_2025,traffic_change_pct,conversion_rate_2025,ai_overview_triggered\nok,Inf,0,1,No\n",
			wantErr: `column traffic_2025: "Inf" is not a finite number`,
		},
		{
			name:    "nan change",
			file:    "keywords.csv",
			content: "keyword,traffic_2025,traffic_change_pct,conversion_rate_2025,ai_overview_triggered\nok,10,NaN,1,No\n",
			wantErr: `"NaN" is not a finite number`,
		},
		{
			name:    "duplicate channel month",
			file:    "channels.csv",
			content: "month,channel,sessions,conversion_rate\n2025-01,Email,10,1\n2025-02,Email,10,1\n2025-01,Email,12,1\n",
			wantErr: `channels.csv: line 4: duplicate "2025-01 / Email" (first seen on line 2)`,
		},
		{
			name:    "missing column",
			file:    "regional.csv",
			content: "region,month,trial_to_paid_rate\nEMEA,2025-01,12\n",
			wantErr: `missing column "cac_usd"`,
		},
		{
			name:    "empty file",
			file:    "monthly.csv",
			content: "",
			wantErr: "empty file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := fullFixtures()
			files[tt.file] = tt.content

			_, err := New(openTestStore(t), nil).ImportDir(context.Background(), writeFixtures(t, files))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImportDir_DuplicateMonthKeepsPreviousData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	im := New(s, nil)

	_, err := im.ImportDir(ctx, writeFixtures(t, fullFixtures()))
	require.NoError(t, err)

	files := fullFixtures()
	files["keywords.csv"] = "keyword,traffic_2025,traffic_change_pct,conversion_rate_2025,ai_overview_triggered\nonly one,1,0,0,No\n"
	files["monthly.csv"] = "month,website_traffic,churn_rate\n2025-04,100,0.01\n2025-04,90,0.02\n"

	_, err = im.ImportDir(ctx, writeFixtures(t, files))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `monthly.csv: line 3: duplicate "2025-04"`)

	keywords, err := s.FindKeywords(ctx, store.KeywordQuery{})
	require.NoError(t, err)
	require.Len(t, keywords, 3, "keywords are untouched when another collection is rejected")
	assert.NotContains(t, []string{keywords[0].Keyword, keywords[1].Keyword, keywords[2].Keyword}, "only one")

	months, err := s.AvailableMonths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03", "2025-02", "2025-01"}, months)
}

func TestImportDir_AlreadyRunning(t *testing.T) {
	im := New(openTestStore(t), nil)
	im.mu.Lock()
	defer im.mu.Unlock()

	_, err := im.ImportDir(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrImportRunning)
}

func TestParseCSV_BatchesKeepOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("month,website_traffic,churn_rate\n")
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "2025-%02d,%d,0.01\n", i, i*1000)
	}

	rows, err := parseCSV(context.Background(), strings.NewReader(b.String()), monthlyCSV, 5, 2)
	require.NoError(t, err)
	require.Len(t, rows, 12)
	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("2025-%02d", i+1), r.Month)
		assert.Equal(t, float64((i+1)*1000), r.WebsiteTraffic)
	}
}

func TestParseCSV_HeaderNormalisation(t *testing.T) {
	input := "\ufeffMonth , Website_Traffic,CHURN_RATE\n2025-01,\"1,200\",4%\n"

	rows, err := parseCSV(context.Background(), strings.NewReader(input), monthlyCSV, 10, 1)
	require.Error(t, err, "a percent sign does not turn 4 into a fraction")
	assert.Nil(t, rows)

	input = "\ufeffMonth , Website_Traffic,CHURN_RATE\n2025-01,\"1,200\",0.04\n"
	rows, err = parseCSV(context.Background(), strings.NewReader(input), monthlyCSV, 10, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1200.0, rows[0].WebsiteTraffic)
	assert.Equal(t, 0.04, rows[0].ChurnRate)
}
