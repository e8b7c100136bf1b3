package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

func TestPctChange(t *testing.T) {
	assert.Equal(t, 0.0, PctChange(100, 0)) // no baseline means no signal
	assert.Equal(t, 0.0, PctChange(0, 0))
	assert.Equal(t, 100.0, PctChange(200, 100))
	assert.Equal(t, -50.0, PctChange(100, 200))
	assert.Equal(t, 12.5, PctChange(90, 80))
	assert.Equal(t, 200.0, PctChange(10, -10)) // negative baseline uses its magnitude
}

func healthyReport() models.Report {
	return models.Report{
		Distribution: models.Distribution{
			TotalPosts: 30,
			TotalReach: 10000,
			ByContentType: map[string]models.TypeBreakdown{
				"video": {Count: 5, Reach: 4000},
				"photo": {Count: 25, Reach: 6000},
			},
		},
		Attention:  models.Attention{CTR: 2.5},
		Engagement: models.Engagement{EngagementRate: 3.0, ShareRate: 0.8},
		Audience:   models.Audience{NetGrowth: 50},
		Trust:      models.Trust{NegativeRate: 0.5},
		Editorial: models.Editorial{
			Topics: []models.TopicEntry{
				{Topic: "politics"}, {Topic: "sports"}, {Topic: "economy"},
			},
			BestPostingTimes: models.PostingTimes{BestHour: -1},
		},
	}
}

func TestRecommendationsHealthyReport(t *testing.T) {
	// nothing to fix: no checks fire
	assert.Empty(t, Recommendations(healthyReport()))
}

func TestRecommendationsCappedAndOrdered(t *testing.T) {
	r := models.Report{
		Engagement: models.Engagement{EngagementRate: 0.5, ShareRate: 0.1},
		Audience:   models.Audience{NetGrowth: -10},
		Trust:      models.Trust{NegativeRate: 3.0},
		Attention:  models.Attention{CTR: 0.5},
		Editorial: models.Editorial{
			BestPostingTimes: models.PostingTimes{BestHour: 19},
		},
	}

	recs := Recommendations(r)
	require.Len(t, recs, 3)
	assert.Contains(t, recs[0], "Increase engagement")
	assert.Contains(t, recs[1], "Increase sharing")
	assert.Contains(t, recs[2], "19:00")
}

func TestRecommendationsHighEngagement(t *testing.T) {
	r := healthyReport()
	r.Engagement.EngagementRate = 6.0

	recs := Recommendations(r)
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "High engagement")
}

func TestRecommendationsNoBestHour(t *testing.T) {
	r := healthyReport()
	r.Engagement.ShareRate = 0.1

	recs := Recommendations(r)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "Increase sharing")
}

func TestTestPlanCapped(t *testing.T) {
	r := models.Report{
		Distribution: models.Distribution{TotalPosts: 5},
		Engagement:   models.Engagement{EngagementRate: 1.0},
		Editorial: models.Editorial{
			Topics:           []models.TopicEntry{{Topic: "politics"}},
			BestPostingTimes: models.PostingTimes{BestHour: 23},
		},
	}

	tests := TestPlan(r, nil)
	require.Len(t, tests, 5)
	assert.Contains(t, tests[0], "Video test")
	assert.Contains(t, tests[1], "Cadence test")
	assert.Contains(t, tests[2], `"politics"`)
	assert.Contains(t, tests[3], "Engagement test")
	assert.Contains(t, tests[4], "23:00 vs 01:00") // hour wraps past midnight
}

func TestTestPlanQualityOverQuantity(t *testing.T) {
	r := healthyReport()
	r.Distribution.TotalPosts = 70

	tests := TestPlan(r, nil)
	found := false
	for _, tc := range tests {
		if tc == "Quality over quantity: cut post count by 20% and invest in quality" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMoMComparison(t *testing.T) {
	current := models.Report{
		Distribution: models.Distribution{TotalReach: 12000, TotalPosts: 30},
		Engagement:   models.Engagement{EngagementRate: 3.0},
		Audience:     models.Audience{NetGrowth: 60},
	}
	previous := models.Report{
		Distribution: models.Distribution{TotalReach: 10000, TotalPosts: 20},
		Engagement:   models.Engagement{EngagementRate: 2.0},
		Audience:     models.Audience{NetGrowth: 40},
	}

	mom := MoMComparison(current, &previous)
	assert.True(t, mom.Available)
	assert.Equal(t, 20.0, mom.ReachChange)
	assert.Equal(t, 50.0, mom.EngagementRateChange)
	assert.Equal(t, 50.0, mom.GrowthChange)
	assert.Equal(t, 50.0, mom.PostsChange)
}

func TestMoMComparisonNoPrevious(t *testing.T) {
	mom := MoMComparison(healthyReport(), nil)
	assert.False(t, mom.Available)
	assert.Equal(t, 0.0, mom.ReachChange)
}
