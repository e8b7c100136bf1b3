package kpi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newscardbot/fb-kpi-tracker/classify"
	"github.com/newscardbot/fb-kpi-tracker/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	dir := t.TempDir()

	topicsPath := filepath.Join(dir, "topics.yaml")
	require.NoError(t, os.WriteFile(topicsPath, []byte(`
topics:
  - name: politics
    keywords: [parliament, election]
  - name: sports
    keywords: [football, match]
`), 0644))

	wordsPath := filepath.Join(dir, "words.yaml")
	require.NoError(t, os.WriteFile(wordsPath, []byte(`
positive: [good, great]
negative: [bad, awful]
`), 0644))

	log := testLogger()
	return NewBuilder(classify.LoadTopics(topicsPath, log), classify.LoadWords(wordsPath, log), log)
}

func sampleMetrics() models.PeriodMetrics {
	return models.PeriodMetrics{
		Since: "2026-02-02",
		Until: "2026-02-09",
		Reach: models.PageReach{Reach: 10000, Impressions: 25000, Frequency: 2.5},
		Fans:  models.FansData{TotalAdds: 50, TotalRemoves: 20, Net: 30},
		NegativeFeedback: models.NegativeFeedback{
			Total:  10,
			ByType: map[string]int{"hide_clicks": 10},
		},
		Posts: []models.FeedPost{
			{ID: "p1", Message: "parliament passed the bill", CreatedTime: "2026-02-02T09:00:00+0000", Type: "photo", Shares: 1},
			{ID: "p2", Message: "football match tonight", CreatedTime: "2026-02-03T18:00:00+0000", Type: "video", Shares: 0},
			{ID: "p3", Message: "", CreatedTime: "2026-02-04T12:00:00+0000", Type: "link", Shares: 7},
		},
	}
}

func sampleActivity() []models.ActivityEntry {
	return []models.ActivityEntry{
		{FacebookPostID: "p1", Source: "rss_bbc", Likes: 10, Comments: 5, Shares: 2, PostReach: 100, Clicks: 8,
			Reactions: models.Reactions{Love: 3}},
		{FacebookPostID: "p2", Source: "manual", Likes: 1, Comments: 0, Shares: 0, PostReach: 50, Clicks: 1},
		{FacebookPostID: "p3", Source: "manual", Title: "ledger title for p3", Likes: 40, Comments: 10, Shares: 0, PostReach: 900, Clicks: 30},
	}
}

func TestBuildFullReport(t *testing.T) {
	builder := testBuilder(t)

	report := builder.Build(sampleMetrics(), sampleActivity(), nil, "weekly")

	assert.Equal(t, "weekly", report.Period.Type)
	assert.Equal(t, "2026-02-02", report.Period.Since)
	assert.False(t, report.ComputedAt.IsZero())

	assert.Equal(t, 10000, report.Distribution.TotalReach)
	assert.Equal(t, 3, report.Distribution.TotalPosts)

	// p1: 10+5+2=17, p2: 1+0+0=1, p3: 40+10+7=57 (feed shares fill the gap)
	assert.Equal(t, 75, report.Engagement.TotalEngagement)
	assert.Equal(t, 51, report.Engagement.TotalLikes)

	assert.Equal(t, 39, report.Attention.TotalClicks)
	assert.Equal(t, 1, report.Attention.VideoPostsCount)

	assert.Equal(t, 30, report.Audience.NetGrowth)
	assert.Equal(t, 0.1, report.Trust.NegativeRate)

	// sorted by engagement: p3 (57), p1 (17), p2 (1)
	require.Len(t, report.TopPosts, 3)
	assert.Equal(t, "p3", report.TopPosts[0].ID)
	assert.Equal(t, "p1", report.TopPosts[1].ID)

	// bottom list goes lowest first
	require.Len(t, report.BottomPosts, 3)
	assert.Equal(t, "p2", report.BottomPosts[0].ID)
	assert.Equal(t, "p3", report.BottomPosts[2].ID)

	// video posts exist, reach is nonzero: no gap notices
	assert.Empty(t, report.UnavailableMetrics)
}

func TestBuildEnrichment(t *testing.T) {
	builder := testBuilder(t)

	report := builder.Build(sampleMetrics(), sampleActivity(), nil, "weekly")

	var p1, p3 models.Post
	for _, p := range report.TopPosts {
		switch p.ID {
		case "p1":
			p1 = p
		case "p3":
			p3 = p
		}
	}

	// ledger wins on engagement, feed wins on content
	assert.Equal(t, "parliament passed the bill", p1.Message)
	assert.Equal(t, 10, p1.Likes)
	assert.Equal(t, 2, p1.Shares) // ledger shares take precedence
	assert.Equal(t, "rss_bbc", p1.Source)
	assert.Equal(t, "politics", p1.Topic)
	assert.Equal(t, 17.0, p1.EngagementRate) // 17/100*100

	// feed message empty: ledger title fills in; feed shares used when ledger has none
	assert.Equal(t, "ledger title for p3", p3.Message)
	assert.Equal(t, 7, p3.Shares)
}

func TestBuildWithComments(t *testing.T) {
	builder := testBuilder(t)

	comments := map[string][]models.Comment{
		"p1": {{Message: "good work"}, {Message: "bad take"}},
		"p2": {{Message: "great great stuff"}},
	}

	report := builder.Build(sampleMetrics(), sampleActivity(), comments, "weekly")
	assert.True(t, report.Trust.Sentiment.Available)
	assert.Equal(t, 3, report.Trust.Sentiment.Total)
	assert.Equal(t, 2, report.Trust.Sentiment.Positive)
	assert.Equal(t, 1, report.Trust.Sentiment.Negative)
}

func TestBuildNoComments(t *testing.T) {
	builder := testBuilder(t)

	report := builder.Build(sampleMetrics(), sampleActivity(), nil, "weekly")
	assert.False(t, report.Trust.Sentiment.Available)
}

// a report must be producible from all-empty input
func TestBuildEmptyInput(t *testing.T) {
	builder := testBuilder(t)

	report := builder.Build(models.PeriodMetrics{Since: "2026-02-02", Until: "2026-02-09"}, nil, nil, "weekly")

	assert.Equal(t, 0, report.Distribution.TotalPosts)
	assert.Equal(t, 0.0, report.Engagement.EngagementRate)
	assert.Equal(t, 0, report.Audience.NetGrowth)
	assert.Empty(t, report.TopPosts)
	assert.Empty(t, report.BottomPosts)
	assert.Equal(t, -1, report.Editorial.BestPostingTimes.BestHour)

	// both gap notices fire: no video posts and zero page reach
	require.Len(t, report.UnavailableMetrics, 2)
	assert.Contains(t, report.UnavailableMetrics[0], "Video")
	assert.Contains(t, report.UnavailableMetrics[1], "read_insights")
}

func TestBuildBottomRequiresThreePosts(t *testing.T) {
	builder := testBuilder(t)

	metrics := sampleMetrics()
	metrics.Posts = metrics.Posts[:2]

	report := builder.Build(metrics, sampleActivity(), nil, "weekly")
	assert.Len(t, report.TopPosts, 2)
	assert.Empty(t, report.BottomPosts)
}

// identical inputs must yield identical pillar numbers
func TestBuildIdempotent(t *testing.T) {
	builder := testBuilder(t)

	first := builder.Build(sampleMetrics(), sampleActivity(), nil, "weekly")
	second := builder.Build(sampleMetrics(), sampleActivity(), nil, "weekly")

	first.ComputedAt = second.ComputedAt
	assert.Equal(t, first, second)
}
