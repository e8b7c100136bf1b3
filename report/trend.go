// Package report turns a built KPI report into its two output documents
// (management text, detail JSON) and the period-over-period trend pieces
// that accompany them.
package report

import (
	"fmt"
	"math"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

const (
	maxRecommendations = 3
	maxTests           = 5
)

// PctChange returns the percentage change from previous to current.
// A zero or absent previous value returns 0: "no signal", not "0% change";
// callers must not conflate the two.
func PctChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return math.Round((current-previous)/math.Abs(previous)*100*10) / 10
}

// Recommendations evaluates a fixed battery of threshold checks in priority
// order and returns at most 3 that fired.
func Recommendations(r models.Report) []string {
	recs := make([]string, 0, maxRecommendations)

	rate := r.Engagement.EngagementRate
	if rate < 1.0 {
		recs = append(recs, "Increase engagement: add calls to action and ask the audience questions")
	} else if rate > 5.0 {
		recs = append(recs, "High engagement — keep the current strategy and increase posting cadence")
	}

	if r.Engagement.ShareRate < 0.3 {
		recs = append(recs, "Increase sharing: create more shareable content — infographics, statistics, quotes")
	}

	if r.Editorial.BestPostingTimes.BestHour >= 0 {
		recs = append(recs, fmt.Sprintf("Publish at %02d:00 — the best hour for engagement", r.Editorial.BestPostingTimes.BestHour))
	}

	if r.Audience.NetGrowth < 0 {
		recs = append(recs, "Follower decline: review content quality and posting frequency")
	}

	if r.Trust.NegativeRate > 1.5 {
		recs = append(recs, "High negative feedback — tone down clickbait-style headlines")
	}

	if len(r.Editorial.Topics) <= 2 {
		recs = append(recs, "Diversify topics: add more variety — sports, culture, technology")
	}

	if r.Attention.CTR > 0 && r.Attention.CTR < 1.0 {
		recs = append(recs, "Improve CTR: stronger headlines and images — use emotional triggers")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// TestPlan proposes at most 5 experiments for the next period based on a
// fixed battery of checks.
func TestPlan(r models.Report, previous *models.Report) []string {
	tests := make([]string, 0, maxTests)

	videoCount := r.Distribution.ByContentType["video"].Count
	if videoCount < 3 {
		tests = append(tests, "Video test: publish 2-3 short videos or reels per week")
	}

	totalPosts := r.Distribution.TotalPosts
	if totalPosts < 20 {
		tests = append(tests, "Cadence test: increase post count by 30% next month")
	} else if totalPosts > 60 {
		tests = append(tests, "Quality over quantity: cut post count by 20% and invest in quality")
	}

	if len(r.Editorial.Topics) > 0 {
		tests = append(tests, fmt.Sprintf("Reinforce the top topic: publish more %q content", r.Editorial.Topics[0].Topic))
	}

	if r.Engagement.EngagementRate < 2.0 {
		tests = append(tests, "Engagement test: publish polls and Q&A posts")
	}

	if hour := r.Editorial.BestPostingTimes.BestHour; hour >= 0 {
		tests = append(tests, fmt.Sprintf("Timing test: compare %02d:00 vs %02d:00 post performance", hour, (hour+2)%24))
	}

	if len(tests) > maxTests {
		tests = tests[:maxTests]
	}
	return tests
}

// MoMComparison computes the period-over-period deltas. With no previous
// report it returns Available=false and no usable deltas.
func MoMComparison(r models.Report, previous *models.Report) models.MoMComparison {
	if previous == nil {
		return models.MoMComparison{Available: false}
	}

	return models.MoMComparison{
		Available:            true,
		ReachChange:          PctChange(float64(r.Distribution.TotalReach), float64(previous.Distribution.TotalReach)),
		EngagementRateChange: PctChange(r.Engagement.EngagementRate, previous.Engagement.EngagementRate),
		GrowthChange:         PctChange(float64(r.Audience.NetGrowth), float64(previous.Audience.NetGrowth)),
		PostsChange:          PctChange(float64(r.Distribution.TotalPosts), float64(previous.Distribution.TotalPosts)),
	}
}
