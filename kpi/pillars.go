// Package kpi computes the six analytical pillars and assembles them into a
// full period report. All pillar functions are pure and total: empty input
// yields zero-valued summaries, never an error.
package kpi

import (
	"math"
	"sort"
	"time"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

// Trust pillar alert thresholds.
const (
	negativeRateAlertPct      = 2.0
	negativeSentimentAlertPct = 30.0
)

const topPostSnippetLen = 80

// weekday labels in profile order, Monday first
var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// safePct returns numerator/denominator as a percentage, or 0 when the
// denominator is 0. Every rate in the report goes through this guard.
func safePct(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return round1(numerator / denominator * 100)
}

// ComputeDistribution: pillar 1.
//
//	Frequency = Impressions / Reach (0 when reach is 0)
func ComputeDistribution(pageReach models.PageReach, posts []models.Post) models.Distribution {
	byType := make(map[string]models.TypeBreakdown)
	for _, p := range posts {
		ptype := p.Type
		if ptype == "" {
			ptype = "unknown"
		}
		entry := byType[ptype]
		entry.Count++
		entry.Reach += p.Reach
		byType[ptype] = entry
	}

	frequency := pageReach.Frequency
	if frequency == 0 && pageReach.Reach > 0 {
		frequency = round2(float64(pageReach.Impressions) / float64(pageReach.Reach))
	}

	return models.Distribution{
		TotalReach:       pageReach.Reach,
		TotalImpressions: pageReach.Impressions,
		Frequency:        frequency,
		TotalPosts:       len(posts),
		ByContentType:    byType,
	}
}

// ComputeAttention: pillar 2.
//
//	CTR = Total Clicks / Total Reach * 100 (0 when reach is 0)
//
// VideoViews stays 0 unless the caller has merged video metrics into the
// posts beforehand; the base computation does not fetch them.
func ComputeAttention(posts []models.Post) models.Attention {
	totalClicks := 0
	totalReach := 0
	videoCount := 0
	for _, p := range posts {
		totalClicks += p.Clicks
		totalReach += p.Reach
		if p.Type == "video" || p.Type == "reel" {
			videoCount++
		}
	}

	return models.Attention{
		TotalClicks:     totalClicks,
		CTR:             safePct(float64(totalClicks), float64(totalReach)),
		VideoPostsCount: videoCount,
		VideoViews:      0,
	}
}

// ComputeEngagement: pillar 3.
//
//	Engagement Rate = (Likes + Comments + Shares) / Reach * 100
//	Share Rate = Shares / Reach * 100
func ComputeEngagement(posts []models.Post) models.Engagement {
	var likes, comments, shares, reach int
	var reactions models.Reactions
	for _, p := range posts {
		likes += p.Likes
		comments += p.Comments
		shares += p.Shares
		reach += p.Reach
		reactions.Love += p.Reactions.Love
		reactions.Haha += p.Reactions.Haha
		reactions.Wow += p.Reactions.Wow
		reactions.Sad += p.Reactions.Sad
		reactions.Angry += p.Reactions.Angry
	}

	totalEngagement := likes + comments + shares
	avgEngagement := 0.0
	if len(posts) > 0 {
		avgEngagement = round1(float64(totalEngagement) / float64(len(posts)))
	}

	return models.Engagement{
		TotalLikes:           likes,
		TotalComments:        comments,
		TotalShares:          shares,
		TotalEngagement:      totalEngagement,
		EngagementRate:       safePct(float64(totalEngagement), float64(reach)),
		ShareRate:            safePct(float64(shares), float64(reach)),
		AvgEngagementPerPost: avgEngagement,
		Reactions:            reactions,
	}
}

// ComputeAudience: pillar 4.
//
//	Net Growth = Fan Adds - Fan Removes
//
// GrowthTrendPct is 0 with no previous snapshot: a deliberate "no signal"
// convention, not a measured zero.
func ComputeAudience(fans models.FansData, previous *models.FansData) models.Audience {
	net := fans.Net
	if net == 0 {
		net = fans.TotalAdds - fans.TotalRemoves
	}

	growthTrend := 0.0
	if previous != nil && previous.Net != 0 {
		growthTrend = round1(float64(net-previous.Net) / math.Abs(float64(previous.Net)) * 100)
	}

	return models.Audience{
		NewFollowers:   fans.TotalAdds,
		Unfollows:      fans.TotalRemoves,
		NetGrowth:      net,
		GrowthTrendPct: growthTrend,
		DailyTrend:     fans.Daily,
	}
}

// ComputeTrust: pillar 5.
//
//	Negative Rate = Negative Feedback / Page Reach * 100
//
// The sentiment summary is computed by the caller from already-fetched
// comments. Both alert conditions append independently.
func ComputeTrust(negative models.NegativeFeedback, sentiment models.SentimentSummary, pageReach int) models.Trust {
	negRate := safePct(float64(negative.Total), float64(pageReach))

	alert := ""
	if negRate > negativeRateAlertPct {
		alert = "High negative feedback level"
	}
	if sentiment.NegativePct > negativeSentimentAlertPct {
		if alert != "" {
			alert += " | Negative sentiment spike"
		} else {
			alert = "Negative sentiment spike"
		}
	}

	return models.Trust{
		NegativeFeedback: negative.Total,
		NegativeByType:   negative.ByType,
		NegativeRate:     negRate,
		Sentiment:        sentiment,
		Alert:            alert,
	}
}

// ComputeEditorial: pillar 6: topic performance table and posting-time
// profile. Posts are expected to carry an assigned topic already; an empty
// topic counts as "other".
func ComputeEditorial(posts []models.Post) models.Editorial {
	return models.Editorial{
		Topics:           topicPerformance(posts),
		BestPostingTimes: bestPostingTimes(posts),
	}
}

type topicAccumulator struct {
	count           int
	totalEngagement int
	totalReach      int
	totalShares     int
	topPost         string
	topEngagement   int
	hasTop          bool
}

func topicPerformance(posts []models.Post) []models.TopicEntry {
	byTopic := make(map[string]*topicAccumulator)
	for _, p := range posts {
		topic := p.Topic
		if topic == "" {
			topic = "other"
		}
		acc := byTopic[topic]
		if acc == nil {
			acc = &topicAccumulator{}
			byTopic[topic] = acc
		}
		acc.count++
		acc.totalEngagement += p.EngagementTotal
		acc.totalReach += p.Reach
		acc.totalShares += p.Shares
		if !acc.hasTop || p.EngagementTotal > acc.topEngagement {
			acc.hasTop = true
			acc.topEngagement = p.EngagementTotal
			acc.topPost = truncate(p.Message, topPostSnippetLen)
		}
	}

	entries := make([]models.TopicEntry, 0, len(byTopic))
	for topic, acc := range byTopic {
		avgReach := 0
		if acc.count > 0 {
			avgReach = int(math.Round(float64(acc.totalReach) / float64(acc.count)))
		}
		avgEngagement := 0.0
		if acc.count > 0 {
			avgEngagement = round1(float64(acc.totalEngagement) / float64(acc.count))
		}
		entries = append(entries, models.TopicEntry{
			Topic:           topic,
			Count:           acc.count,
			TotalEngagement: acc.totalEngagement,
			AvgEngagement:   avgEngagement,
			TotalReach:      acc.totalReach,
			AvgReach:        avgReach,
			ShareRate:       safePct(float64(acc.totalShares), float64(acc.totalReach)),
			TopPost:         acc.topPost,
		})
	}

	// rank by total engagement, ties alphabetically for a stable table
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalEngagement != entries[j].TotalEngagement {
			return entries[i].TotalEngagement > entries[j].TotalEngagement
		}
		return entries[i].Topic < entries[j].Topic
	})

	return entries
}

type slotAccumulator struct {
	totalEngagement int
	count           int
}

func (s slotAccumulator) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.totalEngagement) / float64(s.count)
}

func bestPostingTimes(posts []models.Post) models.PostingTimes {
	hourData := make(map[int]*slotAccumulator)
	dayData := make(map[int]*slotAccumulator)

	for _, p := range posts {
		if p.CreatedTime == "" {
			continue
		}
		dt, err := ParseTimestamp(p.CreatedTime)
		if err != nil {
			// unparseable timestamps drop out of the time profile only;
			// the post still counts in every other pillar
			continue
		}

		hour := dt.Hour()
		day := mondayIndex(dt.Weekday())

		if hourData[hour] == nil {
			hourData[hour] = &slotAccumulator{}
		}
		hourData[hour].totalEngagement += p.EngagementTotal
		hourData[hour].count++

		if dayData[day] == nil {
			dayData[day] = &slotAccumulator{}
		}
		dayData[day].totalEngagement += p.EngagementTotal
		dayData[day].count++
	}

	byHour := make(map[int]models.TimeSlotStats, len(hourData))
	for hour, acc := range hourData {
		byHour[hour] = models.TimeSlotStats{Count: acc.count, AvgEngagement: round1(acc.avg())}
	}

	byDay := make(map[string]models.TimeSlotStats, len(dayData))
	for day, acc := range dayData {
		byDay[dayNames[day]] = models.TimeSlotStats{Count: acc.count, AvgEngagement: round1(acc.avg())}
	}

	// highest average wins; ties go to the lowest hour / earliest weekday
	bestHour := -1
	bestHourAvg := 0.0
	for hour := 0; hour < 24; hour++ {
		acc, ok := hourData[hour]
		if !ok {
			continue
		}
		if bestHour == -1 || acc.avg() > bestHourAvg {
			bestHour = hour
			bestHourAvg = acc.avg()
		}
	}

	bestDay := ""
	bestDayAvg := 0.0
	for day := 0; day < 7; day++ {
		acc, ok := dayData[day]
		if !ok {
			continue
		}
		if bestDay == "" || acc.avg() > bestDayAvg {
			bestDay = dayNames[day]
			bestDayAvg = acc.avg()
		}
	}

	return models.PostingTimes{
		BestHour: bestHour,
		BestDay:  bestDay,
		ByHour:   byHour,
		ByDay:    byDay,
	}
}

// mondayIndex maps time.Weekday (Sunday=0) to a Monday-first index.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// timestamp shapes observed in the Graph API feed and the activity ledger
var timestampFormats = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the timestamp shapes the pipeline encounters:
// with or without an explicit UTC offset, with either the 'T' separator or
// a space.
func ParseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, format := range timestampFormats {
		dt, err := time.Parse(format, value)
		if err == nil {
			return dt, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}
