package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

// MaxMessageLen is the Telegram sendMessage payload ceiling.
const MaxMessageLen = 4000

const (
	titleSnippetLen = 50
	postSnippetLen  = 100
)

// fmtNum renders counts compactly: 2.5M, 12.3K, or space-grouped thousands
// below 1000-scale.
func fmtNum(n int) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return groupThousands(n)
}

func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		out = "-" + out
	}
	return out
}

// trendArrow renders a delta with an explicit sign: "+4.2%", "-1.0%", "0%".
func trendArrow(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	if pct < 0 {
		return fmt.Sprintf("%.1f%%", pct)
	}
	return "0%"
}

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}

// WeeklyManagementText renders the concise weekly one-pager: the core KPIs
// of every pillar, top and bottom posts, and up to 3 recommendations.
func WeeklyManagementText(r models.Report) string {
	dist := r.Distribution
	att := r.Attention
	eng := r.Engagement
	aud := r.Audience
	trust := r.Trust

	lines := []string{
		fmt.Sprintf("📊 Weekly summary — %s — %s", r.Period.Since, r.Period.Until),
		strings.Repeat("━", 36),
		"",
		"📡 Distribution:",
		fmt.Sprintf("   Reach: %s | Impressions: %s | Frequency: %.1f",
			fmtNum(dist.TotalReach), fmtNum(dist.TotalImpressions), dist.Frequency),
		fmt.Sprintf("   Posts: %d", dist.TotalPosts),
		"",
		"👁 Attention:",
		fmt.Sprintf("   Clicks: %s | CTR: %.1f%%", fmtNum(att.TotalClicks), att.CTR),
	}

	if att.VideoPostsCount > 0 {
		lines = append(lines, fmt.Sprintf("   Video views: %s", fmtNum(att.VideoViews)))
	}

	lines = append(lines,
		"",
		"💬 Engagement:",
		fmt.Sprintf("   👍 %s | 💬 %s | 🔄 %s",
			fmtNum(eng.TotalLikes), fmtNum(eng.TotalComments), fmtNum(eng.TotalShares)),
		fmt.Sprintf("   📈 Engagement Rate: %.1f%% | Share Rate: %.1f%%",
			eng.EngagementRate, eng.ShareRate),
		fmt.Sprintf("   Avg engagement/post: %.1f", eng.AvgEngagementPerPost),
	)

	if eng.Reactions.Any() {
		rx := eng.Reactions
		lines = append(lines, fmt.Sprintf("   ❤️ %d | 😂 %d | 😮 %d | 😢 %d | 😠 %d",
			rx.Love, rx.Haha, rx.Wow, rx.Sad, rx.Angry))
	}

	lines = append(lines,
		"",
		"📈 Audience:",
		fmt.Sprintf("   New: +%d | Lost: -%d | Net: %s",
			aud.NewFollowers, aud.Unfollows, signedInt(aud.NetGrowth)),
	)

	lines = append(lines,
		"",
		"🛡 Trust:",
		fmt.Sprintf("   Negative: %.1f%%", trust.NegativeRate),
	)
	if trust.Sentiment.Available {
		lines = append(lines, fmt.Sprintf("   Sentiment: ✅ %.0f%% | ⚠️ %.0f%% | ➖ %.0f%%",
			trust.Sentiment.PositivePct, trust.Sentiment.NegativePct, trust.Sentiment.NeutralPct))
	} else {
		lines = append(lines, "   Sentiment: unavailable (no comments found)")
	}
	if trust.Alert != "" {
		lines = append(lines, fmt.Sprintf("   ⚠️ Alert: %s", trust.Alert))
	}

	if len(r.Editorial.Topics) > 0 {
		lines = append(lines, "", "📰 Topics (by engagement):")
		for i, topic := range r.Editorial.Topics {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("   %d. %s — %d posts, avg eng.: %.1f",
				i+1, topic.Topic, topic.Count, topic.AvgEngagement))
		}
	}

	if times := r.Editorial.BestPostingTimes; times.BestHour >= 0 {
		line := fmt.Sprintf("🎯 Best time: %02d:00", times.BestHour)
		if times.BestDay != "" {
			line += " | " + times.BestDay
		}
		lines = append(lines, "", line)
	}

	if len(r.TopPosts) > 0 {
		lines = append(lines, "", strings.Repeat("━", 36), "🏆 Top 3 posts:")
		lines = append(lines, postLines(r.TopPosts)...)
	}

	if len(r.BottomPosts) > 0 {
		lines = append(lines, "", "📉 Weakest 3 posts:")
		lines = append(lines, postLines(r.BottomPosts)...)
	}

	if recs := Recommendations(r); len(recs) > 0 {
		lines = append(lines, "", strings.Repeat("━", 36), "📋 Recommendations:")
		for i, rec := range recs {
			lines = append(lines, fmt.Sprintf("   %d. %s", i+1, rec))
		}
	}

	if len(r.UnavailableMetrics) > 0 {
		lines = append(lines, "", "⚠️ Unavailable metrics:")
		for _, m := range r.UnavailableMetrics {
			lines = append(lines, "   · "+m)
		}
	}

	lines = append(lines, "", strings.Repeat("━", 36), "🤖 Weekly analytics — agent is live!")

	return strings.Join(lines, "\n")
}

// MonthlyStrategyText renders the strategic monthly summary: MoM trends,
// winner and loser topics, content-type performance, brand safety and the
// test plan for the next month.
func MonthlyStrategyText(r models.Report, previous *models.Report) string {
	dist := r.Distribution
	eng := r.Engagement
	aud := r.Audience
	trust := r.Trust

	lines := []string{
		fmt.Sprintf("📊 Monthly strategic summary — %s — %s", r.Period.Since, r.Period.Until),
		strings.Repeat("━", 40),
		"",
		"📈 MoM trends:",
	}

	if previous != nil {
		reachChange := trendArrow(PctChange(float64(dist.TotalReach), float64(previous.Distribution.TotalReach)))
		engChange := trendArrow(PctChange(eng.EngagementRate, previous.Engagement.EngagementRate))
		growthChange := trendArrow(PctChange(float64(aud.NetGrowth), float64(previous.Audience.NetGrowth)))
		lines = append(lines,
			fmt.Sprintf("   Reach: %s (%s)", fmtNum(dist.TotalReach), reachChange),
			fmt.Sprintf("   Engagement Rate: %.1f%% (%s)", eng.EngagementRate, engChange),
			fmt.Sprintf("   Net growth: %d (%s)", aud.NetGrowth, growthChange),
			fmt.Sprintf("   Posts: %d", dist.TotalPosts),
		)
	} else {
		lines = append(lines,
			"   No previous month data (first month)",
			fmt.Sprintf("   Reach: %s", fmtNum(dist.TotalReach)),
			fmt.Sprintf("   Engagement Rate: %.1f%%", eng.EngagementRate),
			fmt.Sprintf("   Net growth: %d", aud.NetGrowth),
			fmt.Sprintf("   Posts: %d", dist.TotalPosts),
		)
	}

	topics := r.Editorial.Topics
	if len(topics) > 0 {
		lines = append(lines, "", "🏆 Winning topics:")
		for i, topic := range topics {
			if i >= 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("   ✅ %s: %d posts, avg eng.: %.1f, share: %.1f%%",
				topic.Topic, topic.Count, topic.AvgEngagement, topic.ShareRate))
		}
		if len(topics) > 3 {
			lines = append(lines, "", "📉 Weak topics:")
			start := len(topics) - 2
			if start < 3 {
				start = 3
			}
			for _, topic := range topics[start:] {
				lines = append(lines, fmt.Sprintf("   ⚠️ %s: %d posts, avg eng.: %.1f",
					topic.Topic, topic.Count, topic.AvgEngagement))
			}
		}
	}

	if len(dist.ByContentType) > 0 {
		lines = append(lines, "", "📋 Format performance:")
		for _, ctype := range sortedTypeKeys(dist.ByContentType) {
			data := dist.ByContentType[ctype]
			lines = append(lines, fmt.Sprintf("   · %s: %d posts, reach: %s",
				ctype, data.Count, fmtNum(data.Reach)))
		}
	}

	lines = append(lines,
		"",
		"🛡 Brand safety:",
		fmt.Sprintf("   Negative: %.1f%%", trust.NegativeRate),
	)
	if trust.Sentiment.Available {
		lines = append(lines, fmt.Sprintf("   Sentiment: ✅%.0f%% ⚠️%.0f%% ➖%.0f%%",
			trust.Sentiment.PositivePct, trust.Sentiment.NegativePct, trust.Sentiment.NeutralPct))
	}
	if trust.Alert != "" {
		lines = append(lines, fmt.Sprintf("   🚨 %s", trust.Alert))
	}

	if tests := TestPlan(r, previous); len(tests) > 0 {
		lines = append(lines, "", "🧪 Test plan for next month:")
		for i, test := range tests {
			lines = append(lines, fmt.Sprintf("   %d. %s", i+1, test))
		}
	}

	lines = append(lines, "", strings.Repeat("━", 40), "🤖 Monthly strategic analytics — agent is live!")

	return strings.Join(lines, "\n")
}

// WeeklyDetail is the dashboard-facing weekly document.
type WeeklyDetail struct {
	ReportType         string              `json:"report_type"`
	Period             models.Period       `json:"period"`
	Distribution       models.Distribution `json:"distribution"`
	Attention          models.Attention    `json:"attention"`
	Engagement         models.Engagement   `json:"engagement"`
	Audience           models.Audience     `json:"audience"`
	Trust              models.Trust        `json:"trust"`
	Editorial          models.Editorial    `json:"editorial"`
	TopPosts           []SanitizedPost     `json:"top_posts"`
	BottomPosts        []SanitizedPost     `json:"bottom_posts"`
	Recommendations    []string            `json:"recommendations"`
	UnavailableMetrics []string            `json:"unavailable_metrics"`
	ComputedAt         string              `json:"computed_at"`
}

// MonthlyDetail is the dashboard-facing monthly document.
type MonthlyDetail struct {
	ReportType         string               `json:"report_type"`
	Period             models.Period        `json:"period"`
	Distribution       models.Distribution  `json:"distribution"`
	Attention          models.Attention     `json:"attention"`
	Engagement         models.Engagement    `json:"engagement"`
	Audience           models.Audience      `json:"audience"`
	Trust              models.Trust         `json:"trust"`
	Editorial          models.Editorial     `json:"editorial"`
	TopPosts           []SanitizedPost      `json:"top_posts"`
	BottomPosts        []SanitizedPost      `json:"bottom_posts"`
	MoM                models.MoMComparison `json:"mom_comparison"`
	Tests              []string             `json:"tests"`
	UnavailableMetrics []string             `json:"unavailable_metrics"`
	ComputedAt         string               `json:"computed_at"`
}

// SanitizedPost is a post with internal fields stripped and the message
// truncated for dashboard display.
type SanitizedPost struct {
	ID              string  `json:"id"`
	Message         string  `json:"message"`
	CreatedTime     string  `json:"created_time"`
	Type            string  `json:"type"`
	Source          string  `json:"source"`
	Likes           int     `json:"likes"`
	Comments        int     `json:"comments"`
	Shares          int     `json:"shares"`
	Reach           int     `json:"reach"`
	EngagementTotal int     `json:"engagement_total"`
	EngagementRate  float64 `json:"engagement_rate"`
	Topic           string  `json:"topic"`
}

// BuildWeeklyDetail assembles the weekly JSON document.
func BuildWeeklyDetail(r models.Report) WeeklyDetail {
	return WeeklyDetail{
		ReportType:         "weekly_detail",
		Period:             r.Period,
		Distribution:       r.Distribution,
		Attention:          r.Attention,
		Engagement:         r.Engagement,
		Audience:           r.Audience,
		Trust:              r.Trust,
		Editorial:          r.Editorial,
		TopPosts:           sanitizePosts(r.TopPosts),
		BottomPosts:        sanitizePosts(r.BottomPosts),
		Recommendations:    Recommendations(r),
		UnavailableMetrics: r.UnavailableMetrics,
		ComputedAt:         r.ComputedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// BuildMonthlyDetail assembles the monthly JSON document with the MoM block.
func BuildMonthlyDetail(r models.Report, previous *models.Report) MonthlyDetail {
	return MonthlyDetail{
		ReportType:         "monthly_detail",
		Period:             r.Period,
		Distribution:       r.Distribution,
		Attention:          r.Attention,
		Engagement:         r.Engagement,
		Audience:           r.Audience,
		Trust:              r.Trust,
		Editorial:          r.Editorial,
		TopPosts:           sanitizePosts(r.TopPosts),
		BottomPosts:        sanitizePosts(r.BottomPosts),
		MoM:                MoMComparison(r, previous),
		Tests:              TestPlan(r, previous),
		UnavailableMetrics: r.UnavailableMetrics,
		ComputedAt:         r.ComputedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func sanitizePosts(posts []models.Post) []SanitizedPost {
	clean := make([]SanitizedPost, 0, len(posts))
	for _, p := range posts {
		clean = append(clean, SanitizedPost{
			ID:              p.ID,
			Message:         truncate(p.Message, postSnippetLen),
			CreatedTime:     p.CreatedTime,
			Type:            p.Type,
			Source:          p.Source,
			Likes:           p.Likes,
			Comments:        p.Comments,
			Shares:          p.Shares,
			Reach:           p.Reach,
			EngagementTotal: p.EngagementTotal,
			EngagementRate:  p.EngagementRate,
			Topic:           p.Topic,
		})
	}
	return clean
}

func postLines(posts []models.Post) []string {
	lines := make([]string, 0, len(posts)*2)
	for i, p := range posts {
		title := truncate(p.Message, titleSnippetLen)
		lines = append(lines,
			fmt.Sprintf("   %d. %q", i+1, title),
			fmt.Sprintf("      👍%d 💬%d 🔄%d | reach: %s", p.Likes, p.Comments, p.Shares, fmtNum(p.Reach)),
		)
	}
	return lines
}

func signedInt(n int) string {
	if n >= 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func sortedTypeKeys(m map[string]models.TypeBreakdown) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SplitMessage chunks text into pieces of at most maxLen bytes, splitting
// only at newline boundaries. A single line longer than maxLen is emitted
// as its own oversized chunk rather than cut mid-line.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		candidate := len(line)
		if current.Len() > 0 {
			candidate += current.Len() + 1
		}
		if candidate > maxLen && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
