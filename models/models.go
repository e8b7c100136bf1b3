package models

import (
	"time"
)

// Reactions is the five-way reaction breakdown Facebook reports per post.
type Reactions struct {
	Love  int `json:"love"`
	Haha  int `json:"haha"`
	Wow   int `json:"wow"`
	Sad   int `json:"sad"`
	Angry int `json:"angry"`
}

// Any reports whether at least one reaction was recorded
func (r Reactions) Any() bool {
	return r.Love > 0 || r.Haha > 0 || r.Wow > 0 || r.Sad > 0 || r.Angry > 0
}

// Post is the normalized unit of analysis: feed data (message, type,
// timestamp) merged with the locally recorded engagement numbers.
type Post struct {
	ID              string    `json:"id"`
	Message         string    `json:"message"`
	CreatedTime     string    `json:"created_time"`
	Type            string    `json:"type"` // photo/video/link/status/reel/unknown
	Source          string    `json:"source"`
	Likes           int       `json:"likes"`
	Comments        int       `json:"comments"`
	Shares          int       `json:"shares"`
	Reactions       Reactions `json:"reactions"`
	Reach           int       `json:"reach"`
	Clicks          int       `json:"clicks"`
	EngagementTotal int       `json:"engagement_total"`
	EngagementRate  float64   `json:"engagement_rate"`
	ShareRate       float64   `json:"share_rate"`
	Topic           string    `json:"topic"`
}

// Period is a half-open date range [Since, Until) with a type tag.
type Period struct {
	Since string `json:"since"`
	Until string `json:"until"`
	Type  string `json:"type"` // "weekly" or "monthly"
}

// TypeBreakdown is a per-content-type slice of the Distribution pillar.
type TypeBreakdown struct {
	Count int `json:"count"`
	Reach int `json:"reach"`
}

// Distribution: pillar 1: reach, impressions, frequency, by content type.
type Distribution struct {
	TotalReach       int                      `json:"total_reach"`
	TotalImpressions int                      `json:"total_impressions"`
	Frequency        float64                  `json:"frequency"`
	TotalPosts       int                      `json:"total_posts"`
	ByContentType    map[string]TypeBreakdown `json:"by_content_type"`
}

// Attention: pillar 2: clicks, CTR, video counts.
type Attention struct {
	TotalClicks     int     `json:"total_clicks"`
	CTR             float64 `json:"ctr"`
	VideoPostsCount int     `json:"video_posts_count"`
	VideoViews      int     `json:"video_views"`
}

// Engagement: pillar 3: interaction sums and rates.
type Engagement struct {
	TotalLikes           int       `json:"total_likes"`
	TotalComments        int       `json:"total_comments"`
	TotalShares          int       `json:"total_shares"`
	TotalEngagement      int       `json:"total_engagement"`
	EngagementRate       float64   `json:"engagement_rate"`
	ShareRate            float64   `json:"share_rate"`
	AvgEngagementPerPost float64   `json:"avg_engagement_per_post"`
	Reactions            Reactions `json:"reactions"`
}

// DailyFans is one day of the audience trend series.
type DailyFans struct {
	Date    string `json:"date"`
	Adds    int    `json:"adds"`
	Removes int    `json:"removes"`
	Net     int    `json:"net"`
}

// Audience: pillar 4: follower growth over the period.
type Audience struct {
	NewFollowers   int         `json:"new_followers"`
	Unfollows      int         `json:"unfollows"`
	NetGrowth      int         `json:"net_growth"`
	GrowthTrendPct float64     `json:"growth_trend_pct"`
	DailyTrend     []DailyFans `json:"daily_trend"`
}

// SentimentSummary aggregates per-comment sentiment classification.
// Available is false only when there were no comments to classify,
// which is different from "all comments were neutral".
type SentimentSummary struct {
	Total       int     `json:"total"`
	Positive    int     `json:"positive"`
	Negative    int     `json:"negative"`
	Neutral     int     `json:"neutral"`
	PositivePct float64 `json:"positive_pct"`
	NegativePct float64 `json:"negative_pct"`
	NeutralPct  float64 `json:"neutral_pct"`
	Available   bool    `json:"available"`
}

// Trust: pillar 5: negative feedback and comment sentiment.
type Trust struct {
	NegativeFeedback int              `json:"negative_feedback"`
	NegativeByType   map[string]int   `json:"negative_by_type"`
	NegativeRate     float64          `json:"negative_rate"`
	Sentiment        SentimentSummary `json:"sentiment"`
	Alert            string           `json:"alert"`
}

// TopicEntry is one row of the ranked topic performance table.
type TopicEntry struct {
	Topic           string  `json:"topic"`
	Count           int     `json:"count"`
	TotalEngagement int     `json:"total_engagement"`
	AvgEngagement   float64 `json:"avg_engagement"`
	TotalReach      int     `json:"total_reach"`
	AvgReach        int     `json:"avg_reach"`
	ShareRate       float64 `json:"share_rate"`
	TopPost         string  `json:"top_post"`
}

// TimeSlotStats is the per-hour / per-day engagement profile entry.
type TimeSlotStats struct {
	Count         int     `json:"count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// PostingTimes is the time-of-day / day-of-week profile.
// BestHour is -1 when no post had a parseable timestamp.
type PostingTimes struct {
	BestHour int                      `json:"best_hour"`
	BestDay  string                   `json:"best_day"`
	ByHour   map[int]TimeSlotStats    `json:"by_hour"`
	ByDay    map[string]TimeSlotStats `json:"by_day"`
}

// Editorial: pillar 6: topic table (ranked by total engagement, descending)
// and best posting times.
type Editorial struct {
	Topics           []TopicEntry `json:"topics"`
	BestPostingTimes PostingTimes `json:"best_posting_times"`
}

// Report is the full KPI report for one period. Immutable once built.
type Report struct {
	Period             Period       `json:"period"`
	Distribution       Distribution `json:"distribution"`
	Attention          Attention    `json:"attention"`
	Engagement         Engagement   `json:"engagement"`
	Audience           Audience     `json:"audience"`
	Trust              Trust        `json:"trust"`
	Editorial          Editorial    `json:"editorial"`
	TopPosts           []Post       `json:"top_posts"`
	BottomPosts        []Post       `json:"bottom_posts"`
	UnavailableMetrics []string     `json:"unavailable_metrics"`
	ComputedAt         time.Time    `json:"computed_at"`
}

// MoMComparison carries period-over-period percentage deltas.
// When Available is false the delta fields are meaningless and must not be
// read; a zero delta with Available true is a real "no change" signal.
type MoMComparison struct {
	Available            bool    `json:"available"`
	ReachChange          float64 `json:"reach_change"`
	EngagementRateChange float64 `json:"engagement_rate_change"`
	GrowthChange         float64 `json:"growth_change"`
	PostsChange          float64 `json:"posts_change"`
}

// ---------------------------------------------------------------------------
// Raw collaborator feeds
// ---------------------------------------------------------------------------

// PageReach is the page-level reach/impressions snapshot.
type PageReach struct {
	Reach       int     `json:"reach"`
	Impressions int     `json:"impressions"`
	Frequency   float64 `json:"frequency"`
}

// PageEngagement is the page-level engagement snapshot.
type PageEngagement struct {
	EngagedUsers    int `json:"engaged_users"`
	PostEngagements int `json:"post_engagements"`
}

// NegativeFeedback is the page-level dissatisfaction snapshot.
type NegativeFeedback struct {
	Total  int            `json:"negative_feedback"`
	ByType map[string]int `json:"negative_by_type"`
}

// FansData is the follower adds/removes series for a period.
type FansData struct {
	Daily        []DailyFans `json:"daily"`
	TotalAdds    int         `json:"total_adds"`
	TotalRemoves int         `json:"total_removes"`
	Net          int         `json:"net"`
}

// FeedPost is a post as the page feed reports it (content only: the
// engagement numbers come from the activity ledger).
type FeedPost struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	Type        string `json:"type"`
	StatusType  string `json:"status_type"`
	Shares      int    `json:"shares"`
}

// PeriodMetrics bundles everything the fetcher collaborator supplies for a
// date range. Any of the sub-structs may be zero-valued when the upstream
// call failed or permissions are missing.
type PeriodMetrics struct {
	Since            string           `json:"since"`
	Until            string           `json:"until"`
	Reach            PageReach        `json:"reach"`
	Engagement       PageEngagement   `json:"engagement"`
	NegativeFeedback NegativeFeedback `json:"negative_feedback"`
	Fans             FansData         `json:"fans"`
	Posts            []FeedPost       `json:"posts"`
	FetchedAt        time.Time        `json:"fetched_at"`
}

// Comment is a fetched post comment, used for sentiment analysis.
type Comment struct {
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
}

// ActivityEntry is one publish event from the local activity ledger.
type ActivityEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	PublishedAt    string    `json:"published_at"`
	Source         string    `json:"source"`
	Title          string    `json:"title"`
	Caption        string    `json:"caption"`
	Status         string    `json:"status"`
	FacebookPostID string    `json:"facebook_post_id"`
	Likes          int       `json:"likes"`
	Comments       int       `json:"comments"`
	Shares         int       `json:"shares"`
	Reactions      Reactions `json:"reactions"`
	PostReach      int       `json:"post_reach"`
	Clicks         int       `json:"clicks"`
}
