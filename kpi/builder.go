package kpi

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newscardbot/fb-kpi-tracker/classify"
	"github.com/newscardbot/fb-kpi-tracker/models"
)

const topBottomCount = 3

// Builder assembles full KPI reports from the raw collaborator feeds.
type Builder struct {
	topics *classify.Topics
	words  *classify.Words
	log    *logrus.Logger
}

// NewBuilder creates a report builder using the given classifiers
func NewBuilder(topics *classify.Topics, words *classify.Words, log *logrus.Logger) *Builder {
	return &Builder{
		topics: topics,
		words:  words,
		log:    log,
	}
}

// Build produces the report for one period. It never fails: missing metrics,
// an empty feed or an empty ledger all yield a report with zero-valued
// pillars and advisory notices instead of errors.
//
// comments holds already-fetched comments per post id; the builder performs
// no fetching of its own.
func (b *Builder) Build(metrics models.PeriodMetrics, activityEntries []models.ActivityEntry,
	comments map[string][]models.Comment, periodType string) models.Report {

	b.log.WithFields(logrus.Fields{
		"period_type": periodType,
		"since":       metrics.Since,
		"until":       metrics.Until,
		"feed_posts":  len(metrics.Posts),
		"ledger":      len(activityEntries),
	}).Info("Building KPI report")

	posts := b.enrichPosts(metrics.Posts, activityEntries)

	// comment sentiment across all posts in the period
	var texts []string
	for _, p := range posts {
		for _, c := range comments[p.ID] {
			if c.Message != "" {
				texts = append(texts, c.Message)
			}
		}
	}
	sentiment := b.words.AnalyzeBatch(texts)

	report := models.Report{
		Period: models.Period{
			Since: metrics.Since,
			Until: metrics.Until,
			Type:  periodType,
		},
		Distribution: ComputeDistribution(metrics.Reach, posts),
		Attention:    ComputeAttention(posts),
		Engagement:   ComputeEngagement(posts),
		Audience:     ComputeAudience(metrics.Fans, nil),
		Trust:        ComputeTrust(metrics.NegativeFeedback, sentiment, metrics.Reach.Reach),
		Editorial:    ComputeEditorial(posts),
		ComputedAt:   time.Now(),
	}

	report.TopPosts, report.BottomPosts = rankPosts(posts)
	report.UnavailableMetrics = detectGaps(posts, metrics.Reach.Reach)

	return report
}

// enrichPosts merges the page feed with the activity ledger into normalized
// posts. The feed is authoritative for content, type and timestamp; the
// ledger wins on engagement numbers. Feed posts without a ledger entry keep
// zero engagement except for the feed's own share count.
func (b *Builder) enrichPosts(feedPosts []models.FeedPost, activityEntries []models.ActivityEntry) []models.Post {
	byID := make(map[string]models.ActivityEntry, len(activityEntries))
	for _, entry := range activityEntries {
		if entry.FacebookPostID != "" {
			byID[entry.FacebookPostID] = entry
		}
	}

	posts := make([]models.Post, 0, len(feedPosts))
	for _, feedPost := range feedPosts {
		entry := byID[feedPost.ID]

		shares := entry.Shares
		if shares == 0 {
			shares = feedPost.Shares
		}

		message := feedPost.Message
		if message == "" {
			message = entry.Title
		}
		if message == "" {
			message = entry.Caption
		}

		createdTime := feedPost.CreatedTime
		if createdTime == "" {
			createdTime = entry.PublishedAt
		}

		source := entry.Source
		if source == "" {
			source = "unknown"
		}

		engagementTotal := entry.Likes + entry.Comments + shares

		post := models.Post{
			ID:              feedPost.ID,
			Message:         message,
			CreatedTime:     createdTime,
			Type:            feedPost.Type,
			Source:          source,
			Likes:           entry.Likes,
			Comments:        entry.Comments,
			Shares:          shares,
			Reactions:       entry.Reactions,
			Reach:           entry.PostReach,
			Clicks:          entry.Clicks,
			EngagementTotal: engagementTotal,
			EngagementRate:  safePct(float64(engagementTotal), float64(entry.PostReach)),
			ShareRate:       safePct(float64(shares), float64(entry.PostReach)),
		}
		post.Topic = b.topics.Classify(post.Message)
		posts = append(posts, post)
	}

	return posts
}

// rankPosts returns the top-3 posts by total engagement and, when at least
// 3 posts exist, the bottom-3 with the lowest-engagement post first.
func rankPosts(posts []models.Post) ([]models.Post, []models.Post) {
	ranked := make([]models.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EngagementTotal > ranked[j].EngagementTotal
	})

	top := make([]models.Post, 0, topBottomCount)
	for i := 0; i < len(ranked) && i < topBottomCount; i++ {
		top = append(top, ranked[i])
	}

	bottom := make([]models.Post, 0, topBottomCount)
	if len(ranked) >= topBottomCount {
		for i := len(ranked) - 1; i >= len(ranked)-topBottomCount; i-- {
			bottom = append(bottom, ranked[i])
		}
	}

	return top, bottom
}

// detectGaps emits the advisory unavailable-metric notices. These are not
// errors: the report is complete, some inputs just were not observable.
func detectGaps(posts []models.Post, pageReach int) []string {
	notices := make([]string, 0, 2)

	hasVideo := false
	for _, p := range posts {
		if p.Type == "video" {
			hasVideo = true
			break
		}
	}
	if !hasVideo {
		notices = append(notices, "Video ThruPlays/retention (no video posts found)")
	}

	if pageReach == 0 {
		notices = append(notices, "Page reach (read_insights permission may be missing)")
	}

	return notices
}
