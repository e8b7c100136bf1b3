// Package api is the Facebook Graph API client. Every fetcher degrades to
// zero values instead of failing the caller: missing credentials, permission
// errors and upstream outages all surface as empty metrics plus a log line,
// so a report can always be built from whatever was reachable.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v18.0"
	defaultFeedLimit = 100
	maxRetries       = 3
)

// RawCache stores raw API payloads with a TTL. Satisfied by cache.Store.
type RawCache interface {
	SaveRaw(endpoint string, payload []byte, ttlMinutes int) error
	LoadRaw(endpoint string) ([]byte, bool)
}

// FacebookAPI is a rate-limited Graph API client for one page.
type FacebookAPI struct {
	pageID     string
	pageToken  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      RawCache
	retryBase  time.Duration
	log        *logrus.Logger
}

// VideoMetrics holds the video-only insight values for a single post.
type VideoMetrics struct {
	VideoViews         int `json:"video_views"`
	AvgWatchMs         int `json:"avg_watch_ms"`
	VideoCompleteViews int `json:"video_complete_views"`
}

// PostClicks holds the click breakdown for a single post.
type PostClicks struct {
	LinkClicks  int `json:"link_clicks"`
	OtherClicks int `json:"other_clicks"`
	TotalClicks int `json:"total_clicks"`
}

// NewFacebookAPI creates a Graph API client. minIntervalMs is the minimum
// delay between calls; 0 falls back to 500ms. cache may be nil to disable
// response caching.
func NewFacebookAPI(pageID, pageToken string, minIntervalMs int, cache RawCache, log *logrus.Logger) *FacebookAPI {
	if minIntervalMs <= 0 {
		minIntervalMs = 500
	}

	return &FacebookAPI{
		pageID:     pageID,
		pageToken:  pageToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Duration(minIntervalMs)*time.Millisecond), 1),
		cache:      cache,
		retryBase:  2 * time.Second,
		log:        log,
	}
}

// HasCredentials reports whether the client can make authenticated calls.
func (f *FacebookAPI) HasCredentials() bool {
	return f.pageID != "" && f.pageToken != ""
}

// apiGet performs a cached, rate-limited GET against the Graph API.
// 429 responses retry with exponential backoff; other 4xx/5xx are terminal.
func (f *FacebookAPI) apiGet(ctx context.Context, endpoint string, params url.Values, cacheKey string, cacheTTLMinutes int) ([]byte, error) {
	if cacheKey != "" && f.cache != nil {
		if payload, ok := f.cache.LoadRaw(cacheKey); ok {
			return payload, nil
		}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", f.pageToken)
	requestURL := fmt.Sprintf("%s/%s?%s", f.baseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = err
			f.log.WithError(err).WithField("endpoint", endpoint).Warn("Graph API request error, retrying")
			if attempt < maxRetries-1 {
				if err := sleepCtx(ctx, f.retryBase/2*(1<<attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := f.retryBase * (1 << attempt)
			f.log.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"wait":     wait.String(),
			}).Warn("Graph API rate limited, backing off")
			lastErr = fmt.Errorf("rate limited (429)")
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			snippet := string(body)
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			f.log.WithFields(logrus.Fields{
				"endpoint":    endpoint,
				"status_code": resp.StatusCode,
				"body":        snippet,
			}).Error("Graph API error response")
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, snippet)
		}

		if cacheKey != "" && f.cache != nil {
			if err := f.cache.SaveRaw(cacheKey, body, cacheTTLMinutes); err != nil {
				f.log.WithError(err).WithField("endpoint", endpoint).Warn("Failed to cache Graph API response")
			}
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr)
}

// insight payload shapes: values are either plain numbers or per-type maps
type insightsResponse struct {
	Data []struct {
		Name   string         `json:"name"`
		Values []insightValue `json:"values"`
	} `json:"data"`
}

type insightValue struct {
	EndTime string          `json:"end_time"`
	Value   json.RawMessage `json:"value"`
}

func (v insightValue) intValue() int {
	var n float64
	if err := json.Unmarshal(v.Value, &n); err != nil {
		return 0
	}
	return int(n)
}

func (v insightValue) mapValue() map[string]int {
	var raw map[string]float64
	if err := json.Unmarshal(v.Value, &raw); err != nil {
		return nil
	}
	out := make(map[string]int, len(raw))
	for k, n := range raw {
		out[k] = int(n)
	}
	return out
}

func sumValues(values []insightValue) int {
	total := 0
	for _, v := range values {
		total += v.intValue()
	}
	return total
}

func (f *FacebookAPI) pageInsights(ctx context.Context, metrics, since, until, cachePrefix string, ttlMinutes int) (*insightsResponse, error) {
	params := url.Values{}
	params.Set("metric", metrics)
	params.Set("period", "day")
	if since != "" {
		params.Set("since", since)
	}
	if until != "" {
		params.Set("until", until)
	}

	cacheKey := fmt.Sprintf("%s_%s_%s", cachePrefix, since, until)
	body, err := f.apiGet(ctx, f.pageID+"/insights", params, cacheKey, ttlMinutes)
	if err != nil {
		return nil, err
	}

	var parsed insightsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode insights response: %w", err)
	}
	return &parsed, nil
}

// FetchPageReach returns page reach and impressions for the date range.
func (f *FacebookAPI) FetchPageReach(ctx context.Context, since, until string) models.PageReach {
	var result models.PageReach
	if !f.HasCredentials() {
		return result
	}

	parsed, err := f.pageInsights(ctx, "page_impressions_unique,page_impressions", since, until, "page_reach", 120)
	if err != nil {
		f.log.WithError(err).Warn("Failed to fetch page reach")
		return result
	}

	for _, item := range parsed.Data {
		switch item.Name {
		case "page_impressions_unique":
			result.Reach = sumValues(item.Values)
		case "page_impressions":
			result.Impressions = sumValues(item.Values)
		}
	}

	if result.Reach > 0 {
		result.Frequency = math.Round(float64(result.Impressions)/float64(result.Reach)*100) / 100
	}
	return result
}

// FetchPageEngagement returns the page-level engagement counters.
func (f *FacebookAPI) FetchPageEngagement(ctx context.Context, since, until string) models.PageEngagement {
	var result models.PageEngagement
	if !f.HasCredentials() {
		return result
	}

	parsed, err := f.pageInsights(ctx, "page_engaged_users,page_post_engagements", since, until, "page_engagement", 120)
	if err != nil {
		f.log.WithError(err).Warn("Failed to fetch page engagement")
		return result
	}

	for _, item := range parsed.Data {
		switch item.Name {
		case "page_engaged_users":
			result.EngagedUsers = sumValues(item.Values)
		case "page_post_engagements":
			result.PostEngagements = sumValues(item.Values)
		}
	}
	return result
}

// FetchNegativeFeedback returns hide/report/unlike counts for the range.
func (f *FacebookAPI) FetchNegativeFeedback(ctx context.Context, since, until string) models.NegativeFeedback {
	result := models.NegativeFeedback{ByType: map[string]int{}}
	if !f.HasCredentials() {
		return result
	}

	parsed, err := f.pageInsights(ctx, "page_negative_feedback,page_negative_feedback_by_type", since, until, "negative_feedback", 120)
	if err != nil {
		f.log.WithError(err).Warn("Failed to fetch negative feedback")
		return result
	}

	for _, item := range parsed.Data {
		switch item.Name {
		case "page_negative_feedback":
			result.Total = sumValues(item.Values)
		case "page_negative_feedback_by_type":
			for _, v := range item.Values {
				for kind, count := range v.mapValue() {
					result.ByType[kind] += count
				}
			}
		}
	}
	return result
}

// FetchPageFans returns the daily follower adds/removes series.
func (f *FacebookAPI) FetchPageFans(ctx context.Context, since, until string) models.FansData {
	var result models.FansData
	if !f.HasCredentials() {
		return result
	}

	parsed, err := f.pageInsights(ctx, "page_fan_adds,page_fan_removes", since, until, "fans_daily", 120)
	if err != nil {
		f.log.WithError(err).Warn("Failed to fetch fan series")
		return result
	}

	addsByDate := map[string]int{}
	removesByDate := map[string]int{}
	for _, item := range parsed.Data {
		for _, v := range item.Values {
			date := v.EndTime
			if len(date) > 10 {
				date = date[:10]
			}
			switch item.Name {
			case "page_fan_adds":
				addsByDate[date] = v.intValue()
			case "page_fan_removes":
				removesByDate[date] = v.intValue()
			}
		}
	}

	dates := make([]string, 0, len(addsByDate)+len(removesByDate))
	seen := map[string]bool{}
	for date := range addsByDate {
		seen[date] = true
	}
	for date := range removesByDate {
		seen[date] = true
	}
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		adds := addsByDate[date]
		removes := removesByDate[date]
		result.Daily = append(result.Daily, models.DailyFans{
			Date:    date,
			Adds:    adds,
			Removes: removes,
			Net:     adds - removes,
		})
		result.TotalAdds += adds
		result.TotalRemoves += removes
	}
	result.Net = result.TotalAdds - result.TotalRemoves

	return result
}

// feedResponse is the page feed shape; shares arrive as a nested count.
type feedResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Message     string `json:"message"`
		CreatedTime string `json:"created_time"`
		Type        string `json:"type"`
		StatusType  string `json:"status_type"`
		Shares      struct {
			Count int `json:"count"`
		} `json:"shares"`
	} `json:"data"`
}

// FetchRecentPosts returns published posts from the page feed.
func (f *FacebookAPI) FetchRecentPosts(ctx context.Context, limit int, since string) []models.FeedPost {
	if !f.HasCredentials() {
		return nil
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	params := url.Values{}
	params.Set("fields", "id,message,created_time,type,status_type,shares")
	params.Set("limit", strconv.Itoa(limit))
	if since != "" {
		params.Set("since", since)
	}

	cacheKey := fmt.Sprintf("recent_posts_%s_%d", since, limit)
	body, err := f.apiGet(ctx, f.pageID+"/posts", params, cacheKey, 30)
	if err != nil {
		f.log.WithError(err).Warn("Failed to fetch page feed")
		return nil
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		f.log.WithError(err).Warn("Failed to decode page feed")
		return nil
	}

	posts := make([]models.FeedPost, 0, len(parsed.Data))
	for _, p := range parsed.Data {
		posts = append(posts, models.FeedPost{
			ID:          p.ID,
			Message:     p.Message,
			CreatedTime: p.CreatedTime,
			Type:        p.Type,
			StatusType:  p.StatusType,
			Shares:      p.Shares.Count,
		})
	}

	f.log.WithField("post_count", len(posts)).Info("Fetched page feed")
	return posts
}

// PostDetails is the content snapshot of a single post.
type PostDetails struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	StatusType  string `json:"status_type"`
}

// FetchPostDetails returns type/message/timestamp for one post. Cached for
// 24h: published content does not change.
func (f *FacebookAPI) FetchPostDetails(ctx context.Context, postID string) PostDetails {
	var result PostDetails
	if f.pageToken == "" || postID == "" {
		return result
	}

	params := url.Values{}
	params.Set("fields", "type,message,created_time,status_type")

	body, err := f.apiGet(ctx, postID, params, "post_detail_"+postID, 1440)
	if err != nil {
		f.log.WithError(err).WithField("post_id", postID).Warn("Failed to fetch post details")
		return result
	}

	if err := json.Unmarshal(body, &result); err != nil {
		f.log.WithError(err).WithField("post_id", postID).Warn("Failed to decode post details")
	}
	return result
}

// postIDCandidates returns the ids to try for a post-level call. Bare ids
// (without the PAGE_POST underscore form) get a second page-prefixed try.
func (f *FacebookAPI) postIDCandidates(postID string) []string {
	ids := []string{postID}
	if !strings.Contains(postID, "_") && f.pageID != "" {
		ids = append(ids, f.pageID+"_"+postID)
	}
	return ids
}

// FetchPostComments returns up to limit comments for sentiment analysis.
// Comments without a message body are dropped.
func (f *FacebookAPI) FetchPostComments(ctx context.Context, postID string, limit int) []models.Comment {
	if f.pageToken == "" || postID == "" {
		return nil
	}
	if limit <= 0 {
		limit = 50
	}

	for _, fbID := range f.postIDCandidates(postID) {
		params := url.Values{}
		params.Set("fields", "message,created_time")
		params.Set("limit", strconv.Itoa(limit))

		body, err := f.apiGet(ctx, fbID+"/comments", params, "comments_"+fbID, 30)
		if err != nil {
			continue
		}

		var parsed struct {
			Data []models.Comment `json:"data"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			continue
		}
		if len(parsed.Data) == 0 {
			continue
		}

		comments := make([]models.Comment, 0, len(parsed.Data))
		for _, c := range parsed.Data {
			if c.Message != "" {
				comments = append(comments, c)
			}
		}
		return comments
	}
	return nil
}

// FetchPostImpressions returns (impressions, reach) for one post.
func (f *FacebookAPI) FetchPostImpressions(ctx context.Context, postID string) (int, int) {
	if f.pageToken == "" || postID == "" {
		return 0, 0
	}

	for _, fbID := range f.postIDCandidates(postID) {
		parsed, err := f.postInsights(ctx, fbID, "post_impressions,post_impressions_unique", "post_impressions_"+fbID, 60)
		if err != nil {
			continue
		}

		impressions, reach := 0, 0
		for _, item := range parsed.Data {
			if len(item.Values) == 0 {
				continue
			}
			last := item.Values[len(item.Values)-1]
			switch item.Name {
			case "post_impressions":
				impressions = last.intValue()
			case "post_impressions_unique":
				reach = last.intValue()
			}
		}
		if impressions > 0 || reach > 0 {
			return impressions, reach
		}
	}
	return 0, 0
}

// FetchPostClicks returns the click breakdown for one post.
func (f *FacebookAPI) FetchPostClicks(ctx context.Context, postID string) PostClicks {
	var result PostClicks
	if f.pageToken == "" || postID == "" {
		return result
	}

	for _, fbID := range f.postIDCandidates(postID) {
		parsed, err := f.postInsights(ctx, fbID, "post_clicks_by_type", "post_clicks_"+fbID, 60)
		if err != nil {
			continue
		}

		for _, item := range parsed.Data {
			if len(item.Values) == 0 {
				continue
			}
			byType := item.Values[len(item.Values)-1].mapValue()
			if byType == nil {
				continue
			}
			result.LinkClicks = byType["link clicks"]
			result.OtherClicks = byType["other clicks"]
			total := 0
			for _, n := range byType {
				total += n
			}
			result.TotalClicks = total
			if total > 0 {
				return result
			}
		}
	}
	return result
}

// FetchVideoMetrics returns video insight values; zeros for non-video posts.
func (f *FacebookAPI) FetchVideoMetrics(ctx context.Context, postID string) VideoMetrics {
	var result VideoMetrics
	if f.pageToken == "" || postID == "" {
		return result
	}

	for _, fbID := range f.postIDCandidates(postID) {
		parsed, err := f.postInsights(ctx, fbID,
			"post_video_views,post_video_avg_time_watched,post_video_complete_views_organic",
			"video_metrics_"+fbID, 60)
		if err != nil {
			continue
		}

		for _, item := range parsed.Data {
			if len(item.Values) == 0 {
				continue
			}
			last := item.Values[len(item.Values)-1]
			switch item.Name {
			case "post_video_views":
				result.VideoViews = last.intValue()
			case "post_video_avg_time_watched":
				result.AvgWatchMs = last.intValue()
			case "post_video_complete_views_organic":
				result.VideoCompleteViews = last.intValue()
			}
		}
		if result.VideoViews > 0 {
			return result
		}
	}
	return result
}

func (f *FacebookAPI) postInsights(ctx context.Context, fbID, metrics, cacheKey string, ttlMinutes int) (*insightsResponse, error) {
	params := url.Values{}
	params.Set("metric", metrics)

	body, err := f.apiGet(ctx, fbID+"/insights", params, cacheKey, ttlMinutes)
	if err != nil {
		return nil, err
	}

	var parsed insightsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode insights response: %w", err)
	}
	return &parsed, nil
}

// FetchPeriodMetrics collects every page-level metric plus the feed for one
// date range. Individual fetch failures leave their section zero-valued.
func (f *FacebookAPI) FetchPeriodMetrics(ctx context.Context, since, until string) models.PeriodMetrics {
	f.log.WithFields(logrus.Fields{
		"since": since,
		"until": until,
	}).Info("Fetching period metrics")

	return models.PeriodMetrics{
		Since:            since,
		Until:            until,
		Reach:            f.FetchPageReach(ctx, since, until),
		Engagement:       f.FetchPageEngagement(ctx, since, until),
		NegativeFeedback: f.FetchNegativeFeedback(ctx, since, until),
		Fans:             f.FetchPageFans(ctx, since, until),
		Posts:            f.FetchRecentPosts(ctx, defaultFeedLimit, since),
		FetchedAt:        time.Now().UTC(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
