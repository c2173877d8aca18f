package models

import "time"

// ChatAnalyticsRecord is the anonymized trace of one chat exchange. It
// carries no message or reply text.
type ChatAnalyticsRecord struct {
	Intent                 MessageIntent `bson:"intent" json:"intent"`
	Role                   Role          `bson:"role" json:"role"`
	UserID                 string        `bson:"user_id,omitempty" json:"user_id,omitempty"`
	IsUnknownIntent        bool          `bson:"is_unknown_intent" json:"is_unknown_intent"`
	HasError               bool          `bson:"has_error" json:"has_error"`
	SupportOffered         bool          `bson:"support_offered" json:"support_offered"`
	UsedExternalCompletion bool          `bson:"used_external_completion" json:"used_external_completion"`
	ResponseTimeMs         int64         `bson:"response_time_ms" json:"response_time_ms"`
	Timestamp              time.Time     `bson:"timestamp" json:"timestamp"`
}

// Unanswered reports whether the exchange counts as unanswered in summaries.
func (r *ChatAnalyticsRecord) Unanswered() bool {
	return r.IsUnknownIntent || r.HasError
}

type IntentCount struct {
	Intent string `bson:"_id" json:"intent"`
	Count  int64  `bson:"count" json:"count"`
}

type ResponseTimeStats struct {
	AvgResponseTimeMs float64 `bson:"avg_response_time_ms" json:"avg_response_time_ms"`
	MaxResponseTimeMs int64   `bson:"max_response_time_ms" json:"max_response_time_ms"`
	SampleSize        int64   `bson:"count" json:"sample_size"`
}

type AnalyticsSummary struct {
	MostCommonIntents []IntentCount      `json:"most_common_intents"`
	UnansweredIntents []IntentCount      `json:"unanswered_intents"`
	Performance       *ResponseTimeStats `json:"performance"`
}
