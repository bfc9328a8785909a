package domain

import "time"

const (
	FeedEventBadgeAccepted = "badge_accepted"
	FeedEventBadgeReplaced = "badge_replaced"
)

// FeedEvent is broadcast to live leaderboard subscribers after a badge is
// stored. It carries the public projection only.
type FeedEvent struct {
	Type       string      `json:"type"`
	Badge      PublicBadge `json:"badge"`
	IsUpdate   bool        `json:"isUpdate"`
	OccurredAt time.Time   `json:"occurredAt"`
}
