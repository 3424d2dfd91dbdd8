package redisad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// inboxLimit caps how many report notifications are kept per recipient.
const inboxLimit = 50

type Notification struct {
	RecipientID string    `json:"recipient_id"`
	ReportID    string    `json:"report_id"`
	Kind        string    `json:"kind"`
	SentAt      time.Time `json:"sent_at"`
}

// Notifier publishes "report ready" events and keeps a short per-user inbox.
type Notifier struct {
	c       *redis.Client
	channel string
	now     func() time.Time
}

func NewNotifier(c *redis.Client, channel string) *Notifier {
	return &Notifier{c: c, channel: channel, now: func() time.Time { return time.Now().UTC() }}
}

func InboxKey(recipientID string) string { return keyPrefix + "inbox:" + recipientID }

func (n *Notifier) Notify(ctx context.Context, recipientID, reportID string) error {
	b, err := json.Marshal(Notification{
		RecipientID: recipientID,
		ReportID:    reportID,
		Kind:        "report_ready",
		SentAt:      n.now(),
	})
	if err != nil {
		return err
	}
	_, err = n.c.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, InboxKey(recipientID), b)
		p.LTrim(ctx, InboxKey(recipientID), 0, inboxLimit-1)
		p.Publish(ctx, n.channel, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", recipientID, err)
	}
	return nil
}

// Inbox returns the newest notifications first.
func (n *Notifier) Inbox(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > inboxLimit {
		limit = inboxLimit
	}
	raw, err := n.c.LRange(ctx, InboxKey(recipientID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, s := range raw {
		var nt Notification
		if err := json.Unmarshal([]byte(s), &nt); err == nil {
			out = append(out, nt)
		}
	}
	return out, nil
}
