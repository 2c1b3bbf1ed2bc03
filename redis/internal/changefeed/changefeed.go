package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// PubSubSink implements the Sink interface using Redis pub/sub.
//
// Each committed record is published as JSON on the channel:
//
//	<prefix>changes:<workflowID>
//
// so one process can mutate a workflow while subscribers in other
// processes see every record live, without polling.
type PubSubSink struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewPubSubSink constructs a Redis pub/sub Sink.
// prefix is optional but recommended (e.g. "zeal:").
func NewPubSubSink(client *redis.Client, prefix string) *PubSubSink {
	if prefix == "" {
		prefix = "zeal:"
	}
	return &PubSubSink{
		client: client,
		prefix: prefix,
		logger: slog.Default(),
	}
}

// Ensure PubSubSink implements Sink.
var _ api.Sink = (*PubSubSink)(nil)

func (s *PubSubSink) channel(workflowID string) string {
	return s.prefix + "changes:" + workflowID
}

// Deliver publishes the record. Sinks are best-effort, so a publish
// failure is logged and swallowed.
func (s *PubSubSink) Deliver(ctx context.Context, rec api.ChangeRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.WarnContext(ctx, "changefeed: marshal failed",
			"workflow_id", rec.WorkflowID, "sequence", rec.Sequence, "error", err)
		return
	}
	if err := s.client.Publish(ctx, s.channel(rec.WorkflowID), data).Err(); err != nil {
		s.logger.WarnContext(ctx, "changefeed: publish failed",
			"workflow_id", rec.WorkflowID, "sequence", rec.Sequence, "error", err)
	}
}

// Subscribe listens for records published for the workflow and sends
// them on the returned channel until ctx is cancelled. Records that
// fail to decode are logged and skipped.
func (s *PubSubSink) Subscribe(ctx context.Context, workflowID string) (<-chan api.ChangeRecord, error) {
	sub := s.client.Subscribe(ctx, s.channel(workflowID))

	// Wait for the subscription to be established so callers never miss
	// records published right after Subscribe returns.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan api.ChangeRecord)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec api.ChangeRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					s.logger.Warn("changefeed: decode failed",
						"workflow_id", workflowID, "error", err)
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- rec:
				}
			}
		}
	}()
	return out, nil
}
