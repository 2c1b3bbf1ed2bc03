package redis

import (
	zeal "github.com/offbit-ai/zeal-sub007"
	"github.com/redis/go-redis/v9"

	feed "github.com/offbit-ai/zeal-sub007/redis/internal/changefeed"
)

// ChangeFeed is a Sink that broadcasts committed records over Redis
// pub/sub, so subscribers in other processes see them live.
type ChangeFeed struct {
	*feed.PubSubSink
}

var _ zeal.Sink = (*ChangeFeed)(nil)

// NewChangeFeed constructs a Redis pub/sub change feed publishing on
// <prefix>changes:<workflowID>.
func NewChangeFeed(client *redis.Client, prefix string) *ChangeFeed {
	return &ChangeFeed{feed.NewPubSubSink(client, prefix)}
}
