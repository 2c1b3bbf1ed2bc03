package updatelog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	coreu "github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// RedisLog is a pending update Log backed by Redis. It uses two sorted
// sets and a hash per workflow:
//
//	<prefix>upd:<workflowID>     => ZSET, score=sequence, member=JSON record
//	<prefix>updtime:<workflowID> => ZSET, score=append time (ns), member=sequence
//	<prefix>updcur:<workflowID>  => HASH {trimmed_through, last_sequence}
//
// The time index exists only so age-based trimming never has to decode
// record payloads.
type RedisLog struct {
	client    *redis.Client
	prefix    string
	retention coreu.Retention
	now       func() time.Time
}

var _ coreu.Log = (*RedisLog)(nil)

// hsetMax sets a hash field to max(current, ARGV[2]) atomically, so
// concurrent trims never move a cursor backwards.
var hsetMax = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local val = tonumber(ARGV[2])
if val > cur then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return val
end
return cur
`)

// NewRedisLog creates a RedisLog with the given retention policy.
// prefix is optional but recommended (e.g. "zeal:").
func NewRedisLog(client *redis.Client, prefix string, retention coreu.Retention) *RedisLog {
	if prefix == "" {
		prefix = "zeal:"
	}
	return &RedisLog{
		client:    client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (l *RedisLog) keyUpdates(workflowID string) string {
	return l.prefix + "upd:" + workflowID
}

func (l *RedisLog) keyTimes(workflowID string) string {
	return l.prefix + "updtime:" + workflowID
}

func (l *RedisLog) keyCursor(workflowID string) string {
	return l.prefix + "updcur:" + workflowID
}

func (l *RedisLog) Append(ctx context.Context, rec api.ChangeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, l.keyUpdates(rec.WorkflowID), redis.Z{
		Score:  float64(rec.Sequence),
		Member: data,
	})
	pipe.ZAdd(ctx, l.keyTimes(rec.WorkflowID), redis.Z{
		Score:  float64(l.now().UnixNano()),
		Member: strconv.FormatInt(rec.Sequence, 10),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if err := hsetMax.Run(ctx, l.client,
		[]string{l.keyCursor(rec.WorkflowID)},
		"last_sequence", rec.Sequence).Err(); err != nil {
		return err
	}

	return l.trim(ctx, rec.WorkflowID)
}

// trim enforces the retention bounds and advances trimmed_through past
// every dropped record.
func (l *RedisLog) trim(ctx context.Context, workflowID string) error {
	updKey := l.keyUpdates(workflowID)
	timeKey := l.keyTimes(workflowID)

	var cutoffSeq int64
	var dropMembers []any

	if l.retention.MaxRecords > 0 {
		card, err := l.client.ZCard(ctx, updKey).Result()
		if err != nil {
			return err
		}
		if excess := card - int64(l.retention.MaxRecords); excess > 0 {
			// The oldest entries are exactly the ones past the bound.
			oldest, err := l.client.ZRangeWithScores(ctx, updKey, 0, excess-1).Result()
			if err != nil {
				return err
			}
			for _, z := range oldest {
				seq := int64(z.Score)
				if seq > cutoffSeq {
					cutoffSeq = seq
				}
				dropMembers = append(dropMembers, strconv.FormatInt(seq, 10))
			}
		}
	}

	if l.retention.MaxAge > 0 {
		cutoffAt := l.now().Add(-l.retention.MaxAge).UnixNano()
		aged, err := l.client.ZRangeByScore(ctx, timeKey, &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(cutoffAt, 10),
		}).Result()
		if err != nil {
			return err
		}
		for _, member := range aged {
			seq, err := strconv.ParseInt(member, 10, 64)
			if err != nil {
				continue
			}
			if seq > cutoffSeq {
				cutoffSeq = seq
			}
			dropMembers = append(dropMembers, member)
		}
	}

	if cutoffSeq == 0 {
		return nil
	}

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, updKey, "-inf", strconv.FormatInt(cutoffSeq, 10))
	if len(dropMembers) > 0 {
		pipe.ZRem(ctx, timeKey, dropMembers...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return hsetMax.Run(ctx, l.client,
		[]string{l.keyCursor(workflowID)},
		"trimmed_through", cutoffSeq).Err()
}

func (l *RedisLog) Query(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error) {
	if err := l.trim(ctx, workflowID); err != nil {
		return nil, err
	}

	fields, err := l.client.HMGet(ctx, l.keyCursor(workflowID),
		"trimmed_through", "last_sequence").Result()
	if err != nil {
		return nil, err
	}
	trimmedThrough := parseHashInt(fields[0])
	lastSequence := parseHashInt(fields[1])

	if lastSequence == 0 {
		// Nothing was ever appended.
		return nil, nil
	}

	if sinceSequence < trimmedThrough {
		return nil, &api.CapacityError{
			WorkflowID:     workflowID,
			SinceSequence:  sinceSequence,
			OldestRetained: trimmedThrough + 1,
			NewestSequence: lastSequence,
		}
	}

	members, err := l.client.ZRangeByScore(ctx, l.keyUpdates(workflowID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(sinceSequence, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.ChangeRecord, 0, len(members))
	for _, member := range members {
		var rec api.ChangeRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *RedisLog) Clear(ctx context.Context, workflowID string) error {
	return l.client.Del(ctx, l.keyUpdates(workflowID), l.keyTimes(workflowID)).Err()
}

func (l *RedisLog) Drop(ctx context.Context, workflowID string) error {
	return l.client.Del(ctx,
		l.keyUpdates(workflowID),
		l.keyTimes(workflowID),
		l.keyCursor(workflowID),
	).Err()
}

func (l *RedisLog) LastSequence(ctx context.Context, workflowID string) (int64, error) {
	val, err := l.client.HGet(ctx, l.keyCursor(workflowID), "last_sequence").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func parseHashInt(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
