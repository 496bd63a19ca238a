package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "usage:counters:"
	dayLayout = "2006-01-02"

	// Retention keeps a month of daily hashes
	Retention = 31 * 24 * time.Hour
)

// Event names recorded by the handlers and the sweep.
const (
	EventUpload          = "uploads"
	EventUploadRejected  = "uploads_rejected"
	EventExtraction      = "extractions"
	EventExtractionCache = "extractions_cached"
	EventExtractionFail  = "extractions_failed"
	EventCaptchaRejected = "captcha_rejected"
	EventBlobsDeleted    = "blobs_deleted"
)

// Counter keeps one Redis hash per UTC day with a field per event.
type Counter struct {
	client *redis.Client
	now    func() time.Time
}

func New(client *redis.Client) *Counter {
	return &Counter{client: client, now: time.Now}
}

func dayKey(t time.Time) string {
	return keyPrefix + t.UTC().Format(dayLayout)
}

// Add increments event by n for today. Errors are logged and dropped so a
// cache outage never fails a request.
func (c *Counter) Add(event string, n int64) {
	if c == nil || c.client == nil || n == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := dayKey(c.now())
	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, key, event, n)
	pipe.Expire(ctx, key, Retention)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warnf("[Counter] Increment %s failed: %v", event, err)
	}
}

// Incr is Add(event, 1).
func (c *Counter) Incr(event string) {
	c.Add(event, 1)
}

// Day returns the counters of the given day. Missing days yield an empty map.
func (c *Counter) Day(ctx context.Context, day time.Time) (map[string]int64, error) {
	raw, err := c.client.HGetAll(ctx, dayKey(day)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Snapshot returns the counters of the last `days` days keyed by date.
func (c *Counter) Snapshot(ctx context.Context, days int) (map[string]map[string]int64, error) {
	if days <= 0 {
		days = 1
	}
	today := c.now().UTC()
	out := make(map[string]map[string]int64, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		counts, err := c.Day(ctx, day)
		if err != nil {
			return nil, err
		}
		out[day.Format(dayLayout)] = counts
	}
	return out, nil
}
