package report

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mafserver/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	jobQueue    = "report:jobs"
	replyPrefix = "report:reply:"
	replyTTL    = time.Minute
)

// ErrTimeout means the worker did not answer in time.
var ErrTimeout = errors.New("report generation timed out")

// job travels from the HTTP layer to the worker over a redis list.
type job struct {
	ID      string         `json:"id"`
	Profile models.Profile `json:"profile"`
}

// Worker consumes report jobs and publishes rendered reports to per-job
// reply keys. Run several of them for throughput.
type Worker struct {
	rdb    *redis.Client
	gen    Generator
	logger *zap.Logger
}

func NewWorker(rdb *redis.Client, gen Generator, logger *zap.Logger) *Worker {
	return &Worker{rdb: rdb, gen: gen, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("report worker started")
	for {
		res, err := w.rdb.BRPop(ctx, 0, jobQueue).Result()
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("report worker stopped")
				return
			}
			w.logger.Error("failed to pop report job", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns [key, value]
		var j job
		if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
			w.logger.Error("malformed report job", zap.Error(err))
			continue
		}

		rendered, err := w.gen.Generate(j.Profile)
		if err != nil {
			w.logger.Error("failed to render report",
				zap.String("login", j.Profile.Login), zap.Error(err))
			continue
		}

		replyKey := replyPrefix + j.ID
		pipe := w.rdb.Pipeline()
		pipe.LPush(ctx, replyKey, rendered)
		pipe.Expire(ctx, replyKey, replyTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			w.logger.Error("failed to publish report", zap.Error(err))
			continue
		}
		w.logger.Info("report generated", zap.String("login", j.Profile.Login))
	}
}

// Client enqueues report jobs and awaits the rendered result.
type Client struct {
	rdb     *redis.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(rdb *redis.Client, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, timeout: timeout, logger: logger}
}

// Generate hands the profile snapshot to a worker and blocks for the reply.
func (c *Client) Generate(ctx context.Context, profile models.Profile) ([]byte, error) {
	j := job{ID: uuid.NewString(), Profile: profile}
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.LPush(ctx, jobQueue, raw).Err(); err != nil {
		return nil, err
	}

	res, err := c.rdb.BRPop(ctx, c.timeout, replyPrefix+j.ID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return []byte(res[1]), nil
}
