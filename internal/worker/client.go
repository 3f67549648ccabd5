package worker

import (
	"fmt"

	"gateway/internal/config"
	"gateway/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务入队客户端
type Client struct {
	client *asynq.Client
}

// NewClient 创建任务入队客户端
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// EnqueueResyncModels 投递凭证模型重同步任务
func (c *Client) EnqueueResyncModels(p *tasks.ResyncModelsPayload) (string, error) {
	task, err := tasks.NewResyncModelsTask(p)
	if err != nil {
		return "", err
	}
	info, err := c.client.Enqueue(task, asynq.Queue("credentials"), asynq.MaxRetry(3))
	if err != nil {
		return "", fmt.Errorf("投递任务失败: %w", err)
	}
	return info.ID, nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}
