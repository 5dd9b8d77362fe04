// Package jobs はアカウント削除後のセッション失効を非同期に処理します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"

	"github.com/yourusername/account-api/internal/tokens"
)

const (
	// TaskPurgeSessions はユーザーの全トークンを削除するタスクです。
	TaskPurgeSessions = "account:purge-sessions"

	queueSessions = "sessions"
	maxRetry      = 5
)

// PurgePayload はセッション削除タスクのペイロードです。
type PurgePayload struct {
	UserID string `json:"userId"`
}

// Manager は Asynq のクライアントとワーカーをまとめます。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	tokens tokens.Store
	logger *slog.Logger
}

// NewManager は Manager を初期化します。
func NewManager(queueRedisURL string, store tokens.Store, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("token store is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(queueRedisURL)
	if err != nil {
		return nil, oops.Code("QUEUE_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueSessions: 1,
			},
		},
	)

	m := &Manager{
		client: asynq.NewClient(opt),
		server: server,
		mux:    asynq.NewServeMux(),
		tokens: store,
		logger: logger,
	}
	m.mux.HandleFunc(TaskPurgeSessions, m.handlePurgeSessions)
	return m, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error("asynq server stopped", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown() error {
	m.server.Shutdown()
	return m.client.Close()
}

// PurgeSessions はユーザーの全セッション削除をキューに投入します。
func (m *Manager) PurgeSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID is required")
	}

	body, err := json.Marshal(PurgePayload{UserID: userID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskPurgeSessions, body, asynq.Queue(queueSessions), asynq.MaxRetry(maxRetry))
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return oops.Code("QUEUE_ENQUEUE_FAILED").With("task", TaskPurgeSessions).With("user_id", userID).Wrap(err)
	}
	m.logger.InfoContext(ctx, "session purge enqueued", "task_id", info.ID, "user_id", userID)
	return nil
}

func (m *Manager) handlePurgeSessions(ctx context.Context, task *asynq.Task) error {
	var payload PurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// 壊れたペイロードは再試行しても直らない
		return errors.Join(err, asynq.SkipRetry)
	}
	if payload.UserID == "" {
		return errors.Join(errors.New("missing userId in payload"), asynq.SkipRetry)
	}

	if err := m.tokens.DeleteByUser(ctx, payload.UserID); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "sessions purged", "user_id", payload.UserID)
	return nil
}
