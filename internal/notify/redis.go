package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	reminderKeyPrefix  = "habitflow:reminder:"
	reminderScheduleKey = "habitflow:reminder_schedule"
	userNotifyChannel   = "habitflow:notifications"
)

// reminderPayload is the stored form of a scheduled reminder.
type reminderPayload struct {
	ReminderID uuid.UUID `json:"reminder_id"`
	UserID     uuid.UUID `json:"user_id"`
	TaskID     uuid.UUID `json:"task_id"`
	Timing     Timing    `json:"timing"`
}

// userNotification is a one-off message published to the notification
// channel.
type userNotification struct {
	UserID  uuid.UUID `json:"user_id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// RedisDispatcher keeps reminder payloads in Redis keyed by reminder ID and
// a sorted set of reminder IDs scored by next fire time, which the delivery
// process drains. One-off notifications go out over a pub/sub channel.
type RedisDispatcher struct {
	client *redis.Client
	clock  clock.Clock
	logger *zap.Logger
}

var _ Dispatcher = (*RedisDispatcher)(nil)

// NewRedisDispatcher creates a dispatcher backed by the given Redis client.
func NewRedisDispatcher(client *redis.Client, clk clock.Clock, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, clock: clk, logger: logger}
}

// Schedule stores a reminder's payload and enqueues its next fire time.
func (d *RedisDispatcher) Schedule(ctx context.Context, reminder *models.Reminder) error {
	timing := Timing{
		Hour:       reminder.Hour,
		Minute:     reminder.Minute,
		DayOfWeek:  reminder.DayOfWeek,
		Recurrence: reminder.Recurrence,
	}
	payload := reminderPayload{
		ReminderID: reminder.ID,
		UserID:     reminder.UserID,
		TaskID:     reminder.TaskID,
		Timing:     timing,
	}
	return d.store(ctx, payload)
}

// Update rewrites a scheduled reminder's timing. Unknown reminder IDs are
// ignored so rescheduling races with cancellation harmlessly.
func (d *RedisDispatcher) Update(ctx context.Context, reminderID uuid.UUID, timing Timing) error {
	raw, err := d.client.Get(ctx, reminderKeyPrefix+reminderID.String()).Result()
	if err == redis.Nil {
		d.logger.Debug("reminder_update_skipped", zap.String("reminder_id", reminderID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load reminder: %w", err)
	}

	var payload reminderPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("failed to decode reminder payload: %w", err)
	}
	payload.Timing = timing
	return d.store(ctx, payload)
}

// Cancel removes a reminder from the store and the schedule.
func (d *RedisDispatcher) Cancel(ctx context.Context, reminderID uuid.UUID) error {
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, reminderKeyPrefix+reminderID.String())
	pipe.ZRem(ctx, reminderScheduleKey, reminderID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}
	return nil
}

// Notify publishes a one-off notification for a user.
func (d *RedisDispatcher) Notify(ctx context.Context, userID uuid.UUID, kind, message string) error {
	raw, err := json.Marshal(userNotification{
		UserID:  userID,
		Kind:    kind,
		Message: message,
		SentAt:  d.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := d.client.Publish(ctx, userNotifyChannel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func (d *RedisDispatcher) store(ctx context.Context, payload reminderPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode reminder payload: %w", err)
	}
	fireAt := NextFireTime(d.clock.Now(), payload.Timing)

	pipe := d.client.TxPipeline()
	pipe.Set(ctx, reminderKeyPrefix+payload.ReminderID.String(), raw, 0)
	pipe.ZAdd(ctx, reminderScheduleKey, redis.Z{
		Score:  float64(fireAt.Unix()),
		Member: payload.ReminderID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	return nil
}
