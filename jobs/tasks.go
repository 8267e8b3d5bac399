package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDeliverCode is the task type for verification-code emails.
	TaskTypeDeliverCode = "verification:deliver"
)

// DeliverCodePayload carries one verification-code delivery. TaskID ties the
// enqueue log line to the worker's outcome log line.
type DeliverCodePayload struct {
	TaskID string `json:"task_id"`
	Email  string `json:"email"`
	Code   string `json:"code"`
}

// NewDeliverCodeTask constructs an Asynq task for a code delivery.
func NewDeliverCodeTask(payload DeliverCodePayload) (*asynq.Task, error) {
	if payload.TaskID == "" {
		payload.TaskID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDeliverCode, data), nil
}

// CodeSender is the delivery gateway consumed by the worker.
type CodeSender interface {
	SendCode(recipient, code string) error
}

// DeliveryMetrics records delivery outcomes on the observable side channel.
type DeliveryMetrics interface {
	DeliverySucceeded()
	DeliveryFailed()
}

// DeliveryHandler processes TaskTypeDeliverCode tasks.
type DeliveryHandler struct {
	sender  CodeSender
	metrics DeliveryMetrics
	logger  *slog.Logger
}

// NewDeliveryHandler constructs a DeliveryHandler.
func NewDeliveryHandler(sender CodeSender, metrics DeliveryMetrics, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{sender: sender, metrics: metrics, logger: logger}
}

// Handle sends the email. A malformed payload is dropped instead of retried;
// a gateway failure is returned so Asynq retries up to the task's budget.
func (h *DeliveryHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DeliverCodePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("deliver code: bad payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := h.sender.SendCode(payload.Email, payload.Code); err != nil {
		h.metrics.DeliveryFailed()
		h.logger.Error("deliver code",
			slog.String("task_id", payload.TaskID),
			slog.String("email", payload.Email),
			slog.Any("error", err))
		return err
	}
	h.metrics.DeliverySucceeded()
	h.logger.Info("verification code delivered",
		slog.String("task_id", payload.TaskID),
		slog.String("email", payload.Email))
	return nil
}
