package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskChatProvision = "chat.provision"

const TaskNotificationOutboxDue = "notification.outbox.due"

type ChatProvisionPayload struct {
	LeadID       string `json:"leadId"`
	SellerID     string `json:"sellerId"`
	BuyerID      string `json:"buyerId"`
	ContactPhone string `json:"contactPhone,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

func NewChatProvisionTask(payload ChatProvisionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChatProvision, data), nil
}

func ParseChatProvisionPayload(task *asynq.Task) (ChatProvisionPayload, error) {
	var payload ChatProvisionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ChatProvisionPayload{}, err
	}
	return payload, nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
