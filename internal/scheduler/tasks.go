package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskSendReply = "assistant.reply.send"

// SendReplyPayload carries one outbound reply to the delivery worker.
type SendReplyPayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

func NewSendReplyTask(payload SendReplyPayload) (*asynq.Task, error) {
	if payload.UserID == "" {
		return nil, fmt.Errorf("send reply task: empty user id")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendReply, data), nil
}

func ParseSendReplyPayload(task *asynq.Task) (SendReplyPayload, error) {
	var payload SendReplyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendReplyPayload{}, err
	}
	return payload, nil
}
