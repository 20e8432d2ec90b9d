package service

import (
	"time"

	"protectbox/internal/jobs"
	"protectbox/internal/model"

	"github.com/hibiken/asynq"
)

// JobClient interface for scheduling background jobs
type JobClient interface {
	ScheduleExtensionWindow(m model.Mission) error
	ScheduleOverdue(m model.Mission) error
	NotifyRequestFiled(requestID string) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleExtensionWindow(m model.Mission) error {
	return jobs.ScheduleExtensionWindow(c.client, m, time.Now())
}

func (c *AsynqJobClient) ScheduleOverdue(m model.Mission) error {
	return jobs.ScheduleOverdue(c.client, m, time.Now())
}

func (c *AsynqJobClient) NotifyRequestFiled(requestID string) error {
	return jobs.NotifyRequestFiled(c.client, requestID)
}
