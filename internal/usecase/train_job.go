package usecase

import (
	"context"
	"errors"
	"time"

	"RiskPulse/pkg/queue"
)

// TrainJobType is the queue message type of a training request.
const TrainJobType = "risk.train"

// TrainRequest is the payload of a training job.
type TrainRequest struct {
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason"`
}

// TrainJob runs the model trainer for queued training requests.
type TrainJob struct {
	trainer *ModelTrainer
}

func NewTrainJob(t *ModelTrainer) *TrainJob { return &TrainJob{trainer: t} }

func (j *TrainJob) Name() string { return "model-trainer" }

func (j *TrainJob) Type() string { return TrainJobType }

// Handle trains the models. A request arriving while a run is active is
// satisfied by that run and is not retried.
func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	if _, err := queue.ParsePayload[TrainRequest](payload); err != nil {
		return err
	}
	_, err := j.trainer.Train(ctx)
	if errors.Is(err, ErrTrainingInProgress) {
		return nil
	}
	return err
}

// TrainScheduler enqueues training requests on a dispatcher.
type TrainScheduler struct {
	q queue.QueueService
}

func NewTrainScheduler(q queue.QueueService) *TrainScheduler { return &TrainScheduler{q: q} }

// RequestTraining enqueues a training job.
func (s *TrainScheduler) RequestTraining(ctx context.Context, reason string) error {
	return s.q.PublishMessage(ctx, TrainJobType, TrainRequest{RequestedAt: time.Now().UTC(), Reason: reason})
}
