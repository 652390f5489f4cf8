package render

import (
	"context"
	"fmt"

	"reelsmith/internal/batch"
	"reelsmith/internal/services"
)

// BatchEngine adapts the render client to the batch scheduler's engine
// surface. Item payloads must be resolved Requests.
type BatchEngine struct {
	client *Client
}

// NewBatchEngine wraps the client for use by a batch.Scheduler.
func NewBatchEngine(client *Client) *BatchEngine {
	return &BatchEngine{client: client}
}

// Submit enqueues one batch item on the render engine.
func (e *BatchEngine) Submit(ctx context.Context, _ batch.Class, item batch.Item) (string, error) {
	request, ok := item.Payload.(Request)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "render", "submit",
			fmt.Sprintf("item %s payload is not a render request", item.ID), nil)
	}
	return e.client.Submit(ctx, request)
}

// Poll reports the state of one queued batch item.
func (e *BatchEngine) Poll(ctx context.Context, _ batch.Class, token string) (batch.PollStatus, error) {
	status, err := e.client.Poll(ctx, token)
	if err != nil {
		return batch.PollStatus{}, err
	}
	return batch.PollStatus{
		Done:      status.Done,
		Progress:  status.Progress,
		OutputRef: status.OutputFile,
		Failure:   status.Error,
	}, nil
}
