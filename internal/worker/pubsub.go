package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the refresh subscription.
const (
	JobStationRefresh = "station_refresh"
	JobFullRefresh    = "full_refresh"
)

// Message errors. Messages failing with these are acknowledged since
// redelivery cannot succeed.
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownJob       = errors.New("unknown job type")
)

// RefreshMessage is a refresh request published to the subscription.
type RefreshMessage struct {
	JobType    string `json:"job_type"`
	StationIDs []int  `json:"station_ids,omitempty"`
}

// Dispatcher runs the refresh requested by a message.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher driving job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle decodes data and runs the requested refresh. It fails when the
// message is malformed, names an unknown job, or when more stations failed
// than succeeded.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) (RefreshResult, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var (
		result RefreshResult
		err    error
	)
	switch msg.JobType {
	case JobStationRefresh:
		if len(msg.StationIDs) == 0 {
			result = d.job.Run(ctx)
		} else {
			result = d.job.RunStations(ctx, msg.StationIDs)
		}
	case JobFullRefresh:
		result, err = d.job.RunAll(ctx)
	default:
		return RefreshResult{}, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	if err != nil {
		return result, err
	}

	if result.Failed > result.Successful {
		return result, fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Stations)
	}
	return result, nil
}

// PubSubHandler receives refresh requests from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Refresh passes are long; process one at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Time("publish_time", msg.PublishTime).
		Logger()

	result, err := h.dispatcher.Handle(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("refresh job failed")
		msg.Nack()
	default:
		logger.Info().
			Dur("duration", result.Duration).
			Int("successful", result.Successful).
			Int("failed", result.Failed).
			Msg("refresh job completed")
		msg.Ack()
	}
}
