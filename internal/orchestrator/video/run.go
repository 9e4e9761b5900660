package video

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/pgmq"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/service"

	"github.com/rs/zerolog"
)

// maxDeliveries bounds how often a message that keeps failing is retried
// before it is archived.
const maxDeliveries = 5

// Queue is the part of the pgmq client the orchestrator consumes.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, vtSec, maxMessages, pollSec int) ([]*pgmq.Message, error)
	Delete(ctx context.Context, queue string, msgIDs []int64) error
	Archive(ctx context.Context, queue string, msgID int64) error
}

// Options configures the poll loop.
type Options struct {
	QueueName     string
	VisibilitySec int
	PollSec       int
	MaxMessages   int
}

// Run starts the video orchestrator. It returns nil once ctx is cancelled.
func Run(ctx context.Context, logger zerolog.Logger, client Queue, generation service.GenerationService, opts Options) error {
	logger = logger.With().Str("orchestrator", "video").Str("queue", opts.QueueName).Logger()
	logger.Info().Msg("Starting video orchestrator")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down video orchestrator")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, opts.QueueName, opts.VisibilitySec, opts.MaxMessages, opts.PollSec)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading video queue")
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			handle(ctx, logger, client, generation, opts.QueueName, msg)
		}
	}
}

func handle(ctx context.Context, logger zerolog.Logger, client Queue, generation service.GenerationService, queue string, msg *pgmq.Message) {
	log := logger.With().Int64("msg_id", msg.ID).Int("read_ct", msg.ReadCount).Logger()

	var job service.VideoJobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil || job.JobID == "" {
		log.Error().Err(err).Str("payload", string(msg.Data)).Msg("Malformed video job message, archiving")
		archive(ctx, log, client, queue, msg.ID)
		return
	}
	log = log.With().Str("job_id", job.JobID).Logger()

	if err := generation.ProcessVideoJob(ctx, job.JobID); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("Interrupted, job will be redelivered")
			return
		}
		if msg.ReadCount >= maxDeliveries {
			log.Error().Err(err).Msg("Video job keeps failing, archiving")
			archive(ctx, log, client, queue, msg.ID)
			return
		}
		// left in the queue; visible again after the visibility timeout
		log.Warn().Err(err).Msg("Video job failed, will retry")
		return
	}

	if err := client.Delete(context.WithoutCancel(ctx), queue, []int64{msg.ID}); err != nil {
		log.Error().Err(err).Msg("Error deleting video message")
	}
}

func archive(ctx context.Context, log zerolog.Logger, client Queue, queue string, id int64) {
	if err := client.Archive(context.WithoutCancel(ctx), queue, id); err != nil {
		log.Error().Err(err).Msg("Error archiving video message")
	}
}
