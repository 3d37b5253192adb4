package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/metrics"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
	"github.com/carmasterapp/car-master/internal/util"
)

const persistTimeout = 5 * time.Second

// ActivationRecorder writes activation events to the log immediately and
// persists them in the background. Record never blocks the caller; when the
// queue is full the event is dropped after it has been logged.
type ActivationRecorder struct {
	repo  repository.ActivationLogRepository
	queue chan model.ActivationLog
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewActivationRecorder(repo repository.ActivationLogRepository, queueSize int) *ActivationRecorder {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &ActivationRecorder{
		repo:  repo,
		queue: make(chan model.ActivationLog, queueSize),
		done:  make(chan struct{}),
	}
}

func (r *ActivationRecorder) Record(entry model.ActivationLog) {
	log.Info().
		Str("audit", "activation").
		Str("event_type", string(EventCodeActivated)).
		Str("code", util.MaskCode(entry.Code)).
		Str("device_id", util.MaskDevice(entry.DeviceID)).
		Str("ip", entry.IP).
		Str("user_agent", entry.UserAgent).
		Str("country", entry.Country).
		Time("timestamp", entry.CreatedAt).
		Msg("premium code activated")

	select {
	case r.queue <- entry:
	default:
		metrics.RecordAuditDropped()
		log.Warn().Str("code", util.MaskCode(entry.Code)).Msg("audit queue full, activation event not persisted")
	}
}

func (r *ActivationRecorder) Start() {
	r.wg.Add(1)
	go r.run()
	log.Info().Int("queue_size", cap(r.queue)).Msg("activation recorder started")
}

// Stop drains queued events and waits for the worker to exit.
func (r *ActivationRecorder) Stop() {
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()
		log.Info().Msg("activation recorder stopped")
	})
}

func (r *ActivationRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case entry := <-r.queue:
			r.persist(entry)
		case <-r.done:
			for {
				select {
				case entry := <-r.queue:
					r.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *ActivationRecorder) persist(entry model.ActivationLog) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &entry); err != nil {
		metrics.RecordAuditPersistError()
		log.Error().Err(err).Str("code", util.MaskCode(entry.Code)).Msg("failed to persist activation event")
	}
}
