package notify

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsfeed/internal/domain/entity"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 5 * time.Minute
	workerPoolTimeout       = 5 * time.Second
	sendTimeout             = 30 * time.Second
)

// Service is the Status Transitioner's BREAKING event hook (spec.md §9): a
// fire-and-forget, multi-channel dispatcher. NotifyBreaking never blocks its
// caller and never propagates a channel failure — failures are logged and
// folded into that channel's circuit breaker state instead.
type Service interface {
	// NotifyBreaking announces a story's promotion to BREAKING on every
	// enabled channel.
	NotifyBreaking(ctx context.Context, story *entity.Story) error

	// NotifyTransition records a VERIFIED or DEVELOPING transition at
	// debug level only — these don't warrant a channel dispatch, just
	// observability.
	NotifyTransition(ctx context.Context, story *entity.Story, event Event)

	// GetChannelHealth reports each channel's enabled/circuit-breaker state,
	// for the admin health surface.
	GetChannelHealth() []ChannelHealthStatus

	// Shutdown waits for in-flight sends to finish or ctx to expire.
	Shutdown(ctx context.Context) error
}

// ChannelHealthStatus is one channel's health row for the admin surface.
type ChannelHealthStatus struct {
	Name               string
	Enabled            bool
	CircuitBreakerOpen bool
	DisabledUntil      *time.Time
}

type channelHealth struct {
	mu                  sync.Mutex
	consecutiveFailures int
	disabledUntil       time.Time
}

type service struct {
	channels       []Channel
	workerPool     chan struct{}
	health         map[string]*channelHealth
	healthMu       sync.RWMutex
	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewService builds a Service over the given channels, bounding concurrent
// sends at maxConcurrent.
func NewService(channels []Channel, maxConcurrent int) Service {
	shutdownCtx, cancel := context.WithCancel(context.Background())
	svc := &service{
		channels:       channels,
		workerPool:     make(chan struct{}, maxConcurrent),
		health:         make(map[string]*channelHealth),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: cancel,
	}
	for _, ch := range channels {
		svc.health[ch.Name()] = &channelHealth{}
	}
	return svc
}

func (s *service) NotifyBreaking(ctx context.Context, story *entity.Story) error {
	if story == nil {
		return ErrInvalidStory
	}

	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
	}

	enabled := 0
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			enabled++
		}
	}
	setChannelsEnabled(float64(enabled))
	if enabled == 0 {
		slog.Debug("no notification channels enabled", slog.String("request_id", requestID), slog.String("story_id", story.ID))
		return nil
	}

	slog.Info("dispatching breaking story notification",
		slog.String("request_id", requestID),
		slog.String("story_id", story.ID),
		slog.Int("enabled_channels", enabled))

	for _, ch := range s.channels {
		if !ch.IsEnabled() {
			continue
		}
		channel := ch
		s.wg.Add(1)
		go s.send(requestID, channel, story, EventBreaking)
	}
	return nil
}

func (s *service) NotifyTransition(_ context.Context, story *entity.Story, event Event) {
	if story == nil {
		return
	}
	slog.Debug("story transition",
		slog.String("story_id", story.ID),
		slog.String("event", string(event)),
		slog.Int("source_count", story.SourceCount))
}

type contextKey string

const requestIDKey contextKey = "request_id"

func (s *service) send(requestID string, channel Channel, story *entity.Story, event Event) {
	defer s.wg.Done()

	activeGoroutines.Inc()
	defer activeGoroutines.Dec()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in notification channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	case <-time.After(workerPoolTimeout):
		slog.Warn("notification dropped: worker pool full", slog.String("request_id", requestID), slog.String("channel", channel.Name()))
		recordDropped(channel.Name(), "pool_full")
		return
	}

	health := s.channelHealthFor(channel.Name())
	health.mu.Lock()
	if time.Now().Before(health.disabledUntil) {
		health.mu.Unlock()
		recordDropped(channel.Name(), "circuit_open")
		return
	}
	health.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.shutdownCtx, sendTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	start := time.Now()
	recordDispatch(channel.Name())
	err := channel.Send(ctx, story, event)
	duration := time.Since(start)

	health.mu.Lock()
	if err != nil {
		health.consecutiveFailures++
		if health.consecutiveFailures >= circuitBreakerThreshold {
			health.disabledUntil = time.Now().Add(circuitBreakerTimeout)
			recordCircuitBreakerOpen(channel.Name())
		}
	} else {
		health.consecutiveFailures = 0
	}
	health.mu.Unlock()

	if err != nil {
		recordFailure(channel.Name(), duration)
		slog.Warn("channel notification failed",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.String("story_id", story.ID),
			slog.Any("error", err))
		return
	}
	recordSuccess(channel.Name(), duration)
}

func (s *service) channelHealthFor(name string) *channelHealth {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.health[name]
}

func (s *service) GetChannelHealth() []ChannelHealthStatus {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, ch := range s.channels {
		health := s.health[ch.Name()]
		health.mu.Lock()
		var disabledUntil *time.Time
		open := time.Now().Before(health.disabledUntil)
		if open {
			until := health.disabledUntil
			disabledUntil = &until
		}
		health.mu.Unlock()

		statuses = append(statuses, ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: open,
			DisabledUntil:      disabledUntil,
		})
	}
	return statuses
}

func (s *service) Shutdown(ctx context.Context) error {
	s.shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
