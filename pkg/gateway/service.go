package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"concierge/pkg/bus"
	"concierge/pkg/channel"
	"concierge/pkg/completion"
	"concierge/pkg/flow"
	"concierge/pkg/metrics"
)

const eventBuffer = 64

// Dispatcher routes one guest message to its reply.
type Dispatcher interface {
	Handle(ctx context.Context, msg flow.Message) (flow.Reply, error)
}

// Runner is a long-lived component that stops when ctx is canceled, such as
// the admin panel.
type Runner interface {
	Run(ctx context.Context) error
}

// Options wires a Service. Events, Metrics and Admin are optional.
type Options struct {
	Address    string
	Dispatcher Dispatcher
	Channels   []channel.Adapter
	Events     *bus.Bus
	Metrics    *metrics.Metrics
	Admin      Runner
	Log        *slog.Logger
}

type Service struct {
	addr       string
	log        *slog.Logger
	dispatcher Dispatcher
	channels   []channel.Adapter
	events     *bus.Bus
	metrics    *metrics.Metrics
	admin      Runner

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Channels      map[string]channelState `json:"channels"`
}

func NewService(opts Options) (*Service, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if len(opts.Channels) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if opts.Address == "" {
		return nil, errors.New("status address is required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(opts.Channels))
	for _, adapter := range opts.Channels {
		if _, dup := channelStates[adapter.Name()]; dup {
			return nil, fmt.Errorf("channel %q registered twice", adapter.Name())
		}
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		addr:          opts.Address,
		log:           log.With("component", "gateway.service"),
		dispatcher:    opts.Dispatcher,
		channels:      opts.Channels,
		events:        opts.Events,
		metrics:       opts.Metrics,
		admin:         opts.Admin,
		channelStates: channelStates,
	}, nil
}

// Run serves every channel, the status server and the admin panel until ctx
// is canceled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	for _, adapter := range s.channels {
		s.channelStates[adapter.Name()] = channelState{Running: true}
	}
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runStatusServer(ctx)
	})

	if s.admin != nil {
		g.Go(func() error {
			return s.admin.Run(ctx)
		})
	}

	if s.metrics != nil && s.events != nil {
		events, unsubscribe := s.events.Subscribe(ctx, eventBuffer)
		g.Go(func() error {
			defer unsubscribe()
			s.metrics.Consume(ctx, events)
			return nil
		})
	}

	for _, adapter := range s.channels {
		g.Go(func() error {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	requestID := uuid.NewString()
	out := bus.OutboundMessage{
		Channel:  inbound.Channel,
		ChatID:   inbound.ChatID,
		Metadata: map[string]string{"request_id": requestID},
	}

	s.events.Publish(ctx, bus.Event{
		Type:      bus.EventMessageReceived,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		RequestID: requestID,
	})

	reply, err := s.dispatcher.Handle(ctx, flow.Message{
		Text:     inbound.Content,
		Channel:  inbound.Channel,
		ChatID:   inbound.ChatID,
		SenderID: inbound.SenderID,
	})
	out.Flow = reply.Flow
	if err != nil {
		s.events.Publish(ctx, bus.Event{
			Type:      bus.EventReplyFailed,
			Channel:   inbound.Channel,
			ChatID:    inbound.ChatID,
			RequestID: requestID,
			Payload:   map[string]string{bus.PayloadFlow: reply.Flow},
			Error:     err.Error(),
		})
		out.Error = completion.Fallback(completion.TopicConcierge, completion.CategoryFailed)
		return out, err
	}

	fallback := false
	if result := reply.Completion; result != nil {
		fallback = result.Fallback
		if s.metrics != nil {
			s.metrics.ObserveCompletion(result.Outcome(), result.Duration, result.Usage.PromptTokens, result.Usage.CompletionTokens)
		}
	}

	s.events.Publish(ctx, bus.Event{
		Type:      bus.EventReplySent,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		RequestID: requestID,
		Payload: map[string]string{
			bus.PayloadFlow:     reply.Flow,
			bus.PayloadFallback: strconv.FormatBool(fallback),
		},
	})

	out.Content = reply.Text
	out.Metadata["flow"] = reply.Flow
	return out, nil
}

// StatusHandler serves /healthz, /readyz and, when metrics are wired, /metrics.
func (s *Service) StatusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

func (s *Service) runStatusServer(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.StatusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}

	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Channels:      channels,
	}
}

// isReady reports whether at least one channel is serving guests.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
