package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"livesync/core/codec"
	"livesync/core/fetch"
	"livesync/core/push"
	"livesync/core/reconcile"
	"livesync/core/utils"

	"go.uber.org/zap"
)

// ErrSourceClosed is returned by Run when the push channel stops on its own.
var ErrSourceClosed = errors.New("push channel closed")

// State is the lifecycle state of a session.
type State string

const (
	StateConnecting State = "connecting"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// Source delivers push events in arrival order. *push.Channel implements it.
type Source interface {
	Events() <-chan push.Event
}

// Archiver stores a snapshot when a session ends.
type Archiver interface {
	Save(ctx context.Context, feed string, snap *reconcile.Snapshot) (string, error)
}

// Config holds session behavior settings.
type Config struct {
	// MaxBuffered bounds notifications held while a snapshot load is in flight.
	MaxBuffered int
	// RetryInterval retries a failed snapshot load automatically. Zero disables it.
	RetryInterval time.Duration
	// ArchiveTimeout bounds the archive write on teardown.
	ArchiveTimeout time.Duration
	// Decode turns a push payload into a notification. Defaults to codec.Decode.
	Decode func([]byte) (reconcile.Notification, error)
}

// Status is a point-in-time view of a session for the API.
type Status struct {
	Feed      string          `json:"feed"`
	State     State           `json:"state"`
	Error     string          `json:"error,omitempty"`
	Version   uint64          `json:"version"`
	Entities  int             `json:"entities"`
	Buffered  int             `json:"buffered"`
	Dropped   int             `json:"dropped"`
	Since     time.Time       `json:"since"`
	LastLoad  time.Time       `json:"last_load,omitempty"`
	Stats     reconcile.Stats `json:"stats"`
	Connected bool            `json:"connected"`
}

// Session hosts one reconciler: it buffers notifications until the snapshot is
// loaded, replays them, applies live ones, and resyncs after reconnects.
// Initialize and Apply only ever run on the Run goroutine.
type Session struct {
	cfg        Config
	reconciler *reconcile.Reconciler
	loader     fetch.Loader
	source     Source
	publisher  *Publisher
	archiver   Archiver
	logger     *zap.Logger
	onState    func(feed string, state State)

	resync chan struct{}

	mu     sync.Mutex
	status Status
}

// Option configures a Session.
type Option func(*Session)

// WithArchiver archives the final snapshot when Run returns.
func WithArchiver(a Archiver) Option {
	return func(s *Session) {
		s.archiver = a
	}
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(feed string, state State)) Option {
	return func(s *Session) {
		s.onState = fn
	}
}

// New creates a session. Run must be called to start it.
func New(cfg Config, r *reconcile.Reconciler, loader fetch.Loader, source Source, logger *zap.Logger, opts ...Option) *Session {
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = 10000
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 10 * time.Second
	}
	if cfg.Decode == nil {
		cfg.Decode = codec.Decode
	}
	s := &Session{
		cfg:        cfg,
		reconciler: r,
		loader:     loader,
		source:     source,
		publisher:  NewPublisher(),
		logger:     logger.With(zap.String("feed", r.Feed())),
		resync:     make(chan struct{}, 1),
		status: Status{
			Feed:  r.Feed(),
			State: StateConnecting,
			Since: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed returns the feed name.
func (s *Session) Feed() string {
	return s.reconciler.Feed()
}

// Publisher returns the snapshot publisher.
func (s *Session) Publisher() *Publisher {
	return s.publisher
}

// Snapshot returns the latest published snapshot, or nil before the first load.
func (s *Session) Snapshot() *reconcile.Snapshot {
	return s.publisher.Latest()
}

// Status returns a copy of the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Stats = cloneStats(st.Stats)
	return st
}

// Resync asks the session to reload the full snapshot. It never blocks; a request
// made while one is pending is merged into it.
func (s *Session) Resync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

type loadResult struct {
	entities []reconcile.Entity
	err      error
}

// Run drives the session until ctx is done or the source closes.
func (s *Session) Run(ctx context.Context) error {
	var (
		pending    []reconcile.Notification
		dropped    int
		loading    bool
		again      bool
		connected  bool
		results    = make(chan loadResult, 1)
		retryTimer *time.Timer
		retryC     <-chan time.Time
	)
	defer func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
		s.teardown()
	}()

	startLoad := func() {
		if loading {
			// The in-flight load may predate what we missed; load once more after it.
			again = true
			return
		}
		loading = true
		if !s.reconciler.Initialized() {
			s.setState(StateLoading, "")
		}
		go func() {
			entities, err := s.loader.FetchSnapshot(ctx)
			results <- loadResult{entities: entities, err: err}
		}()
	}

	startLoad()
	events := s.source.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return ErrSourceClosed
			}
			switch ev.Type {
			case push.EventConnected:
				if connected || s.reconciler.Initialized() {
					s.logger.Info("Push channel reconnected, resyncing")
					startLoad()
				}
				connected = true
				s.update(func(st *Status) { st.Connected = true })

			case push.EventDisconnected:
				s.update(func(st *Status) { st.Connected = false })

			case push.EventMessage:
				n, err := s.cfg.Decode(ev.Payload)
				if err != nil {
					s.logger.Warn("Dropping undecodable message", zap.Error(err), zap.String("payload", utils.Truncate(string(ev.Payload), 256)))
					continue
				}
				if loading || !s.reconciler.Initialized() {
					if len(pending) >= s.cfg.MaxBuffered {
						pending = pending[1:]
						dropped++
						s.logger.Warn("Startup buffer full, dropping oldest notification", zap.Int("max", s.cfg.MaxBuffered))
					}
					pending = append(pending, n)
					s.update(func(st *Status) { st.Buffered = len(pending); st.Dropped = dropped })
					continue
				}
				s.apply(n)
			}

		case res := <-results:
			loading = false
			if res.err != nil {
				s.loadFailed(res.err)
				if !s.reconciler.Initialized() {
					if s.cfg.RetryInterval > 0 {
						retryTimer = time.NewTimer(s.cfg.RetryInterval)
						retryC = retryTimer.C
					}
					continue
				}
			} else {
				s.publisher.Publish(s.reconciler.Initialize(res.entities))
				s.update(func(st *Status) { st.LastLoad = time.Now(); st.Error = "" })
			}

			// Replay everything that arrived while the load was in flight.
			if len(pending) > 0 {
				s.logger.Info("Replaying buffered notifications", zap.Int("count", len(pending)))
			}
			for _, n := range pending {
				s.apply(n)
			}
			pending = nil
			s.update(func(st *Status) { st.Buffered = 0 })
			s.setState(StateReady, s.Status().Error)

			if again {
				again = false
				startLoad()
			}

		case <-retryC:
			retryC = nil
			startLoad()

		case <-s.resync:
			s.logger.Info("Resync requested")
			startLoad()
		}
	}
}

func (s *Session) apply(n reconcile.Notification) {
	snap := s.reconciler.Apply(n)
	if s.publisher.Publish(snap) {
		s.update(func(st *Status) {
			st.Version = snap.Version()
			st.Entities = snap.Len()
		})
	}
}

func (s *Session) loadFailed(err error) {
	if s.reconciler.Initialized() {
		// Keep serving the last good collection; live notifications still apply.
		s.logger.Error("Resync failed, keeping last snapshot", zap.Error(err))
		s.update(func(st *Status) { st.Error = err.Error() })
		return
	}
	s.logger.Error("Snapshot load failed", zap.Error(err))
	s.setState(StateFailed, err.Error())
}

func (s *Session) teardown() {
	s.setState(StateClosed, s.Status().Error)

	snap := s.publisher.Latest()
	if s.archiver == nil || snap == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ArchiveTimeout)
	defer cancel()
	key, err := s.archiver.Save(ctx, s.Feed(), snap)
	if err != nil {
		s.logger.Error("Failed to archive final snapshot", zap.Error(err))
		return
	}
	s.logger.Info("Final snapshot archived", zap.String("key", key))
}

func (s *Session) setState(state State, errMsg string) {
	s.mu.Lock()
	changed := s.status.State != state
	s.status.State = state
	s.status.Error = errMsg
	if snap := s.publisher.Latest(); snap != nil {
		s.status.Version = snap.Version()
		s.status.Entities = snap.Len()
	}
	s.status.Stats = s.reconciler.Stats()
	if changed {
		s.status.Since = time.Now()
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info("Session state changed", zap.String("state", string(state)))
		if s.onState != nil {
			s.onState(s.Feed(), state)
		}
	}
}

func (s *Session) update(fn func(st *Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.status.Stats = s.reconciler.Stats()
	s.mu.Unlock()
}

func cloneStats(st reconcile.Stats) reconcile.Stats {
	out := reconcile.Stats{
		Initializes: st.Initializes,
		Applied:     make(map[reconcile.Kind]int, len(st.Applied)),
		Anomalies:   make(map[reconcile.AnomalyType]int, len(st.Anomalies)),
	}
	for k, v := range st.Applied {
		out.Applied[k] = v
	}
	for k, v := range st.Anomalies {
		out.Anomalies[k] = v
	}
	return out
}
