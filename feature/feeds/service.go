package feeds

import (
	"context"
	"errors"
	"fmt"

	"livesync/core/reconcile"
	"livesync/core/session"
	"livesync/feature/archive"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownFeed is returned for a feed name with no session.
	ErrUnknownFeed = errors.New("unknown feed")
	// ErrNotReady is returned when a feed has no snapshot yet.
	ErrNotReady = errors.New("feed not ready")
	// ErrArchiveDisabled is returned when no archive store is configured.
	ErrArchiveDisabled = errors.New("archiving disabled")
)

// Archives is the archive store used by the API.
type Archives interface {
	Save(ctx context.Context, feed string, snap *reconcile.Snapshot) (string, error)
	List(ctx context.Context, feed string) ([]archive.Entry, error)
}

// Service exposes the feed sessions to the HTTP layer.
type Service struct {
	sessions map[string]*session.Session
	order    []string
	archives Archives
	logger   *zap.Logger
}

// NewService creates a service over sessions. archives may be nil.
func NewService(logger *zap.Logger, archives Archives, sessions ...*session.Session) *Service {
	s := &Service{
		sessions: make(map[string]*session.Session, len(sessions)),
		archives: archives,
		logger:   logger,
	}
	for _, sess := range sessions {
		s.sessions[sess.Feed()] = sess
		s.order = append(s.order, sess.Feed())
	}
	return s
}

// Run drives every session until ctx is done or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		sess := s.sessions[name]
		g.Go(func() error {
			if err := sess.Run(gctx); err != nil {
				return fmt.Errorf("feed %s: %w", sess.Feed(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Names returns the feed names in configuration order.
func (s *Service) Names() []string {
	return s.order
}

// Statuses returns the status of every feed.
func (s *Service) Statuses() []session.Status {
	out := make([]session.Status, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.sessions[name].Status())
	}
	return out
}

// Session returns the named session.
func (s *Service) Session(name string) (*session.Session, error) {
	sess, ok := s.sessions[name]
	if !ok {
		return nil, ErrUnknownFeed
	}
	return sess, nil
}

// Resync asks the named feed to reload its snapshot.
func (s *Service) Resync(name string) error {
	sess, err := s.Session(name)
	if err != nil {
		return err
	}
	sess.Resync()
	return nil
}

// Archive stores the named feed's current snapshot.
func (s *Service) Archive(ctx context.Context, name string) (string, error) {
	if s.archives == nil {
		return "", ErrArchiveDisabled
	}
	sess, err := s.Session(name)
	if err != nil {
		return "", err
	}
	snap := sess.Snapshot()
	if snap == nil {
		return "", ErrNotReady
	}
	return s.archives.Save(ctx, name, snap)
}

// Archives lists the named feed's archives, newest first.
func (s *Service) Archives(ctx context.Context, name string) ([]archive.Entry, error) {
	if s.archives == nil {
		return nil, ErrArchiveDisabled
	}
	if _, err := s.Session(name); err != nil {
		return nil, err
	}
	return s.archives.List(ctx, name)
}
