package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"livesync/core/auth"
	"livesync/core/codec"
	"livesync/core/config"
	"livesync/core/fetch"
	"livesync/core/push"
	"livesync/core/reconcile"
	"livesync/core/session"

	"go.uber.org/zap"
)

// Deps are the collaborators shared by every feed session.
type Deps struct {
	Credentials auth.Credentials
	HTTPClient  *http.Client
	Recorders   reconcile.Recorders
	// StateHook is called on every session state change.
	StateHook func(feed string, state session.State)
	// OnPublish is subscribed to every session's publisher.
	OnPublish func(feed string, snap *reconcile.Snapshot)
	// Archiver stores the final snapshot when a session ends. Nil disables it.
	Archiver session.Archiver
	Logger   *zap.Logger
}

// Open authorizes each enabled feed, dials its push channel and returns its session.
// The returned close function shuts the push channels down.
func Open(ctx context.Context, feeds []config.NamedFeed, deps Deps) ([]*session.Session, func(), error) {
	var (
		sessions []*session.Session
		channels []*push.Channel
	)
	closeAll := func() {
		for _, ch := range channels {
			ch.Close()
		}
	}

	for _, f := range feeds {
		if !f.Enabled {
			continue
		}
		logger := deps.Logger.With(zap.String("feed", f.Name))

		claims, err := auth.Authorize(deps.Credentials, f.RequiredRole, time.Now())
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("feed %s: %w", f.Name, err)
		}
		if claims != nil {
			logger.Debug("Credentials accepted", zap.String("subject", claims.Subject), zap.Strings("roles", claims.Roles))
		}

		r := reconcile.New(f.Name, deps.Logger,
			reconcile.WithPlacement(reconcile.Placement(f.Placement)),
			reconcile.WithRecorder(deps.Recorders),
		)
		loader := fetch.NewHTTPLoader(fetch.Config{
			URL:        f.SnapshotURL,
			PageSize:   f.PageSize,
			ItemsField: f.ItemsField,
			Timeout:    time.Duration(f.TimeoutSeconds) * time.Second,
		}, deps.Credentials, deps.HTTPClient, logger)
		ch := push.Dial(ctx, push.Config{
			URL:        f.PushURL,
			TokenParam: f.TokenParam,
		}, deps.Credentials, logger)
		channels = append(channels, ch)

		var opts []session.Option
		if deps.StateHook != nil {
			opts = append(opts, session.WithStateHook(deps.StateHook))
		}
		if deps.Archiver != nil {
			opts = append(opts, session.WithArchiver(deps.Archiver))
		}
		s := session.New(session.Config{
			MaxBuffered:   f.MaxBuffered,
			RetryInterval: time.Duration(f.RetrySeconds) * time.Second,
			Decode:        codec.DecoderFor(codec.Format(f.MessageFormat)),
		}, r, loader, ch, deps.Logger, opts...)

		if deps.OnPublish != nil {
			name := f.Name
			s.Publisher().Subscribe(func(snap *reconcile.Snapshot) {
				deps.OnPublish(name, snap)
			})
		}
		sessions = append(sessions, s)
	}

	return sessions, closeAll, nil
}
