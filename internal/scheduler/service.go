// Package scheduler drives the endless check cycle: probe the shared news
// state, fan out per-user resource checks, reconcile stored baselines with
// the users' notification toggles, and sleep until the next cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/orioks-monitoring/checking/internal/eventbus"
	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
	"github.com/orioks-monitoring/checking/internal/userdir"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// Checker runs the per-user resource checks.
type Checker interface {
	CheckMarks(ctx context.Context, userID int64) error
	CheckHomeworks(ctx context.Context, userID int64) error
	CheckRequests(ctx context.Context, userID int64) error
	ProbeNews(ctx context.Context, userID int64) (parse.ActualNews, error)
	CheckNewsFromProbe(ctx context.Context, userID int64, actual parse.ActualNews) error
}

// Users is the directory slice the scheduler reads. News fans out over every
// subscriber; only probe candidates must hold a live portal session.
type Users interface {
	AuthenticatedIDs(ctx context.Context) ([]int64, error)
	NewsSubscriberIDs(ctx context.Context) ([]int64, error)
	AuthenticatedNewsSubscriberIDs(ctx context.Context) ([]int64, error)
	Settings(ctx context.Context, userID int64) (userdir.Settings, error)
}

// Failures accounts check outcomes per user per cycle.
type Failures interface {
	RecordFailure(ctx context.Context, userID int64) error
	RecordSuccess(ctx context.Context, userID int64) error
}

// Snapshots is the baseline-store slice used for reconciliation.
type Snapshots interface {
	Delete(ctx context.Context, userID int64, collection, section string) error
	DeleteCollection(ctx context.Context, userID int64, collection string) error
}

// Notifier delivers operator alerts.
type Notifier interface {
	SendToAdmins(ctx context.Context, text string) error
}

type Config struct {
	// Schedule is the cycle trigger; see ParseSchedule.
	Schedule string
	// NewsProbeAttempts bounds how many subscribers are tried for the shared
	// news probe before the cycle runs without news.
	NewsProbeAttempts int
}

type Service struct {
	mu        sync.Mutex
	spec      ParsedSpec
	attempts  int
	checker   Checker
	users     Users
	failures  Failures
	snapshots Snapshots
	notifier  Notifier
	bus       eventbus.Bus
	log       logx.Logger
}

func New(cfg Config, checker Checker, users Users, failures Failures, snapshots Snapshots, notifier Notifier, bus eventbus.Bus, log logx.Logger) (*Service, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "1s"
	}
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.NewsProbeAttempts <= 0 {
		cfg.NewsProbeAttempts = 10
	}
	return &Service{
		spec:      spec,
		attempts:  cfg.NewsProbeAttempts,
		checker:   checker,
		users:     users,
		failures:  failures,
		snapshots: snapshots,
		notifier:  notifier,
		bus:       bus,
		log:       log,
	}, nil
}

// SetSchedule re-parses and swaps the cycle trigger. An invalid schedule is
// rejected and the running one stays in effect.
func (s *Service) SetSchedule(raw string) error {
	if raw == "" {
		raw = "1s"
	}
	spec, err := ParseSchedule(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.spec = spec
	s.mu.Unlock()
	return nil
}

func (s *Service) nextRun(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec.Next(now)
}

// Run loops cycles until ctx is canceled. Start and stop are announced to the
// operators; a cycle failure never stops the loop.
func (s *Service) Run(ctx context.Context) error {
	if err := s.notifier.SendToAdmins(ctx, "🚀 Checking started"); err != nil {
		s.log.Warn("start notice failed", logx.Err(err))
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.SendToAdmins(dctx, "🛑 Checking stopped"); err != nil {
			s.log.Warn("stop notice failed", logx.Err(err))
		}
	}()

	for {
		started := time.Now()
		s.runCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		next := s.nextRun(time.Now())
		s.log.Debug("cycle finished",
			logx.Duration("took", time.Since(started)),
			logx.Time("next", next),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	probe := s.probeNews(ctx)

	ids, err := s.users.AuthenticatedIDs(ctx)
	if err != nil {
		s.log.Error("user listing failed", logx.Err(err))
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.checkUser(ctx, id)
		}()
	}

	// News rides the shared probe result, so delivery covers every
	// subscriber, with or without a live portal session.
	if probe != nil {
		subs, err := s.users.NewsSubscriberIDs(ctx)
		if err != nil {
			s.log.Error("news subscriber listing failed", logx.Err(err))
		}
		for _, id := range subs {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.deliverNews(ctx, id, *probe)
			}()
		}
	}
	wg.Wait()

	s.reconcile(ctx, ids)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleFinished})
}

// deliverNews pushes the probed news state to one subscriber. News errors are
// triaged like any check error but never feed the per-user failure verdict.
func (s *Service) deliverNews(ctx context.Context, userID int64, probe parse.ActualNews) {
	if err := s.checker.CheckNewsFromProbe(ctx, userID, probe); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.handleCheckError(ctx, userID, string(model.ResourceNews), err)
	}
}

// probeNews fetches the shared news state once, trying random subscribers
// until one succeeds or the attempt budget is spent. A failed probe counts
// against the probed user like any other check failure.
func (s *Service) probeNews(ctx context.Context) *parse.ActualNews {
	ids, err := s.users.AuthenticatedNewsSubscriberIDs(ctx)
	if err != nil {
		s.log.Error("news subscriber listing failed", logx.Err(err))
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	attempts := s.attempts
	if attempts > len(ids) {
		attempts = len(ids)
	}

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return nil
		}
		userID := ids[i]
		actual, err := s.checker.ProbeNews(ctx, userID)
		if err == nil {
			return &actual
		}
		s.handleCheckError(ctx, userID, "news-probe", err)
		if portal.IsCheckFailure(err) {
			if aerr := s.failures.RecordFailure(ctx, userID); aerr != nil {
				s.log.Error("failure accounting failed", logx.Int64("user", userID), logx.Err(aerr))
			}
		}
	}
	s.log.Warn("news probe exhausted, cycle runs without news", logx.Int("attempts", attempts))
	return nil
}

// checkUser runs every enabled per-session check for one user and records
// exactly one failure or one success for the whole pass. News is delivered
// separately and does not count here.
func (s *Service) checkUser(ctx context.Context, userID int64) {
	settings, err := s.users.Settings(ctx, userID)
	if err != nil {
		s.log.Error("settings load failed", logx.Int64("user", userID), logx.Err(err))
		return
	}

	failed := false
	run := func(kind string, fn func(context.Context, int64) error) {
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx, userID); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			failed = true
			s.handleCheckError(ctx, userID, kind, err)
		}
	}

	if settings.Marks {
		run(string(model.ResourceMarks), s.checker.CheckMarks)
	}
	if settings.Homeworks {
		run(string(model.ResourceHomeworks), s.checker.CheckHomeworks)
	}
	if settings.Requests {
		run(string(model.ResourceRequests), s.checker.CheckRequests)
	}

	if ctx.Err() != nil {
		return
	}
	var aerr error
	if failed {
		aerr = s.failures.RecordFailure(ctx, userID)
	} else {
		aerr = s.failures.RecordSuccess(ctx, userID)
	}
	if aerr != nil {
		s.log.Error("failure accounting failed", logx.Int64("user", userID), logx.Err(aerr))
	}
}

// reconcile drops stored baselines for resource kinds the user has switched
// off, so re-enabling a kind starts from a cold baseline instead of flooding
// with stale diffs.
func (s *Service) reconcile(ctx context.Context, ids []int64) {
	for _, userID := range ids {
		if ctx.Err() != nil {
			return
		}
		settings, err := s.users.Settings(ctx, userID)
		if err != nil {
			s.log.Error("settings load failed", logx.Int64("user", userID), logx.Err(err))
			continue
		}
		drop := func(enabled bool, collection string) {
			if enabled {
				return
			}
			if err := s.snapshots.DeleteCollection(ctx, userID, collection); err != nil {
				s.log.Error("baseline reconcile failed",
					logx.Int64("user", userID),
					logx.String("collection", collection),
					logx.Err(err),
				)
			}
		}
		drop(settings.Marks, string(model.ResourceMarks))
		drop(settings.Homeworks, string(model.ResourceHomeworks))
		drop(settings.News, string(model.ResourceNews))
		drop(settings.Requests, string(model.ResourceRequests))
	}
}

func (s *Service) handleCheckError(ctx context.Context, userID int64, kind string, err error) {
	var se *portal.StatusError
	switch {
	case errors.As(err, &se):
		if se.Status == http.StatusGatewayTimeout {
			s.log.Warn("portal under maintenance",
				logx.Int64("user", userID), logx.String("check", kind))
			return
		}
		text := fmt.Sprintf("⚠️ Portal returned <code>%d</code> during %s check for user <code>%d</code>",
			se.Status, kind, userID)
		if se.Raw != "" {
			text += fmt.Sprintf("\n<pre>%s</pre>", truncate(se.Raw, 1000))
		}
		if aerr := s.notifier.SendToAdmins(ctx, text); aerr != nil {
			s.log.Error("admin alert failed", logx.Err(aerr))
		}
	case errors.Is(err, portal.ErrTimeout):
		s.log.Warn("portal not responding",
			logx.Int64("user", userID), logx.String("check", kind))
	case portal.IsCheckFailure(err):
		s.log.Warn("check failed",
			logx.Int64("user", userID), logx.String("check", kind), logx.Err(err))
	default:
		s.log.Error("unexpected check error",
			logx.Int64("user", userID), logx.String("check", kind), logx.Err(err))
		text := fmt.Sprintf("❗ Unexpected error during %s check for user <code>%d</code>:\n<code>%v</code>",
			kind, userID, err)
		if aerr := s.notifier.SendToAdmins(ctx, text); aerr != nil {
			s.log.Error("admin alert failed", logx.Err(aerr))
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
