// Package failure tracks consecutive per-user check failures and forces a
// logout once the tolerated maximum is exceeded.
package failure

import (
	"context"

	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// Directory is the slice of the user directory the accountant needs.
type Directory interface {
	IncrementFailedRequests(ctx context.Context, userID int64) (int, error)
	ResetFailedRequests(ctx context.Context, userID int64) error
	SetAuthenticated(ctx context.Context, userID int64, authenticated bool) error
}

// LogoutClient revokes a user's portal session remotely.
type LogoutClient interface {
	Logout(ctx context.Context, userID int64) error
}

// Notifier delivers the forced-logout notice to the user.
type Notifier interface {
	SendForcedLogout(ctx context.Context, userID int64) error
}

type Accountant struct {
	dir      Directory
	logout   LogoutClient
	notifier Notifier
	max      int
	log      logx.Logger
}

func NewAccountant(dir Directory, logout LogoutClient, notifier Notifier, max int, log logx.Logger) *Accountant {
	if max <= 0 {
		max = 50
	}
	return &Accountant{dir: dir, logout: logout, notifier: notifier, max: max, log: log}
}

// RecordFailure bumps the user's consecutive failure counter. Crossing the
// maximum de-authenticates the user: remote logout, notice, local flag, and a
// counter reset so a later login starts clean. The remote call and the notice
// are best effort; the local de-authentication is not.
func (a *Accountant) RecordFailure(ctx context.Context, userID int64) error {
	count, err := a.dir.IncrementFailedRequests(ctx, userID)
	if err != nil {
		return err
	}
	a.log.Debug("check failure recorded",
		logx.Int64("user", userID),
		logx.Int("count", count),
		logx.Int("max", a.max),
	)
	if count <= a.max {
		return nil
	}

	a.log.Warn("failure limit exceeded, forcing logout", logx.Int64("user", userID))
	if err := a.logout.Logout(ctx, userID); err != nil {
		a.log.Error("remote logout failed", logx.Int64("user", userID), logx.Err(err))
	}
	if err := a.notifier.SendForcedLogout(ctx, userID); err != nil {
		a.log.Error("forced-logout notice failed", logx.Int64("user", userID), logx.Err(err))
	}
	if err := a.dir.SetAuthenticated(ctx, userID, false); err != nil {
		return err
	}
	return a.dir.ResetFailedRequests(ctx, userID)
}

// RecordSuccess clears the user's consecutive failure counter.
func (a *Accountant) RecordSuccess(ctx context.Context, userID int64) error {
	return a.dir.ResetFailedRequests(ctx, userID)
}
