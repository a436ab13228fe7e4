// Package moderation implements thread locking, soft deletion and the
// report queue, including per-reporter rate limiting.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"studydeck/models"
	"studydeck/notify"
	"studydeck/utils"

	"github.com/google/uuid"
)

const (
	DefaultReportLimit  = 3
	DefaultReportWindow = 5 * time.Minute
	DefaultStaffGroup   = "moderators"
)

// Store is the durable state the moderation flows act upon.
type Store interface {
	GetThread(ctx context.Context, id int64) (models.Thread, error)
	GetReply(ctx context.Context, id int64) (models.Reply, error)
	SetThreadLocked(ctx context.Context, id int64, locked bool) (bool, error)
	SetDeleted(ctx context.Context, target models.Target) (bool, error)
	InsertReportLimited(ctx context.Context, report models.Report, since time.Time, limit int) error
	ResolveReport(ctx context.Context, id string) (models.Report, error)
	ListReports(ctx context.Context, limit, offset int) ([]models.Report, error)
}

// Options tunes a Service. Zero values fall back to the defaults.
type Options struct {
	ReportLimit    int
	ReportWindow   time.Duration
	StaffRecipient string
	Now            func() time.Time
}

type Service struct {
	store    Store
	notifier notify.Notifier
	opts     Options
	reports  *utils.KeyedMutex
}

func NewService(store Store, notifier notify.Notifier, opts Options) *Service {
	if opts.ReportLimit <= 0 {
		opts.ReportLimit = DefaultReportLimit
	}
	if opts.ReportWindow <= 0 {
		opts.ReportWindow = DefaultReportWindow
	}
	if opts.StaffRecipient == "" {
		opts.StaffRecipient = DefaultStaffGroup
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Service{store: store, notifier: notifier, opts: opts, reports: utils.NewKeyedMutex()}
}

// Lock stops new replies on a thread. Locking a locked thread succeeds
// without side effects.
func (s *Service) Lock(ctx context.Context, actor models.Actor, threadID int64) error {
	return s.setLocked(ctx, actor, threadID, true)
}

// Unlock reopens a thread for replies.
func (s *Service) Unlock(ctx context.Context, actor models.Actor, threadID int64) error {
	return s.setLocked(ctx, actor, threadID, false)
}

func (s *Service) setLocked(ctx context.Context, actor models.Actor, threadID int64, locked bool) error {
	if !actor.IsStaff {
		return fmt.Errorf("%w: user %d cannot lock threads", models.ErrForbidden, actor.ID)
	}
	changed, err := s.store.SetThreadLocked(ctx, threadID, locked)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	utils.Info("moderation", "set_locked", fmt.Sprintf("thread %d locked=%t by user %d", threadID, locked, actor.ID))
	if locked {
		t, err := s.store.GetThread(ctx, threadID)
		if err != nil {
			utils.Warn("moderation", "notify", fmt.Sprintf("could not load thread %d for lock notice: %v", threadID, err))
			return nil
		}
		s.notify(ctx, strconv.FormatInt(t.AuthorID, 10), "Thread locked",
			fmt.Sprintf("Your thread %q was locked by a moderator. It no longer accepts replies.", t.Title))
	}
	return nil
}

// SoftDelete hides a thread or reply from listings and search. Only the
// author or staff may delete; deleting twice is a no-op.
func (s *Service) SoftDelete(ctx context.Context, actor models.Actor, target models.Target) error {
	author, err := s.author(ctx, target)
	if err != nil {
		return err
	}
	if !actor.CanModify(author) {
		return fmt.Errorf("%w: user %d cannot delete %s", models.ErrForbidden, actor.ID, target)
	}
	changed, err := s.store.SetDeleted(ctx, target)
	if err != nil {
		return err
	}
	if changed {
		utils.Info("moderation", "soft_delete", fmt.Sprintf("%s deleted by user %d", target, actor.ID))
	}
	return nil
}

func (s *Service) author(ctx context.Context, target models.Target) (int64, error) {
	switch target.Kind() {
	case models.KindThread:
		t, err := s.store.GetThread(ctx, target.ID())
		return t.AuthorID, err
	case models.KindReply:
		r, err := s.store.GetReply(ctx, target.ID())
		return r.AuthorID, err
	}
	return 0, fmt.Errorf("%w: %v", models.ErrInvalidTarget, target)
}

// FileReport queues a PENDING report against target. A reporter who filed
// ReportLimit reports within the trailing ReportWindow gets ErrRateLimited.
func (s *Service) FileReport(ctx context.Context, reporter models.Actor, target models.Target, reason string) (models.Report, error) {
	now := s.opts.Now()
	report, err := models.NewReport(uuid.NewString(), reporter.ID, target, reason, now)
	if err != nil {
		return models.Report{}, err
	}

	unlock := s.reports.Lock(strconv.FormatInt(reporter.ID, 10))
	err = s.store.InsertReportLimited(ctx, report, now.Add(-s.opts.ReportWindow), s.opts.ReportLimit)
	unlock()
	if err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			utils.Warn("moderation", "file_report", err.Error())
		}
		return models.Report{}, err
	}

	utils.Info("moderation", "file_report", fmt.Sprintf("report %s on %s by user %d", report.ID, target, reporter.ID))
	s.notify(ctx, s.opts.StaffRecipient, "New report",
		fmt.Sprintf("User %d reported %s: %s", reporter.ID, target, report.Reason))
	return report, nil
}

// ResolveReport closes a pending report. Resolving twice is an error so
// that double submissions surface to the operator.
func (s *Service) ResolveReport(ctx context.Context, actor models.Actor, reportID string) (models.Report, error) {
	if !actor.IsStaff {
		return models.Report{}, fmt.Errorf("%w: user %d cannot resolve reports", models.ErrForbidden, actor.ID)
	}
	r, err := s.store.ResolveReport(ctx, reportID)
	if err != nil {
		return models.Report{}, err
	}

	utils.Info("moderation", "resolve_report", fmt.Sprintf("report %s resolved by user %d", r.ID, actor.ID))
	s.notify(ctx, strconv.FormatInt(r.ReporterID, 10), "Report resolved",
		fmt.Sprintf("Your report on %s has been reviewed by a moderator.", r.Target))
	return r, nil
}

// Reports returns the moderation queue, pending first.
func (s *Service) Reports(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Report, error) {
	if !actor.IsStaff {
		return nil, fmt.Errorf("%w: user %d cannot read the report queue", models.ErrForbidden, actor.ID)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", models.ErrInvalidFilter, offset)
	}
	return s.store.ListReports(ctx, limit, offset)
}

func (s *Service) notify(ctx context.Context, recipient, subject, body string) {
	if err := s.notifier.Notify(ctx, recipient, subject, body); err != nil {
		utils.Warn("moderation", "notify", fmt.Sprintf("notice %q to %s failed: %v", subject, recipient, err))
	}
}
