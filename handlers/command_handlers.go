package handlers

import (
	"context"
	"fmt"
	"strings"

	"studydeck/models"
)

const reportsPerPage = 10

// handleReports handles the logic for the /reports command.
func (h *Handler) handleReports(ctx context.Context, actor models.Actor, opts options) string {
	page := int64(1)
	if opt, ok := opts["page"]; ok {
		page = opt.IntValue()
	}
	if page < 1 {
		page = 1
	}

	reports, err := h.forum.Reports(ctx, actor, reportsPerPage, int(page-1)*reportsPerPage)
	if err != nil {
		return describe("reports", err)
	}
	if len(reports) == 0 {
		return "✅ The moderation queue is empty."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Moderation queue** (page %d)\n", page)
	for _, r := range reports {
		fmt.Fprintf(&b, "`%s` %s %s by user %d: %s\n", r.ID, statusIcon(r.Status), r.Target, r.ReporterID, r.Reason)
	}
	return b.String()
}

func statusIcon(s models.ReportStatus) string {
	if s == models.ReportPending {
		return "🟡"
	}
	return "🟢"
}

// handleResolve handles the logic for the /resolve command.
func (h *Handler) handleResolve(ctx context.Context, actor models.Actor, opts options) string {
	opt, ok := opts["report_id"]
	if !ok || strings.TrimSpace(opt.StringValue()) == "" {
		return "⚠️ A report ID is required."
	}
	id := strings.TrimSpace(opt.StringValue())
	if err := h.forum.ResolveReport(ctx, actor, id); err != nil {
		return describe("resolve", err)
	}
	return fmt.Sprintf("✅ Report `%s` resolved.", id)
}

// handleLock handles the logic for the /lock and /unlock commands.
func (h *Handler) handleLock(ctx context.Context, actor models.Actor, opts options, lock bool) string {
	opt, ok := opts["thread_id"]
	if !ok || opt.IntValue() < 1 {
		return "⚠️ A thread ID is required."
	}
	threadID := opt.IntValue()

	if lock {
		if err := h.forum.Lock(ctx, actor, threadID); err != nil {
			return describe("lock", err)
		}
		return fmt.Sprintf("🔒 Thread %d is locked.", threadID)
	}
	if err := h.forum.Unlock(ctx, actor, threadID); err != nil {
		return describe("unlock", err)
	}
	return fmt.Sprintf("🔓 Thread %d is unlocked.", threadID)
}
