package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// NotifyProgress imprime el estado de cada challenge.
func (c *Console) NotifyProgress(_ context.Context, progress []domain.Progress) error {
	if len(progress) == 0 {
		fmt.Fprintf(c.out, "[%s] no challenges found\n", c.now().Format("15:04:05"))
		return nil
	}
	if c.table {
		return c.printTable(progress)
	}
	c.printCompact(progress)
	return nil
}

// printCompact imprime una línea por challenge.
func (c *Console) printCompact(progress []domain.Progress) {
	var sb strings.Builder
	for _, p := range progress {
		ch := p.Challenge
		fmt.Fprintf(&sb, "[%s] %s %s P%d %s bal$%s pnl%s%% tgt$%s picks%d/%d days%d/%d",
			c.now().Format("15:04:05"),
			shortID(ch.ID), ch.TierID, ch.Phase, statusLabel(ch),
			ch.CurrentBalance.StringFixed(2),
			p.ProfitPct.StringFixed(2),
			p.RemainingTarget.StringFixed(2),
			p.Activity.PicksPlaced, p.Activity.PicksPlaced+p.PicksRemaining,
			p.Activity.ActiveDays, p.Activity.ActiveDays+p.DaysRemaining,
		)
		if ch.IsActive() {
			fmt.Fprintf(&sb, " left %s", formatDuration(p.TimeRemaining))
		}
		sb.WriteByte('\n')
	}
	fmt.Fprint(c.out, sb.String())
}

func (c *Console) printTable(progress []domain.Progress) error {
	table := tablewriter.NewWriter(c.out)
	table.Header("Challenge", "User", "Tier", "Phase", "Status", "Balance", "Profit %", "To target", "Picks", "Days", "Stake", "Loss left", "Time left")
	for _, p := range progress {
		ch := p.Challenge
		left := "-"
		if ch.IsActive() {
			left = formatDuration(p.TimeRemaining)
		}
		if err := table.Append(
			shortID(ch.ID),
			ch.UserID,
			ch.TierID,
			fmt.Sprintf("%d", ch.Phase),
			statusLabel(ch),
			ch.CurrentBalance.StringFixed(2),
			p.ProfitPct.StringFixed(2),
			p.RemainingTarget.StringFixed(2),
			fmt.Sprintf("%d/%d", p.Activity.PicksPlaced, p.Activity.PicksPlaced+p.PicksRemaining),
			fmt.Sprintf("%d/%d", p.Activity.ActiveDays, p.Activity.ActiveDays+p.DaysRemaining),
			fmt.Sprintf("%s-%s", p.MinStake.StringFixed(2), p.MaxStake.StringFixed(2)),
			fmt.Sprintf("d%s t%s", p.DailyLossHeadroom.StringFixed(2), p.TotalLossHeadroom.StringFixed(2)),
			left,
		); err != nil {
			return fmt.Errorf("notify.printTable: %w", err)
		}
	}
	return table.Render()
}

// PrintLedger imprime el historial diario de un challenge.
func (c *Console) PrintLedger(challengeID string, days []domain.DailyLedger) error {
	fmt.Fprintf(c.out, "\nDaily ledger for %s\n", challengeID)
	if len(days) == 0 {
		fmt.Fprintln(c.out, "  no activity yet")
		return nil
	}
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Date", "Start$", "PnL", "Placed", "Settled")
	for _, d := range days {
		if err := tbl.Append(
			d.Day.Format("2006-01-02"),
			d.DayStartBalance.StringFixed(2),
			d.RealizedPnL.StringFixed(2),
			fmt.Sprintf("%d", d.BetsPlaced),
			fmt.Sprintf("%d", d.BetsSettled),
		); err != nil {
			return fmt.Errorf("notify.PrintLedger: %w", err)
		}
	}
	return tbl.Render()
}

func statusLabel(ch domain.Challenge) string {
	if ch.FailReason != domain.FailNone {
		return fmt.Sprintf("%s (%s)", ch.Status, ch.FailReason)
	}
	return string(ch.Status)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// formatDuration muestra el tiempo restante como "3d 04h" o "45m".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %02dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, int(d%time.Hour/time.Minute))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}
