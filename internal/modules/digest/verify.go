package digest

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
)

const VerifyJobName = "ledger-verify"

type LedgerAuditor interface {
	Overview(ctx context.Context) (*ledgerDto.Overview, error)
	Verify(ctx context.Context, projectID uint) (*ledgerDto.Verification, error)
}

// LedgerCheck replays every project's history and reports the ones whose
// stored score no longer matches it. A clean run posts nothing.
type LedgerCheck struct {
	auditor  LedgerAuditor
	poster   Poster
	schedule string
}

func NewLedgerCheck(auditor LedgerAuditor, poster Poster, schedule string) *LedgerCheck {
	return &LedgerCheck{auditor: auditor, poster: poster, schedule: schedule}
}

func (c *LedgerCheck) Name() string     { return VerifyJobName }
func (c *LedgerCheck) Schedule() string { return c.schedule }

func (c *LedgerCheck) Execute(ctx context.Context) error {
	overview, err := c.auditor.Overview(ctx)
	if err != nil {
		return fmt.Errorf("overview: %w", err)
	}

	var broken []string
	for _, p := range overview.Projects {
		v, err := c.auditor.Verify(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("verify project %d: %w", p.ID, err)
		}
		if !v.Consistent {
			broken = append(broken, fmt.Sprintf("• <b>%s</b>: score %d, history %d", html.EscapeString(p.Name), v.Score, v.HistorySum))
		}
	}

	if len(broken) == 0 {
		log.Printf("✅ [%s] %d projects consistent", VerifyJobName, len(overview.Projects))
		return nil
	}
	c.poster.Announce(ctx, "", "⚠️ <b>Ledger mismatch</b>\n\n"+strings.Join(broken, "\n"))
	return nil
}
