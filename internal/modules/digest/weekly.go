package digest

import (
	"context"
	"fmt"
	"html"
	"strings"

	"kmbp.app/ratingbot/internal/entity"
	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
)

const WeeklyJobName = "weekly-digest"

type WeeklySource interface {
	WeeklyTop(ctx context.Context) ([]ledgerDto.WeeklyEntry, error)
}

// WeeklyDigest posts the trailing week's biggest movers to the general log topic.
type WeeklyDigest struct {
	source   WeeklySource
	poster   Poster
	schedule string
}

func NewWeeklyDigest(source WeeklySource, poster Poster, schedule string) *WeeklyDigest {
	return &WeeklyDigest{source: source, poster: poster, schedule: schedule}
}

func (d *WeeklyDigest) Name() string     { return WeeklyJobName }
func (d *WeeklyDigest) Schedule() string { return d.schedule }

func (d *WeeklyDigest) Execute(ctx context.Context) error {
	entries, err := d.source.WeeklyTop(ctx)
	if err != nil {
		return fmt.Errorf("weekly top: %w", err)
	}
	d.poster.Announce(ctx, "", renderWeekly(entries))
	return nil
}

func renderWeekly(entries []ledgerDto.WeeklyEntry) string {
	if len(entries) == 0 {
		return "📊 <b>Weekly digest</b>\n\nNo score changes in the last 7 days."
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>Weekly digest</b> (last 7 days)\n\n")
	for i, e := range entries {
		title, ok := entity.CategoryTitle(e.Category)
		if !ok {
			title = e.Category
		}
		fmt.Fprintf(&sb, "%d. <b>%s</b> (%s): %+d\n", i+1, html.EscapeString(e.Name), html.EscapeString(title), e.Total)
	}
	return strings.TrimRight(sb.String(), "\n")
}
