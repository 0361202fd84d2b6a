package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/pkg/apperror"
)

const morePrefix = "more_"

// callbackDataLimit is Telegram's cap on callback data bytes.
const callbackDataLimit = 64

// EncodeMore builds the continuation token carried by the "show more" button.
func EncodeMore(category string, offset int) string {
	return morePrefix + category + "_" + strconv.Itoa(offset)
}

// DecodeMore reverses EncodeMore. Category keys contain underscores, so the
// offset is always the last segment.
func DecodeMore(data string) (string, int, error) {
	if !strings.HasPrefix(data, morePrefix) {
		return "", 0, fmt.Errorf("not a continuation token: %q", data)
	}
	rest := strings.TrimPrefix(data, morePrefix)
	cut := strings.LastIndex(rest, "_")
	if cut <= 0 {
		return "", 0, fmt.Errorf("malformed continuation token: %q", data)
	}

	offset, err := strconv.Atoi(rest[cut+1:])
	if err != nil || offset < 0 {
		return "", 0, fmt.Errorf("malformed continuation offset: %q", data)
	}
	category := rest[:cut]
	if !entity.IsValidCategory(category) {
		return "", 0, fmt.Errorf("unknown category in token: %q", data)
	}
	return category, offset, nil
}

// showPage renders one batch of a category. prev is the control message of
// the batch before, removed once the next batch is on screen.
func (b *Bot) showPage(ctx context.Context, req *request, category string, offset int, prev *MessageRef) error {
	page, err := b.projects.ListPage(ctx, category, offset)
	if err != nil {
		return err
	}

	if !page.First && len(page.Items) == 0 {
		return apperror.NotFound("No more projects")
	}

	if prev != nil {
		if err := b.transport.Delete(ctx, *prev); err != nil {
			b.logf(req, "⚠️ failed to delete previous page control: %v", err)
		}
	}

	if page.First {
		b.send(ctx, req, OutMessage{Text: pageHeader(category, page.Total)})
		if len(page.Items) == 0 {
			b.send(ctx, req, OutMessage{Text: "📭 This category has no projects yet."})
			return nil
		}
	}

	for _, card := range page.Items {
		b.send(ctx, req, OutMessage{
			Text:        projectCard(card),
			PhotoFileID: card.PhotoFileID,
			Inline:      openPanelKeyboard(card.ID),
		})
	}

	switch {
	case page.HasMore:
		from, to := page.ShownRange()
		b.send(ctx, req, OutMessage{
			Text:   fmt.Sprintf("Shown %d-%d of %d", from, to, page.Total),
			Inline: InlineKeyboard{{{Text: "⬇️ Show more", Data: EncodeMore(category, page.NextOffset)}}},
		})
	case !page.First:
		b.send(ctx, req, OutMessage{Text: "✅ All projects shown"})
	}
	return nil
}
