package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kmbp.app/ratingbot/internal/entity"
	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
)

// Topics addresses the admin chat's log threads. A zero General topic sends
// cards to the chat itself.
type Topics struct {
	ChatID     int64
	General    int
	Categories map[string]int
}

// Announcer posts a log card for every committed mutation. Delivery is best
// effort: failures are logged and never reach the user who triggered them.
type Announcer struct {
	transport Transport
	topics    Topics
}

func NewAnnouncer(transport Transport, topics Topics) *Announcer {
	return &Announcer{transport: transport, topics: topics}
}

// Announce sends text to the general topic and then to the category topic.
func (a *Announcer) Announce(ctx context.Context, category, text string) {
	if a == nil || a.topics.ChatID == 0 {
		return
	}

	a.post(ctx, a.topics.General, text)
	if topic, ok := a.topics.Categories[category]; ok && topic != a.topics.General {
		a.post(ctx, topic, text)
	}
}

func (a *Announcer) post(ctx context.Context, thread int, text string) {
	_, err := a.transport.Send(ctx, OutMessage{ChatID: a.topics.ChatID, ThreadID: thread, Text: text})
	if err != nil {
		log.Printf("⚠️ [announcer] failed to post to topic %d: %v", thread, err)
	}
}

func changeCard(title string, actor entity.Actor, c *ledgerDto.ChangeResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", title)
	fmt.Fprintf(&sb, "📌 Project: <b>%s</b> (#%d)\n", esc(c.ProjectName), c.ProjectID)
	fmt.Fprintf(&sb, "📂 Category: %s\n", esc(categoryTitle(c.Category)))
	fmt.Fprintf(&sb, "👤 By: %s (<code>%d</code>)\n", esc(actor.DisplayName()), actor.ID)
	fmt.Fprintf(&sb, "%s Score: %d → %d (%+d)\n", trend(c.Amount), c.Before, c.After, c.Amount)
	if c.Reason != "" {
		fmt.Fprintf(&sb, "📝 %s", esc(c.Reason))
	}
	return sb.String()
}

func reviewCard(actor entity.Actor, r *ledgerDto.ReviewResult, text string) string {
	title := "✍️ <b>New review</b>"
	if r.Replaced {
		title = "✏️ <b>Review changed</b>"
	}
	card := changeCard(title, actor, &r.ChangeResult)
	if text != "" {
		card += "\n\n💬 " + esc(truncate(text, reviewTextLimit))
	}
	return card
}

func projectEditCard(title string, actor entity.Actor, p *entity.Project) string {
	return fmt.Sprintf("%s\n\n📌 Project: <b>%s</b> (#%d)\n📂 Category: %s\n👤 By: %s (<code>%d</code>)",
		title, esc(p.Name), p.ID, esc(categoryTitle(p.Category)), esc(actor.DisplayName()), actor.ID)
}

func banCard(title string, actor entity.Actor, userID int64, reason string) string {
	card := fmt.Sprintf("%s\n\n👤 User: <code>%d</code>\n👮 By: %s", title, userID, esc(actor.DisplayName()))
	if reason != "" {
		card += "\n📝 " + esc(reason)
	}
	return card
}
