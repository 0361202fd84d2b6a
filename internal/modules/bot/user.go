package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"kmbp.app/ratingbot/internal/modules/conversation"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"
	"kmbp.app/ratingbot/pkg/apperror"
	"kmbp.app/ratingbot/pkg/sanitizer"
)

const (
	welcomeTopSize  = 5
	panelRecentSize = 2
	reviewListSize  = 5
	historyListSize = 10
	searchShownSize = 5
	maxReviewLength = 1000
)

var errPromptExpired = apperror.Invalid("This rating prompt has expired")

// splitIDData parses callback data of the form <action>_<id>.
func splitIDData(data string) (string, uint, bool) {
	cut := strings.LastIndex(data, "_")
	if cut <= 0 {
		return "", 0, false
	}
	id, err := strconv.ParseUint(data[cut+1:], 10, 64)
	if err != nil || id == 0 {
		return "", 0, false
	}
	return data[:cut], uint(id), true
}

func (b *Bot) start(ctx context.Context, req *request) error {
	if _, err := b.flows.Cancel(ctx, req.Actor.ID); err != nil {
		return err
	}
	top, err := b.projects.Top(ctx, welcomeTopSize)
	if err != nil {
		return err
	}
	b.send(ctx, req, OutMessage{Text: welcomeText(top), Reply: mainMenu()})
	return nil
}

func (b *Bot) cancel(ctx context.Context, req *request) error {
	hadFlow, err := b.flows.Cancel(ctx, req.Actor.ID)
	if err != nil {
		return err
	}
	text := "🏠 Main menu"
	if hadFlow {
		text = "✖️ Action cancelled"
	}
	b.send(ctx, req, OutMessage{Text: text, Reply: mainMenu()})
	return nil
}

func (b *Bot) weeklyTop(ctx context.Context, req *request) error {
	entries, err := b.ledger.WeeklyTop(ctx)
	if err != nil {
		return err
	}
	b.reply(ctx, req, weeklyTopText(entries))
	return nil
}

func (b *Bot) startSearch(ctx context.Context, req *request) error {
	if err := b.flows.Begin(ctx, req.Actor.ID, conversation.Flow{State: conversation.WaitingQuery}); err != nil {
		return err
	}
	b.send(ctx, req, OutMessage{Text: "🔍 Send part of the project name (at least 2 characters).", Reply: flowMenu()})
	return nil
}

// captureQuery keeps the search flow open when the query is rejected.
func (b *Bot) captureQuery(ctx context.Context, req *request, query string) error {
	results, err := b.projects.Search(ctx, query)
	if err != nil {
		return err
	}
	if _, err := b.flows.Finish(ctx, req.Actor.ID, conversation.WaitingQuery); err != nil && !errors.Is(err, conversation.ErrStaleState) {
		return err
	}

	query = sanitizer.Line(query)
	if len(results) == 0 {
		b.send(ctx, req, OutMessage{Text: fmt.Sprintf("🔍 Nothing found for <b>%s</b>.", esc(query)), Reply: mainMenu()})
		return nil
	}
	if len(results) > searchShownSize {
		results = results[:searchShownSize]
	}

	kb := InlineKeyboard{}
	for _, p := range results {
		kb = append(kb, []Button{{Text: truncate(p.Name, 40), Data: fmt.Sprintf("panel_%d", p.ID)}})
	}
	b.send(ctx, req, OutMessage{Text: searchResultsText(query, results), Inline: kb})
	return nil
}

func (b *Bot) showPanel(ctx context.Context, req *request, projectID uint) error {
	card, err := b.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	review, err := b.ledger.UserReview(ctx, req.Actor.ID, projectID)
	if err != nil {
		return err
	}
	recent, err := b.ledger.History(ctx, projectID, panelRecentSize)
	if err != nil {
		return err
	}

	b.edit(ctx, req, panelText(card, review, recent), panelKeyboard(projectID, review != nil))
	return nil
}

func (b *Bot) showReviews(ctx context.Context, req *request, projectID uint) error {
	card, err := b.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	reviews, err := b.ledger.Reviews(ctx, projectID, reviewListSize)
	if err != nil {
		return err
	}
	b.edit(ctx, req, reviewsText(card, reviews), backKeyboard(projectID))
	return nil
}

func (b *Bot) showHistory(ctx context.Context, req *request, projectID uint) error {
	card, err := b.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	history, err := b.ledger.History(ctx, projectID, historyListSize)
	if err != nil {
		return err
	}
	b.edit(ctx, req, historyText(card, history), backKeyboard(projectID))
	return nil
}

func (b *Bot) showMyReview(ctx context.Context, req *request, projectID uint) error {
	card, err := b.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	review, err := b.ledger.UserReview(ctx, req.Actor.ID, projectID)
	if err != nil {
		return err
	}
	if review == nil {
		return apperror.NotFound("You haven't reviewed this project yet")
	}

	kb := InlineKeyboard{
		{{Text: "✏️ Edit review", Data: fmt.Sprintf("rev_%d", projectID)}},
		{{Text: "⬅️ Back", Data: fmt.Sprintf("back_%d", projectID)}},
	}
	b.edit(ctx, req, myReviewText(card, review), kb)
	return nil
}

func (b *Bot) startReview(ctx context.Context, req *request, projectID uint) error {
	card, err := b.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	existing, err := b.ledger.UserReview(ctx, req.Actor.ID, projectID)
	if err != nil {
		return err
	}

	err = b.flows.Begin(ctx, req.Actor.ID, conversation.Flow{
		State:       conversation.WaitingText,
		ProjectID:   card.ID,
		ProjectName: card.Name,
		Category:    card.Category,
	})
	if err != nil {
		return err
	}

	text := fmt.Sprintf("✍️ Write your review of <b>%s</b> in one message.", esc(card.Name))
	if existing != nil {
		text += fmt.Sprintf("\n\nYou already rated it %d/5. Your new review will replace the old one.", existing.RatingVal)
	}
	b.send(ctx, req, OutMessage{Text: text, Reply: flowMenu()})
	return nil
}

func (b *Bot) captureReviewText(ctx context.Context, req *request, flow conversation.Flow, text string) error {
	text = sanitizer.Text(text)
	if text == "" {
		return apperror.Invalid("Review text can't be empty")
	}
	if utf8.RuneCountInString(text) > maxReviewLength {
		return apperror.Invalid(fmt.Sprintf("Review is too long, keep it under %d characters", maxReviewLength))
	}

	_, err := b.flows.Advance(ctx, req.Actor.ID, conversation.WaitingText, conversation.WaitingRating, func(f *conversation.Flow) {
		f.ReviewText = text
	})
	if err != nil {
		return err
	}

	b.send(ctx, req, OutMessage{
		Text:   fmt.Sprintf("Your review of <b>%s</b>:\n<i>%s</i>\n\n⭐ Now choose a rating:", esc(flow.ProjectName), esc(text)),
		Inline: ratingKeyboard(),
	})
	return nil
}

func (b *Bot) backToText(ctx context.Context, req *request) error {
	flow, err := b.flows.Advance(ctx, req.Actor.ID, conversation.WaitingRating, conversation.WaitingText, func(f *conversation.Flow) {
		f.ReviewText = ""
	})
	if errors.Is(err, conversation.ErrStaleState) {
		return errPromptExpired
	}
	if err != nil {
		return err
	}
	b.edit(ctx, req, fmt.Sprintf("✍️ Send the new text of your review of <b>%s</b>.", esc(flow.ProjectName)), nil)
	return nil
}

// cancelFlow drops the user's flow after its target disappeared.
func (b *Bot) cancelFlow(ctx context.Context, req *request) {
	if _, err := b.flows.Cancel(ctx, req.Actor.ID); err != nil {
		b.logf(req, "⚠️ failed to cancel flow: %v", err)
	}
}

// commitRating is the only step that writes a review. The commit lock keeps a
// double tap from submitting twice.
func (b *Bot) commitRating(ctx context.Context, req *request, arg string) (string, error) {
	rating, err := strconv.Atoi(arg)
	if err != nil {
		return "", apperror.Invalid("Unknown rating")
	}

	flow, err := b.flows.Current(ctx, req.Actor.ID)
	if err != nil {
		return "", err
	}
	if flow.State != conversation.WaitingRating {
		return "", errPromptExpired
	}

	if _, err := ledgerService.RatingDelta(rating); err != nil {
		return "", err
	}

	key := fmt.Sprintf("review:%d:%d", req.Actor.ID, flow.ProjectID)
	acquired, err := b.lock.Acquire(ctx, key, b.lockTTL)
	if err != nil {
		b.logf(req, "⚠️ commit lock unavailable: %v", err)
	} else if !acquired {
		return "", apperror.RateLimited("Your rating is already being saved")
	}

	result, err := b.ledger.SubmitReview(ctx, req.Actor, flow.ProjectID, flow.ReviewText, rating)
	if err != nil {
		if acquired {
			if relErr := b.lock.Release(ctx, key); relErr != nil {
				b.logf(req, "⚠️ failed to release commit lock: %v", relErr)
			}
		}
		if errors.Is(err, apperror.ErrNotFound) {
			b.cancelFlow(ctx, req)
		}
		return "", err
	}

	if _, err := b.flows.Finish(ctx, req.Actor.ID, conversation.WaitingRating); err != nil && !errors.Is(err, conversation.ErrStaleState) {
		b.logf(req, "⚠️ failed to clear review flow: %v", err)
	}

	verb := "saved"
	if result.Replaced {
		verb = "updated"
	}
	b.edit(ctx, req, fmt.Sprintf("✅ Review of <b>%s</b> %s: %s %d/5\nScore: %d → %d (%+d)",
		esc(result.ProjectName), verb, stars(rating), rating, result.Before, result.After, result.Amount), nil)
	b.send(ctx, req, OutMessage{Text: "🏠 Thanks for your feedback!", Reply: mainMenu()})

	b.announcer.Announce(ctx, result.Category, reviewCard(req.Actor, result, flow.ReviewText))
	return "✅ Saved", nil
}

func (b *Bot) like(ctx context.Context, req *request, projectID uint) (string, error) {
	result, err := b.ledger.Like(ctx, req.Actor, projectID)
	if err != nil {
		return "", err
	}

	if err := b.showPanel(ctx, req, projectID); err != nil {
		b.logf(req, "⚠️ failed to refresh panel: %v", err)
	}
	b.announcer.Announce(ctx, result.Category, changeCard("👍 <b>New like</b>", req.Actor, result))
	return "👍 Thanks for your support!", nil
}
