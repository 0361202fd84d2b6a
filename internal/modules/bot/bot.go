package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"kmbp.app/ratingbot/internal/entity"
	accessDto "kmbp.app/ratingbot/internal/modules/access/dto"
	accessService "kmbp.app/ratingbot/internal/modules/access/service"
	"kmbp.app/ratingbot/internal/modules/conversation"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"
	projectService "kmbp.app/ratingbot/internal/modules/project/service"
	"kmbp.app/ratingbot/pkg/apperror"
)

const defaultLockTTL = 3 * time.Second

type Deps struct {
	Transport Transport
	Access    accessService.AccessService
	Ledger    ledgerService.LedgerService
	Projects  projectService.ProjectService
	Flows     *conversation.Machine
	Lock      conversation.CommitLock
	Announcer *Announcer
	LockTTL   time.Duration
	// Username is the bot's own username, used to drop commands addressed to other bots.
	Username string
}

type Bot struct {
	transport Transport
	access    accessService.AccessService
	ledger    ledgerService.LedgerService
	projects  projectService.ProjectService
	flows     *conversation.Machine
	lock      conversation.CommitLock
	announcer *Announcer
	lockTTL   time.Duration
	username  string
	validate  *validator.Validate
	commands  map[string]command

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

func New(deps Deps) *Bot {
	b := &Bot{
		transport: deps.Transport,
		access:    deps.Access,
		ledger:    deps.Ledger,
		projects:  deps.Projects,
		flows:     deps.Flows,
		lock:      deps.Lock,
		announcer: deps.Announcer,
		lockTTL:   deps.LockTTL,
		username:  deps.Username,
		validate:  newCommandValidator(),
	}
	if b.lockTTL <= 0 {
		b.lockTTL = defaultLockTTL
	}
	if b.lock == nil {
		b.lock = conversation.NewMemoryLock()
	}
	b.commands = b.registerCommands()
	return b
}

// request is one interaction on its way through the handlers.
type request struct {
	Interaction
	id    string
	admin bool
}

// Dispatch handles in on its own goroutine so slow users never block others.
// The handler keeps ctx's values but not its cancellation, so an interaction
// accepted before shutdown still runs to completion. Interactions arriving
// after Wait has been called are dropped.
func (b *Bot) Dispatch(ctx context.Context, in Interaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draining {
		log.Printf("⚠️ [bot] dropping update from user %d during shutdown", in.Actor.ID)
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Handle(context.WithoutCancel(ctx), in)
	}()
}

// Wait stops accepting interactions and blocks until every dispatched one
// has finished.
func (b *Bot) Wait() {
	b.mu.Lock()
	b.draining = true
	b.mu.Unlock()
	b.wg.Wait()
}

// Handle runs the gate and routes the interaction. Failures are rendered to
// the user and logged; they never escape.
func (b *Bot) Handle(ctx context.Context, in Interaction) {
	req := &request{Interaction: in, id: uuid.NewString()[:8]}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 [bot %s] panic while handling user %d: %v", req.id, in.Actor.ID, r)
			b.fail(ctx, req, fmt.Errorf("panic: %v", r))
		}
	}()

	decision, err := b.access.Check(ctx, in.Actor)
	if err != nil {
		b.fail(ctx, req, err)
		return
	}
	if !decision.Allowed {
		b.deny(ctx, req, decision)
		return
	}
	req.admin = decision.Admin

	if in.Callback != nil {
		notice, err := b.routeCallback(ctx, req)
		if err != nil {
			b.fail(ctx, req, err)
			return
		}
		b.answer(ctx, req, notice, false)
		return
	}

	if in.PhotoFileID != "" {
		err = b.handlePhoto(ctx, req)
	} else {
		err = b.handleText(ctx, req)
	}
	if err != nil {
		b.fail(ctx, req, err)
	}
}

func (b *Bot) handleText(ctx context.Context, req *request) error {
	text := strings.TrimSpace(req.Text)

	switch text {
	case BtnCancel, BtnBackToMenu:
		return b.cancel(ctx, req)
	}

	if strings.HasPrefix(text, "/") {
		name, args, ok := parseCommand(text, b.username)
		if !ok {
			return nil
		}
		cmd, known := b.commands[name]
		if !known || (cmd.admin && !req.admin) {
			return nil
		}
		return cmd.run(ctx, req, args)
	}

	if category, ok := entity.CategoryByTitle(text); ok {
		return b.showPage(ctx, req, category, 0, nil)
	}
	switch text {
	case BtnSearch:
		return b.startSearch(ctx, req)
	case BtnWeeklyTop:
		return b.weeklyTop(ctx, req)
	}

	flow, err := b.flows.Current(ctx, req.Actor.ID)
	if err != nil {
		return err
	}
	switch flow.State {
	case conversation.WaitingText:
		return b.captureReviewText(ctx, req, flow, text)
	case conversation.WaitingRating:
		b.reply(ctx, req, "⭐ Choose a rating with the buttons above, or go back to change the text.")
		return nil
	case conversation.WaitingQuery:
		return b.captureQuery(ctx, req, text)
	case conversation.WaitingReason:
		if !req.admin {
			_, err := b.flows.Cancel(ctx, req.Actor.ID)
			return err
		}
		return b.captureReason(ctx, req, flow, text)
	case conversation.WaitingPhoto:
		b.reply(ctx, req, "🖼 Please send a photo.")
		return nil
	}

	b.send(ctx, req, OutMessage{Text: menuHint, Reply: mainMenu()})
	return nil
}

func (b *Bot) handlePhoto(ctx context.Context, req *request) error {
	flow, err := b.flows.Current(ctx, req.Actor.ID)
	if err != nil {
		return err
	}
	switch {
	case flow.State == conversation.WaitingPhoto && req.admin:
		return b.capturePhoto(ctx, req, flow)
	case flow.State == conversation.WaitingText:
		b.reply(ctx, req, "✍️ Please send your review as text.")
		return nil
	}
	b.send(ctx, req, OutMessage{Text: menuHint, Reply: mainMenu()})
	return nil
}

// routeCallback returns the short notice the button press is answered with.
func (b *Bot) routeCallback(ctx context.Context, req *request) (string, error) {
	data := req.Callback.Data

	switch {
	case data == "close_panel":
		if err := b.transport.Delete(ctx, req.Callback.Message); err != nil {
			b.logf(req, "⚠️ failed to close panel: %v", err)
		}
		return "", nil
	case data == "back_to_text":
		return "", b.backToText(ctx, req)
	case strings.HasPrefix(data, morePrefix):
		category, offset, err := DecodeMore(data)
		if err != nil {
			b.logf(req, "⚠️ %v", err)
			return "", apperror.Invalid("This button is outdated")
		}
		prev := req.Callback.Message
		return "", b.showPage(ctx, req, category, offset, &prev)
	case strings.HasPrefix(data, "st_"):
		return b.commitRating(ctx, req, strings.TrimPrefix(data, "st_"))
	}

	action, projectID, ok := splitIDData(data)
	if !ok {
		return "", nil
	}
	switch action {
	case "panel", "back":
		return "", b.showPanel(ctx, req, projectID)
	case "rev":
		return "", b.startReview(ctx, req, projectID)
	case "like":
		return b.like(ctx, req, projectID)
	case "viewrev":
		return "", b.showReviews(ctx, req, projectID)
	case "history":
		return "", b.showHistory(ctx, req, projectID)
	case "myreview":
		return "", b.showMyReview(ctx, req, projectID)
	}
	return "", nil
}

func (b *Bot) deny(ctx context.Context, req *request, d *accessDto.Decision) {
	b.logf(req, "⛔ banned user %d blocked", req.Actor.ID)
	if req.Callback != nil {
		b.answer(ctx, req, "⛔ You are banned from this bot.\nReason: "+d.Reason, true)
		return
	}
	b.reply(ctx, req, bannedNotice(d))
}

// fail renders err to the user. Only AppError messages are shown; anything
// else becomes a generic notice and is logged with the correlation id.
func (b *Bot) fail(ctx context.Context, req *request, err error) {
	msg, ok := apperror.UserMessage(err)
	if !ok {
		b.logf(req, "❌ %v", err)
		msg = genericFailureNotice
	}

	if req.Callback != nil {
		b.answer(ctx, req, msg, true)
		return
	}
	if ok {
		msg = "❌ " + esc(msg)
	}
	b.reply(ctx, req, msg)
}

func (b *Bot) send(ctx context.Context, req *request, msg OutMessage) int {
	if msg.ChatID == 0 {
		msg.ChatID = req.ChatID
	}
	if msg.PhotoFileID != "" {
		msg.Text = truncate(msg.Text, captionLimit)
	}
	id, err := b.transport.Send(ctx, msg)
	if err != nil {
		b.logf(req, "❌ failed to send message: %v", err)
	}
	return id
}

func (b *Bot) reply(ctx context.Context, req *request, text string) {
	b.send(ctx, req, OutMessage{Text: text})
}

func (b *Bot) answer(ctx context.Context, req *request, text string, alert bool) {
	if err := b.transport.Answer(ctx, req.Callback.ID, truncate(text, 200), alert); err != nil {
		b.logf(req, "⚠️ failed to answer callback: %v", err)
	}
}

// edit replaces the content of the message the callback came from. An
// unchanged message counts as success; other failures fall back to sending
// the content as a new message.
func (b *Bot) edit(ctx context.Context, req *request, text string, keyboard InlineKeyboard) {
	ref := req.Callback.Message
	if ref.HasPhoto {
		text = truncate(text, captionLimit)
	}

	err := b.transport.Edit(ctx, ref, text, keyboard)
	if err == nil || errors.Is(err, ErrNotModified) {
		return
	}

	b.logf(req, "⚠️ edit failed, sending a new message: %v", err)
	if _, err := b.transport.Send(ctx, OutMessage{ChatID: req.ChatID, Text: text, Inline: keyboard}); err != nil {
		b.logf(req, "❌ fallback send failed: %v", err)
	}
}

func (b *Bot) logf(req *request, format string, args ...any) {
	log.Printf("[bot %s] user=%d "+format, append([]any{req.id, req.Actor.ID}, args...)...)
}
