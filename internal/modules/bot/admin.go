package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kmbp.app/ratingbot/internal/modules/conversation"
	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
	"kmbp.app/ratingbot/pkg/apperror"
	"kmbp.app/ratingbot/pkg/sanitizer"
)

func (b *Bot) cmdStart(ctx context.Context, req *request, _ string) error {
	return b.start(ctx, req)
}

func (b *Bot) cmdCancel(ctx context.Context, req *request, _ string) error {
	return b.cancel(ctx, req)
}

func (b *Bot) cmdMyStatus(ctx context.Context, req *request, _ string) error {
	status, err := b.access.Status(ctx, req.Actor.ID)
	if err != nil {
		return err
	}
	b.reply(ctx, req, statusText(status))
	return nil
}

func (b *Bot) cmdHelp(ctx context.Context, req *request, _ string) error {
	lines := []string{
		"ℹ️ <b>How it works</b>",
		"Pick a category to browse projects, open a project panel to rate it, support it or read its reviews.",
		"",
		"/start: main menu",
		"/cancel: cancel the current action",
		"/mystatus: your access status",
	}
	if req.admin {
		lines = append(lines, "", "👮 <b>Admin commands</b>")
		for _, name := range []string{"add", "del", "score", "delrev", "editdesc", "addphoto", "stats", "list", "ban", "unban", "banlist", "finduser"} {
			lines = append(lines, esc(b.commands[name].usage))
		}
	}
	b.reply(ctx, req, strings.Join(lines, "\n"))
	return nil
}

func (b *Bot) cmdAdd(ctx context.Context, req *request, args string) error {
	fields := splitFields(args, 3)
	if len(fields) < 3 {
		return apperror.Invalid(fmt.Sprintf("Usage: %s\nCategories: %s", b.commands["add"].usage, categoryKeys()))
	}

	in := addArgs{
		Category:    normalizeCategory(fields[0]),
		Name:        sanitizer.Line(fields[1]),
		Description: sanitizer.Text(fields[2]),
	}
	if err := b.check(in); err != nil {
		return err
	}

	project, err := b.ledger.CreateProject(ctx, req.Actor, ledgerDto.CreateProjectInput{
		Category:    in.Category,
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		return err
	}

	b.reply(ctx, req, fmt.Sprintf("✅ Project <b>%s</b> added to %s (#%d).",
		esc(project.Name), esc(categoryTitle(project.Category)), project.ID))
	b.announcer.Announce(ctx, project.Category, projectEditCard("🆕 <b>Project added</b>", req.Actor, project))
	return nil
}

func (b *Bot) cmdDel(ctx context.Context, req *request, args string) error {
	in := nameArgs{Name: strings.TrimSpace(args)}
	if in.Name == "" {
		return b.usage("del")
	}
	if err := b.check(in); err != nil {
		return err
	}

	project, err := b.projects.FindByName(ctx, in.Name)
	if err != nil {
		return err
	}
	result, err := b.ledger.DeleteProject(ctx, req.Actor, project.ID)
	if err != nil {
		return err
	}
	b.projects.DiscardPhoto(ctx, result.Photo)

	summary := fmt.Sprintf("Removed %d reviews, %d likes, %d history entries (archived).",
		result.Reviews, result.Likes, result.HistoryEntries)
	b.reply(ctx, req, fmt.Sprintf("🗑 Project <b>%s</b> deleted.\n%s", esc(result.ProjectName), summary))
	b.announcer.Announce(ctx, result.Category, changeCard("🗑 <b>Project deleted</b>", req.Actor, &result.ChangeResult)+"\n"+summary)
	return nil
}

// cmdScore only records the requested change. It is applied when the admin
// sends the reason, against the score at that moment.
func (b *Bot) cmdScore(ctx context.Context, req *request, args string) error {
	fields := splitFields(args, 2)
	if len(fields) < 2 {
		return b.usage("score")
	}
	in := scoreArgs{Name: fields[0], Delta: fields[1]}
	if err := b.check(in); err != nil {
		return err
	}
	delta, err := parseWhole[int](in.Delta, "Score change")
	if err != nil {
		return err
	}
	if delta == 0 {
		return apperror.Invalid("Score change can't be zero")
	}

	project, err := b.projects.FindByName(ctx, in.Name)
	if err != nil {
		return err
	}

	err = b.flows.Begin(ctx, req.Actor.ID, conversation.Flow{
		State:       conversation.WaitingReason,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Category:    project.Category,
		Delta:       delta,
	})
	if err != nil {
		return err
	}

	b.send(ctx, req, OutMessage{
		Text: fmt.Sprintf("✏️ <b>%s</b>: current score %d, change %+d.\nSend the reason for this change.",
			esc(project.Name), project.Score, delta),
		Reply: flowMenu(),
	})
	return nil
}

func (b *Bot) captureReason(ctx context.Context, req *request, flow conversation.Flow, text string) error {
	reason := sanitizer.Text(text)
	if reason == "" {
		return apperror.Invalid("Reason can't be empty")
	}

	result, err := b.ledger.AdminChange(ctx, req.Actor, flow.ProjectID, flow.Delta, reason)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			b.cancelFlow(ctx, req)
		}
		return err
	}
	if _, err := b.flows.Finish(ctx, req.Actor.ID, conversation.WaitingReason); err != nil && !errors.Is(err, conversation.ErrStaleState) {
		b.logf(req, "⚠️ failed to clear score flow: %v", err)
	}

	b.send(ctx, req, OutMessage{
		Text: fmt.Sprintf("✅ Score of <b>%s</b>: %d → %d (%+d)\nReason: %s",
			esc(result.ProjectName), result.Before, result.After, result.Amount, esc(reason)),
		Reply: mainMenu(),
	})
	b.announcer.Announce(ctx, result.Category, changeCard("👮 <b>Score changed by admin</b>", req.Actor, result))
	return nil
}

func (b *Bot) cmdDelRev(ctx context.Context, req *request, args string) error {
	in := idArgs{ID: strings.TrimSpace(args)}
	if in.ID == "" {
		return b.usage("delrev")
	}
	if err := b.check(in); err != nil {
		return err
	}
	id, err := parseWhole[int64](in.ID, "Review ID")
	if err != nil || id <= 0 {
		return apperror.Invalid("Review ID must be a positive whole number")
	}

	result, err := b.ledger.DeleteReview(ctx, req.Actor, uint(id))
	if err != nil {
		return err
	}

	author := reviewerName(result.Review)
	b.reply(ctx, req, fmt.Sprintf("🗑 Review #%d by %s deleted.\nScore of <b>%s</b>: %d → %d (%+d)",
		result.Review.ID, esc(author), esc(result.ProjectName), result.Before, result.After, result.Amount))
	b.announcer.Announce(ctx, result.Category,
		changeCard("🗑 <b>Review deleted</b>", req.Actor, &result.ChangeResult)+"\n👤 Author: "+esc(author))
	return nil
}

func (b *Bot) cmdEditDesc(ctx context.Context, req *request, args string) error {
	fields := splitFields(args, 2)
	if len(fields) < 2 {
		return b.usage("editdesc")
	}
	in := editDescArgs{Name: fields[0], Description: sanitizer.Text(fields[1])}
	if err := b.check(in); err != nil {
		return err
	}

	project, err := b.projects.UpdateDescription(ctx, in.Name, in.Description)
	if err != nil {
		return err
	}

	b.reply(ctx, req, fmt.Sprintf("📝 Description of <b>%s</b> updated.", esc(project.Name)))
	b.announcer.Announce(ctx, project.Category,
		projectEditCard("📝 <b>Description updated</b>", req.Actor, project)+"\n\n"+esc(truncate(project.Description, panelDescriptionLimit)))
	return nil
}

func (b *Bot) cmdAddPhoto(ctx context.Context, req *request, args string) error {
	in := nameArgs{Name: strings.TrimSpace(args)}
	if in.Name == "" {
		return b.usage("addphoto")
	}
	if err := b.check(in); err != nil {
		return err
	}

	project, err := b.projects.FindByName(ctx, in.Name)
	if err != nil {
		return err
	}
	err = b.flows.Begin(ctx, req.Actor.ID, conversation.Flow{
		State:       conversation.WaitingPhoto,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Category:    project.Category,
	})
	if err != nil {
		return err
	}

	b.send(ctx, req, OutMessage{Text: fmt.Sprintf("🖼 Send a photo for <b>%s</b>.", esc(project.Name)), Reply: flowMenu()})
	return nil
}

func (b *Bot) capturePhoto(ctx context.Context, req *request, flow conversation.Flow) error {
	photo, err := b.projects.AttachPhoto(ctx, req.Actor, flow.ProjectID, req.PhotoFileID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			b.cancelFlow(ctx, req)
		}
		return err
	}
	if _, err := b.flows.Finish(ctx, req.Actor.ID, conversation.WaitingPhoto); err != nil && !errors.Is(err, conversation.ErrStaleState) {
		b.logf(req, "⚠️ failed to clear photo flow: %v", err)
	}

	text := fmt.Sprintf("🖼 Photo of <b>%s</b> updated.", esc(flow.ProjectName))
	if photo.ImageURL != "" {
		text += fmt.Sprintf("\nPublic copy: %s", esc(photo.ImageURL))
	}
	b.send(ctx, req, OutMessage{Text: text, Reply: mainMenu()})
	b.announcer.Announce(ctx, flow.Category, fmt.Sprintf("🖼 <b>Photo updated</b>\n\n📌 Project: <b>%s</b> (#%d)\n👤 By: %s",
		esc(flow.ProjectName), flow.ProjectID, esc(req.Actor.DisplayName())))
	return nil
}

func (b *Bot) cmdStats(ctx context.Context, req *request, args string) error {
	in := nameArgs{Name: strings.TrimSpace(args)}
	if in.Name == "" {
		return b.usage("stats")
	}
	if err := b.check(in); err != nil {
		return err
	}

	project, err := b.projects.FindByName(ctx, in.Name)
	if err != nil {
		return err
	}
	stats, err := b.ledger.Stats(ctx, project.ID)
	if err != nil {
		return err
	}
	verification, err := b.ledger.Verify(ctx, project.ID)
	if err != nil {
		return err
	}

	text := statsText(stats)
	if verification.Consistent {
		text += "\n\n✅ Ledger consistent with score"
	} else {
		text += fmt.Sprintf("\n\n⚠️ Ledger mismatch: history sums to %d, score is %d", verification.HistorySum, verification.Score)
		if verification.BrokenAt != nil {
			text += fmt.Sprintf(", chain breaks at entry #%d", *verification.BrokenAt)
		}
	}
	b.reply(ctx, req, text)
	return nil
}

func (b *Bot) cmdList(ctx context.Context, req *request, _ string) error {
	overview, err := b.ledger.Overview(ctx)
	if err != nil {
		return err
	}
	for _, part := range chunk(overviewLines(overview), messageChunkLimit) {
		b.reply(ctx, req, part)
	}
	return nil
}

func (b *Bot) cmdBan(ctx context.Context, req *request, args string) error {
	idText, reason, _ := strings.Cut(strings.TrimSpace(args), " ")
	if idText == "" {
		return b.usage("ban")
	}
	in := banArgs{UserID: idText, Reason: sanitizer.Text(strings.TrimLeft(strings.TrimSpace(reason), "| "))}
	if err := b.check(in); err != nil {
		return err
	}
	userID, err := parseWhole[int64](in.UserID, "User ID")
	if err != nil {
		return err
	}

	ban, err := b.access.Ban(ctx, req.Actor, userID, in.Reason)
	if err != nil {
		return err
	}

	b.reply(ctx, req, fmt.Sprintf("🚫 User <code>%d</code> banned.\nReason: %s", ban.UserID, esc(ban.Reason)))
	b.announcer.Announce(ctx, "", banCard("🚫 <b>User banned</b>", req.Actor, ban.UserID, ban.Reason))
	return nil
}

func (b *Bot) cmdUnban(ctx context.Context, req *request, args string) error {
	in := idArgs{ID: strings.TrimSpace(args)}
	if in.ID == "" {
		return b.usage("unban")
	}
	if err := b.check(in); err != nil {
		return err
	}
	userID, err := parseWhole[int64](in.ID, "User ID")
	if err != nil {
		return err
	}

	if err := b.access.Unban(ctx, userID); err != nil {
		return err
	}

	b.reply(ctx, req, fmt.Sprintf("✅ User <code>%d</code> unbanned.", userID))
	b.announcer.Announce(ctx, "", banCard("✅ <b>User unbanned</b>", req.Actor, userID, ""))
	return nil
}

func (b *Bot) cmdBanList(ctx context.Context, req *request, _ string) error {
	bans, err := b.access.List(ctx)
	if err != nil {
		return err
	}
	for _, part := range chunk(banLines(bans), messageChunkLimit) {
		b.reply(ctx, req, part)
	}
	return nil
}

func (b *Bot) cmdFindUser(ctx context.Context, req *request, args string) error {
	in := queryArgs{Query: strings.TrimPrefix(strings.TrimSpace(args), "@")}
	if in.Query == "" {
		return b.usage("finduser")
	}
	if err := b.check(in); err != nil {
		return err
	}

	users, err := b.ledger.FindUsers(ctx, in.Query)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		b.reply(ctx, req, fmt.Sprintf("🔍 Nobody found for <b>%s</b>.", esc(in.Query)))
		return nil
	}

	lines := []string{fmt.Sprintf("🔍 <b>Users matching %s</b>\n", esc(in.Query))}
	for _, u := range users {
		line := fmt.Sprintf("<code>%d</code> %s: reviews %d, likes %d", u.UserID, esc(displayUsername(u.Username)), u.Reviews, u.Likes)
		ban, err := b.access.FindBan(ctx, u.UserID)
		if err != nil {
			return err
		}
		if ban != nil {
			line += " 🚫 banned"
		}
		lines = append(lines, line)
	}
	for _, part := range chunk(lines, messageChunkLimit) {
		b.reply(ctx, req, part)
	}
	return nil
}

func displayUsername(username string) string {
	if username == "" {
		return "(no username)"
	}
	return "@" + username
}
