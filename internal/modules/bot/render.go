package bot

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"kmbp.app/ratingbot/internal/entity"
	accessDto "kmbp.app/ratingbot/internal/modules/access/dto"
	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
	projectDto "kmbp.app/ratingbot/internal/modules/project/dto"
)

const (
	cardDescriptionLimit  = 150
	panelDescriptionLimit = 200
	reviewTextLimit       = 300
	captionLimit          = 1024
	messageChunkLimit     = 4000
	dateLayout            = "02.01.2006 15:04"
	genericFailureNotice  = "⚠️ Something went wrong. Please try again later."
	menuHint              = "Use the menu buttons below to browse projects."
)

// esc escapes user data for HTML parse mode.
func esc(s string) string {
	return html.EscapeString(s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func stars(n int) string {
	return strings.Repeat("⭐", n)
}

func categoryTitle(key string) string {
	if title, ok := entity.CategoryTitle(key); ok {
		return title
	}
	return key
}

func trend(amount int) string {
	switch {
	case amount > 0:
		return "📈"
	case amount < 0:
		return "📉"
	default:
		return "➡️"
	}
}

func pageHeader(category string, total int64) string {
	return fmt.Sprintf("📂 <b>%s</b>\nTotal projects: %d", esc(categoryTitle(category)), total)
}

func projectCard(card projectDto.ProjectCard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", esc(card.Name))
	if card.Description != "" {
		fmt.Fprintf(&sb, "%s\n", esc(truncate(card.Description, cardDescriptionLimit)))
	}
	fmt.Fprintf(&sb, "\n⭐ Score: <b>%d</b>", card.Score)
	return sb.String()
}

func welcomeText(top []entity.Project) string {
	var sb strings.Builder
	sb.WriteString("👋 <b>Welcome to the KMBP project rating!</b>\n\n")
	sb.WriteString("Pick a category below to browse projects, leave reviews and support the ones you like.\n")
	if len(top) > 0 {
		sb.WriteString("\n🏆 <b>Top projects</b>\n")
		for i, p := range top {
			fmt.Fprintf(&sb, "%d. %s (%s): <b>%d</b>\n", i+1, esc(p.Name), esc(categoryTitle(p.Category)), p.Score)
		}
	}
	return sb.String()
}

func weeklyTopText(entries []ledgerDto.WeeklyEntry) string {
	if len(entries) == 0 {
		return "⭐ No score changes in the last 7 days."
	}
	var sb strings.Builder
	sb.WriteString("⭐ <b>Weekly top</b> (last 7 days)\n\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s <b>%s</b>: %+d\n", i+1, trend(e.Total), esc(e.Name), e.Total)
	}
	return sb.String()
}

func panelText(card *projectDto.ProjectCard, review *entity.UserLog, recent []entity.RatingHistory) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📌 <b>%s</b>\n", esc(card.Name))
	fmt.Fprintf(&sb, "📂 %s\n", esc(categoryTitle(card.Category)))
	if card.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", esc(truncate(card.Description, panelDescriptionLimit)))
	}
	fmt.Fprintf(&sb, "\n⭐ Score: <b>%d</b>\n", card.Score)
	if review != nil {
		fmt.Fprintf(&sb, "✍️ Your rating: %d/5\n", review.RatingVal)
	} else {
		sb.WriteString("✍️ You haven't rated this project yet\n")
	}
	if len(recent) > 0 {
		sb.WriteString("\n<b>Recent changes</b>\n")
		for _, h := range recent {
			fmt.Fprintf(&sb, "%s %+d %s\n", trend(h.ChangeAmount), h.ChangeAmount, esc(h.Reason))
		}
	}
	return sb.String()
}

func reviewsText(project *projectDto.ProjectCard, reviews []entity.UserLog) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💬 <b>Reviews of %s</b>\n", esc(project.Name))
	if len(reviews) == 0 {
		sb.WriteString("\nNo reviews yet.")
		return sb.String()
	}
	for _, r := range reviews {
		fmt.Fprintf(&sb, "\n%s %d/5 by %s\n", stars(r.RatingVal), r.RatingVal, esc(reviewerName(r)))
		if r.ReviewText != "" {
			fmt.Fprintf(&sb, "%s\n", esc(truncate(r.ReviewText, reviewTextLimit)))
		}
	}
	return sb.String()
}

func reviewerName(r entity.UserLog) string {
	return entity.Actor{ID: r.UserID, Username: r.Username}.DisplayName()
}

func historyText(project *projectDto.ProjectCard, history []entity.RatingHistory) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 <b>History of %s</b>\n", esc(project.Name))
	if len(history) == 0 {
		sb.WriteString("\nNo changes yet.")
		return sb.String()
	}
	for _, h := range history {
		marker := "👤"
		if h.IsAdminAction {
			marker = "👮"
		}
		fmt.Fprintf(&sb, "\n%s %+d (%d → %d) %s\n<i>%s</i>\n",
			marker, h.ChangeAmount, h.ScoreBefore, h.ScoreAfter, esc(h.Reason), h.CreatedAt.Format(dateLayout))
	}
	return sb.String()
}

func myReviewText(project *projectDto.ProjectCard, review *entity.UserLog) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 <b>Your review of %s</b>\n\n", esc(project.Name))
	fmt.Fprintf(&sb, "%s %d/5\n", stars(review.RatingVal), review.RatingVal)
	if review.ReviewText != "" {
		fmt.Fprintf(&sb, "%s\n", esc(review.ReviewText))
	}
	fmt.Fprintf(&sb, "\n<i>Updated %s</i>", review.UpdatedAt.Format(dateLayout))
	return sb.String()
}

func searchResultsText(query string, projects []entity.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Results for <b>%s</b>\n\n", esc(query))
	for i, p := range projects {
		fmt.Fprintf(&sb, "%d. %s (%s): <b>%d</b>\n", i+1, esc(p.Name), esc(categoryTitle(p.Category)), p.Score)
	}
	return sb.String()
}

func statsText(s *ledgerDto.ProjectStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%s</b> (#%d)\n", esc(s.Project.Name), s.Project.ID)
	fmt.Fprintf(&sb, "Category: %s\n", esc(categoryTitle(s.Project.Category)))
	fmt.Fprintf(&sb, "Score: <b>%d</b>\n", s.Project.Score)
	fmt.Fprintf(&sb, "Reviews: %d, likes: %d, history entries: %d\n", s.Reviews, s.Likes, s.HistoryEntries)
	if s.Reviews > 0 {
		fmt.Fprintf(&sb, "Average rating: %.2f\n", s.AverageRating)
		for rating := 5; rating >= 1; rating-- {
			fmt.Fprintf(&sb, "%d⭐ %d\n", rating, s.Distribution[rating])
		}
	}
	fmt.Fprintf(&sb, "Created: %s", s.Project.CreatedAt.Format(dateLayout))
	return sb.String()
}

func overviewLines(o *ledgerDto.Overview) []string {
	lines := []string{fmt.Sprintf("📋 <b>Projects</b>: %d, reviews: %d, total score: %d\n", len(o.Projects), o.TotalReviews, o.TotalScore)}
	for _, p := range o.Projects {
		lines = append(lines, fmt.Sprintf("#%d <b>%s</b> [%s] score %d, reviews %d",
			p.ID, esc(p.Name), esc(categoryTitle(p.Category)), p.Score, p.Reviews))
	}
	return lines
}

func banLines(bans []entity.BannedUser) []string {
	if len(bans) == 0 {
		return []string{"✅ Nobody is banned."}
	}
	lines := []string{fmt.Sprintf("🚫 <b>Banned users</b>: %d\n", len(bans))}
	for _, b := range bans {
		by := entity.Actor{ID: b.BannedBy, Username: b.BannedByUsername}.DisplayName()
		lines = append(lines, fmt.Sprintf("<code>%d</code> by %s on %s\nReason: %s",
			b.UserID, esc(by), b.BannedAt.Format(dateLayout), esc(b.Reason)))
	}
	return lines
}

func statusText(s *accessDto.UserStatus) string {
	switch s.Kind {
	case accessDto.StatusAdmin:
		return fmt.Sprintf("👮 User <code>%d</code> is an admin.", s.UserID)
	case accessDto.StatusBanned:
		return fmt.Sprintf("🚫 User <code>%d</code> is banned since %s.\nReason: %s",
			s.UserID, s.BannedAt.Format(dateLayout), esc(s.Reason))
	default:
		return fmt.Sprintf("✅ User <code>%d</code> has no restrictions.", s.UserID)
	}
}

func bannedNotice(d *accessDto.Decision) string {
	return fmt.Sprintf("⛔ You are banned from this bot.\nReason: %s", esc(d.Reason))
}

// chunk joins lines into messages that stay under limit bytes.
func chunk(lines []string, limit int) []string {
	var (
		chunks []string
		sb     strings.Builder
	)
	for _, line := range lines {
		if sb.Len() > 0 && sb.Len()+len(line)+1 > limit {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}
