package bot

import (
	"fmt"

	"kmbp.app/ratingbot/internal/entity"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"
)

const (
	BtnSearch     = "🔍 Search project"
	BtnWeeklyTop  = "⭐ Weekly top"
	BtnBackToMenu = "⬅️ Back to menu"
	BtnCancel     = "❌ Cancel"
)

func mainMenu() ReplyKeyboard {
	rows := ReplyKeyboard{}
	for i := 0; i < len(entity.Categories); i += 2 {
		row := []string{entity.Categories[i].Title}
		if i+1 < len(entity.Categories) {
			row = append(row, entity.Categories[i+1].Title)
		}
		rows = append(rows, row)
	}
	return append(rows, []string{BtnSearch, BtnWeeklyTop})
}

func flowMenu() ReplyKeyboard {
	return ReplyKeyboard{{BtnCancel, BtnBackToMenu}}
}

func panelKeyboard(projectID uint, hasReview bool) InlineKeyboard {
	rateLabel := "✍️ Rate"
	if hasReview {
		rateLabel = "✏️ Change review"
	}
	kb := InlineKeyboard{
		{{Text: rateLabel, Data: fmt.Sprintf("rev_%d", projectID)}, {Text: "👍 Support", Data: fmt.Sprintf("like_%d", projectID)}},
		{{Text: "💬 Reviews", Data: fmt.Sprintf("viewrev_%d", projectID)}, {Text: "📜 History", Data: fmt.Sprintf("history_%d", projectID)}},
	}
	if hasReview {
		kb = append(kb, []Button{{Text: "📝 My review", Data: fmt.Sprintf("myreview_%d", projectID)}})
	}
	return append(kb, []Button{{Text: "✖️ Close", Data: "close_panel"}})
}

func openPanelKeyboard(projectID uint) InlineKeyboard {
	return InlineKeyboard{{{Text: "📋 Open panel", Data: fmt.Sprintf("panel_%d", projectID)}}}
}

func backKeyboard(projectID uint) InlineKeyboard {
	return InlineKeyboard{{{Text: "⬅️ Back", Data: fmt.Sprintf("back_%d", projectID)}}}
}

// ratingKeyboard lists ratings best first, each with the score effect it has.
func ratingKeyboard() InlineKeyboard {
	kb := InlineKeyboard{}
	for rating := ledgerService.MaxRating; rating >= ledgerService.MinRating; rating-- {
		delta, _ := ledgerService.RatingDelta(rating)
		label := fmt.Sprintf("%s %d (%+d)", stars(rating), rating, delta)
		kb = append(kb, []Button{{Text: label, Data: fmt.Sprintf("st_%d", rating)}})
	}
	return append(kb, []Button{{Text: "⬅️ Back to text", Data: "back_to_text"}})
}
