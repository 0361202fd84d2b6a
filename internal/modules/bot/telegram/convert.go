package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/internal/modules/bot"
)

// ToInteraction keeps button presses everywhere, and messages from private
// chats or commands from groups. Everything else is dropped.
func ToInteraction(update tgbotapi.Update) (bot.Interaction, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return bot.Interaction{}, false
		}
		return bot.Interaction{
			Actor:  actor(cq.From),
			ChatID: cq.Message.Chat.ID,
			Callback: &bot.Callback{
				ID:   cq.ID,
				Data: cq.Data,
				Message: bot.MessageRef{
					ChatID:    cq.Message.Chat.ID,
					MessageID: cq.Message.MessageID,
					HasPhoto:  len(cq.Message.Photo) > 0,
				},
			},
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Interaction{}, false
	}
	if !msg.Chat.IsPrivate() && !msg.IsCommand() {
		return bot.Interaction{}, false
	}

	in := bot.Interaction{
		Actor:  actor(msg.From),
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if n := len(msg.Photo); n > 0 {
		in.PhotoFileID = msg.Photo[n-1].FileID
	}
	if in.Text == "" && in.PhotoFileID == "" {
		return bot.Interaction{}, false
	}
	return in, true
}

func actor(u *tgbotapi.User) entity.Actor {
	return entity.Actor{ID: u.ID, Username: u.UserName, IsBot: u.IsBot}
}

func inlineMarkup(kb bot.InlineKeyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func replyKeyboard(kb bot.ReplyKeyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// replyMarkup picks the markup for an outgoing message. Inline buttons win
// because Telegram accepts one markup per message.
func replyMarkup(msg bot.OutMessage) any {
	switch {
	case len(msg.Inline) > 0:
		return *inlineMarkup(msg.Inline)
	case len(msg.Reply) > 0:
		return replyKeyboard(msg.Reply)
	}
	return nil
}
