package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kmbp.app/ratingbot/internal/modules/bot"
)

func TestToInteractionCallback(t *testing.T) {
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 5, UserName: "alice"},
		Data: "panel_3",
		Message: &tgbotapi.Message{
			MessageID: 77,
			Chat:      &tgbotapi.Chat{ID: 5, Type: "private"},
			Photo:     []tgbotapi.PhotoSize{{FileID: "small"}},
		},
	}}

	in, ok := ToInteraction(update)
	if !ok {
		t.Fatal("callback should be converted")
	}
	if in.Actor.ID != 5 || in.Actor.Username != "alice" || in.ChatID != 5 {
		t.Fatalf("unexpected interaction %+v", in)
	}
	want := bot.MessageRef{ChatID: 5, MessageID: 77, HasPhoto: true}
	if in.Callback == nil || in.Callback.Data != "panel_3" || in.Callback.Message != want {
		t.Fatalf("unexpected callback %+v", in.Callback)
	}
}

func TestToInteractionMessages(t *testing.T) {
	private := &tgbotapi.Chat{ID: 5, Type: "private"}
	group := &tgbotapi.Chat{ID: -100, Type: "supergroup"}
	user := &tgbotapi.User{ID: 5}

	tests := []struct {
		name  string
		msg   *tgbotapi.Message
		ok    bool
		text  string
		photo string
	}{
		{"private text", &tgbotapi.Message{From: user, Chat: private, Text: "hello"}, true, "hello", ""},
		{"largest photo", &tgbotapi.Message{From: user, Chat: private, Photo: []tgbotapi.PhotoSize{{FileID: "s"}, {FileID: "l"}}}, true, "", "l"},
		{"group chatter", &tgbotapi.Message{From: user, Chat: group, Text: "hi all"}, false, "", ""},
		{"group command", &tgbotapi.Message{From: user, Chat: group, Text: "/mystatus",
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 9}}}, true, "/mystatus", ""},
		{"no sender", &tgbotapi.Message{Chat: private, Text: "x"}, false, "", ""},
		{"sticker", &tgbotapi.Message{From: user, Chat: private}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := ToInteraction(tgbotapi.Update{Message: tt.msg})
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (in.Text != tt.text || in.PhotoFileID != tt.photo) {
				t.Fatalf("unexpected interaction %+v", in)
			}
		})
	}
}

func TestMarkups(t *testing.T) {
	if inlineMarkup(nil) != nil {
		t.Fatal("empty keyboard should produce no markup")
	}

	markup := inlineMarkup(bot.InlineKeyboard{{{Text: "A", Data: "a"}, {Text: "B", Data: "b"}}, {{Text: "C", Data: "c"}}})
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout %+v", markup.InlineKeyboard)
	}
	if data := markup.InlineKeyboard[1][0].CallbackData; data == nil || *data != "c" {
		t.Fatalf("unexpected callback data %v", data)
	}

	reply := replyKeyboard(bot.ReplyKeyboard{{"one", "two"}})
	if !reply.ResizeKeyboard || reply.Keyboard[0][1].Text != "two" {
		t.Fatalf("unexpected reply keyboard %+v", reply)
	}

	if replyMarkup(bot.OutMessage{}) != nil {
		t.Fatal("plain message should carry no markup")
	}
	if _, ok := replyMarkup(bot.OutMessage{Inline: bot.InlineKeyboard{{{Text: "A", Data: "a"}}}, Reply: bot.ReplyKeyboard{{"x"}}}).(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Fatal("inline keyboard should win over reply keyboard")
	}
}

func TestIsMemberStatus(t *testing.T) {
	for status, want := range map[string]bool{
		"creator": true, "administrator": true, "member": true,
		"restricted": false, "left": false, "kicked": false,
	} {
		if got := isMemberStatus(status); got != want {
			t.Errorf("isMemberStatus(%q) = %v, want %v", status, got, want)
		}
	}
}
