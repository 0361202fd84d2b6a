// Package telegram adapts the Telegram Bot API to the bot package's Transport.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kmbp.app/ratingbot/internal/modules/bot"
)

type Client struct {
	api *tgbotapi.BotAPI
}

func New(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	log.Printf("🤖 Authorized on telegram as @%s", api.Self.UserName)
	return &Client{api: api}, nil
}

func (c *Client) SelfID() int64 {
	return c.api.Self.ID
}

func (c *Client) Username() string {
	return c.api.Self.UserName
}

func (c *Client) Send(ctx context.Context, msg bot.OutMessage) (int, error) {
	if msg.ThreadID != 0 {
		return c.sendToThread(msg)
	}

	var chattable tgbotapi.Chattable
	if msg.PhotoFileID != "" {
		photo := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileID(msg.PhotoFileID))
		photo.Caption = msg.Text
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyMarkup = replyMarkup(msg)
		chattable = photo
	} else {
		text := tgbotapi.NewMessage(msg.ChatID, msg.Text)
		text.ParseMode = tgbotapi.ModeHTML
		text.DisableWebPagePreview = true
		text.ReplyMarkup = replyMarkup(msg)
		chattable = text
	}

	sent, err := c.api.Send(chattable)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// sendToThread posts into a forum topic. The library has no thread field on
// its message config, so the request is built by hand.
func (c *Client) sendToThread(msg bot.OutMessage) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", msg.ChatID)
	params.AddNonZero("message_thread_id", msg.ThreadID)
	params.AddNonEmpty("text", msg.Text)
	params.AddNonEmpty("parse_mode", tgbotapi.ModeHTML)
	params.AddBool("disable_web_page_preview", true)

	resp, err := c.api.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, err
	}
	var sent tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return 0, fmt.Errorf("decode sent message: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) Edit(ctx context.Context, ref bot.MessageRef, text string, keyboard bot.InlineKeyboard) error {
	var chattable tgbotapi.Chattable
	if ref.HasPhoto {
		edit := tgbotapi.NewEditMessageCaption(ref.ChatID, ref.MessageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.ReplyMarkup = inlineMarkup(keyboard)
		chattable = edit
	} else {
		edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.DisableWebPagePreview = true
		edit.ReplyMarkup = inlineMarkup(keyboard)
		chattable = edit
	}

	_, err := c.api.Request(chattable)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return bot.ErrNotModified
	}
	return err
}

func (c *Client) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	_, err := c.api.Request(cb)
	return err
}

func (c *Client) Delete(ctx context.Context, ref bot.MessageRef) error {
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}

// IsMember counts owners, administrators and plain members of chatID.
func (c *Client) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, err
	}
	return isMemberStatus(member.Status), nil
}

func isMemberStatus(status string) bool {
	switch status {
	case "creator", "administrator", "member":
		return true
	}
	return false
}

func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	return c.api.GetFileDirectURL(fileID)
}

// Poll feeds long-polled updates to handle until ctx is cancelled.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, bot.Interaction)) {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Printf("⚠️ [telegram] failed to remove webhook before polling: %v", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)

	log.Println("📡 Polling telegram for updates")
	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if in, ok := ToInteraction(update); ok {
				handle(ctx, in)
			}
		}
	}
}

func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return err
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Printf("📡 Telegram webhook set to %s", url)
	return nil
}

// ParseWebhook reads one update from a webhook request.
func (c *Client) ParseWebhook(r *http.Request) (bot.Interaction, bool, error) {
	update, err := c.api.HandleUpdate(r)
	if err != nil {
		return bot.Interaction{}, false, err
	}
	in, ok := ToInteraction(*update)
	return in, ok, nil
}
