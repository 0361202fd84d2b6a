// Package bot turns chat interactions into gate checks, flow transitions and
// ledger calls, and renders the results back through a Transport.
package bot

import (
	"context"
	"errors"

	"kmbp.app/ratingbot/internal/entity"
)

// ErrNotModified is returned by Transport.Edit when the new content equals the old one.
var ErrNotModified = errors.New("message is not modified")

// Button is one inline button carrying callback data.
type Button struct {
	Text string
	Data string
}

type InlineKeyboard [][]Button

// ReplyKeyboard is the persistent keyboard under the input field.
type ReplyKeyboard [][]string

// OutMessage is sent as a photo with caption when PhotoFileID is set.
type OutMessage struct {
	ChatID      int64
	ThreadID    int
	Text        string
	PhotoFileID string
	Inline      InlineKeyboard
	Reply       ReplyKeyboard
}

// MessageRef points to a message the bot sent earlier.
type MessageRef struct {
	ChatID    int64
	MessageID int
	HasPhoto  bool
}

type Transport interface {
	Send(ctx context.Context, msg OutMessage) (int, error)
	Edit(ctx context.Context, ref MessageRef, text string, keyboard InlineKeyboard) error
	Answer(ctx context.Context, callbackID, text string, alert bool) error
	Delete(ctx context.Context, ref MessageRef) error
}

// Callback is a press on an inline button.
type Callback struct {
	ID      string
	Data    string
	Message MessageRef
}

// Interaction is one inbound update, reduced to what the handlers need.
type Interaction struct {
	Actor       entity.Actor
	ChatID      int64
	Text        string
	PhotoFileID string
	Callback    *Callback
}
