package http

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/internal/modules/bot"
)

// UpdateParser decodes one webhook delivery into an interaction. ok is false
// for updates the bot does not handle.
type UpdateParser interface {
	ParseWebhook(r *http.Request) (in bot.Interaction, ok bool, err error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, in bot.Interaction)
}

type WebhookHandler struct {
	ctx        context.Context
	parser     UpdateParser
	dispatcher Dispatcher
}

// NewWebhookHandler hands parsed updates to dispatcher under ctx, which
// outlives the HTTP request so handlers finish after the 200 is sent.
func NewWebhookHandler(ctx context.Context, parser UpdateParser, dispatcher Dispatcher) *WebhookHandler {
	return &WebhookHandler{ctx: ctx, parser: parser, dispatcher: dispatcher}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	in, ok, err := h.parser.ParseWebhook(c.Request)
	if err != nil {
		log.Printf("⚠️ [webhook] rejected update: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	if ok {
		h.dispatcher.Dispatch(h.ctx, in)
	}
	c.Status(http.StatusOK)
}
