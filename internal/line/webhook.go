package line

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v7/linebot"
	"go.uber.org/zap"

	"running-tracker/internal/service"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// Webhook handles inbound events from the LINE platform: follows, unfollows
// and the linking-code exchange.
type Webhook struct {
	client  *Client
	linking *service.LinkingService
	log     *zap.Logger
}

func NewWebhook(client *Client, linking *service.LinkingService, log *zap.Logger) *Webhook {
	return &Webhook{client: client, linking: linking, log: log}
}

// Handle is the gin handler for the webhook endpoint. A bad signature is
// rejected with 401; after that every event is acknowledged with 200 no
// matter what happened internally, so the platform does not retry-storm us.
func (w *Webhook) Handle(c *gin.Context) {
	events, err := w.client.ParseRequest(c.Request)
	if err != nil {
		if errors.Is(err, linebot.ErrInvalidSignature) {
			w.log.Warn("webhook signature mismatch")
			c.String(http.StatusUnauthorized, "invalid signature")
			return
		}
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	for _, event := range events {
		if err := w.handleEvent(c.Request.Context(), event); err != nil {
			w.log.Error("handle line event",
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
	}

	c.String(http.StatusOK, "OK")
}

func (w *Webhook) handleEvent(ctx context.Context, event *linebot.Event) error {
	switch event.Type {
	case linebot.EventTypeFollow:
		return w.handleFollow(ctx, event)
	case linebot.EventTypeUnfollow:
		return w.handleUnfollow(ctx, event)
	case linebot.EventTypeMessage:
		if msg, ok := event.Message.(*linebot.TextMessage); ok {
			return w.handleText(ctx, event, msg.Text)
		}
		return nil
	default:
		w.log.Debug("unhandled event type", zap.String("type", string(event.Type)))
		return nil
	}
}

func (w *Webhook) handleFollow(ctx context.Context, event *linebot.Event) error {
	profile, err := w.client.Profile(ctx, event.Source.UserID)
	if err != nil {
		return err
	}
	if err := w.linking.RememberPending(ctx, profile, time.Now()); err != nil {
		return err
	}
	return w.client.Reply(ctx, event.ReplyToken, welcomeText(profile.DisplayName))
}

func (w *Webhook) handleUnfollow(ctx context.Context, event *linebot.Event) error {
	// No reply token on unfollow; just drop the link.
	return w.linking.DisconnectByLineUserID(ctx, event.Source.UserID)
}

func (w *Webhook) handleText(ctx context.Context, event *linebot.Event, text string) error {
	code := strings.ToUpper(strings.TrimSpace(text))
	if !codePattern.MatchString(code) {
		return w.client.Reply(ctx, event.ReplyToken, helpText)
	}

	profile, err := w.client.Profile(ctx, event.Source.UserID)
	if err != nil {
		return err
	}

	user, err := w.linking.Redeem(ctx, code, profile, time.Now())
	switch {
	case errors.Is(err, service.ErrCodeNotFound):
		return w.client.Reply(ctx, event.ReplyToken, codeNotFoundText)
	case errors.Is(err, service.ErrCodeExpired):
		return w.client.Reply(ctx, event.ReplyToken, codeExpiredText)
	case errors.Is(err, service.ErrCodeUsed):
		return w.client.Reply(ctx, event.ReplyToken, codeUsedText)
	case err != nil:
		if replyErr := w.client.Reply(ctx, event.ReplyToken, internalErrText); replyErr != nil {
			w.log.Warn("reply after redeem failure", zap.Error(replyErr))
		}
		return err
	}

	w.log.Info("line account linked", zap.String("user_id", user.ID))
	return w.client.Reply(ctx, event.ReplyToken, linkedText(profile.DisplayName))
}
