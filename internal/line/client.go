// Package line wraps the LINE Messaging API: outbound push/reply messages,
// profile lookups and the inbound webhook.
package line

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"running-tracker/internal/service"
)

// pushTimeout bounds every outbound LINE call so one unresponsive send
// cannot stall a reminder sweep.
const pushTimeout = 10 * time.Second

// Client talks to the LINE Messaging API. SDK errors never contain the
// channel token, so wrapping them is safe to log.
type Client struct {
	bot *linebot.Client
}

func NewClient(channelSecret, channelToken string) (*Client, error) {
	bot, err := linebot.New(channelSecret, channelToken,
		linebot.WithHTTPClient(&http.Client{Timeout: pushTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create line client: %w", err)
	}
	return &Client{bot: bot}, nil
}

// Push sends a text message to a LINE user.
func (c *Client) Push(ctx context.Context, lineUserID, text string) error {
	if _, err := c.bot.PushMessage(lineUserID, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// Reply answers an inbound event using its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if _, err := c.bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

// Profile fetches the LINE profile of a user.
func (c *Client) Profile(ctx context.Context, lineUserID string) (service.LineProfile, error) {
	res, err := c.bot.GetProfile(lineUserID).WithContext(ctx).Do()
	if err != nil {
		return service.LineProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return service.LineProfile{
		UserID:      res.UserID,
		DisplayName: res.DisplayName,
		PictureURL:  res.PictureURL,
	}, nil
}

// ParseRequest validates the webhook signature and decodes the events.
func (c *Client) ParseRequest(r *http.Request) ([]*linebot.Event, error) {
	return c.bot.ParseRequest(r)
}
