package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/strategy"
)

const (
	pushoverComponentName = "middleware.pushover"
	pushoverEndpoint      = "https://api.pushover.net/1/messages.json"
)

type Pushover struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string

	user   string
	token  string
	device string
}

func NewPushover(logger *zap.Logger, user, token, device string) *Pushover {
	return &Pushover{
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: pushoverEndpoint,
		user:     user,
		token:    token,
		device:   device,
	}
}

func (p *Pushover) WithPositionClosed(handler bus.EventHandler[*strategy.Position]) bus.EventHandler[*strategy.Position] {
	return func(ctx context.Context, position *strategy.Position) {
		if trade, ok := position.Trade(); ok {
			msg := fmt.Sprintf("id = %d\nsymbol = %s\npnl = %s", trade.PositionId, trade.Symbol, trade.NetProfit.Rescale(2))
			go func() {
				if err := p.Notify(context.WithoutCancel(ctx), "Position Closed", msg); err != nil {
					p.logger.Warn("unable to send notification",
						zap.String("component", pushoverComponentName),
						zap.Error(err))
				}
			}()
		}
		handler(ctx, position)
	}
}

func (p *Pushover) Notify(ctx context.Context, title, message string) error {
	data := url.Values{}
	data.Set("token", p.token)
	data.Set("user", p.user)
	data.Set("device", p.device)
	data.Set("title", title)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover post failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pushover error: %s", body)
	}

	return nil
}
