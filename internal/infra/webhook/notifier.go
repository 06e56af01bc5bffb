package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ordermgmt/internal/domain/model"

	"go.uber.org/zap"
)

// 2xx以外の応答
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// 送信するbody
type Payload struct {
	EventType model.LifecycleEvent `json:"event_type"`
	Timestamp time.Time            `json:"timestamp"`
	Data      model.Order          `json:"data"`
}

// Notifier はイベント種別ごとの宛先URLへPOSTする。リトライはしない。
type Notifier struct {
	client *http.Client
	urls   map[model.LifecycleEvent]string
	log    *zap.Logger
	now    func() time.Time
}

func NewNotifier(client *http.Client, urls map[model.LifecycleEvent]string, log *zap.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Notifier{
		client: client,
		urls:   urls,
		log:    log,
		now:    time.Now,
	}
}

// 宛先未設定ならログだけ出してnil
func (n *Notifier) Notify(ctx context.Context, event model.LifecycleEvent, order model.Order) error {
	url := n.urls[event]
	if url == "" {
		n.log.Warn("no webhook url configured", zap.String("event", string(event)))
		return nil
	}

	body, err := json.Marshal(Payload{
		EventType: event,
		Timestamp: n.now().UTC(),
		Data:      order,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event))

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Error("webhook request failed",
			zap.String("event", string(event)),
			zap.String("order_id", order.ID),
			zap.Error(err))
		return fmt.Errorf("send webhook %s: %w", event, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.log.Error("webhook rejected",
			zap.String("event", string(event)),
			zap.String("order_id", order.ID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: %s status %d", ErrDeliveryFailed, event, resp.StatusCode)
	}
	return nil
}
