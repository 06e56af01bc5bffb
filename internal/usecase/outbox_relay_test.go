package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ordermgmt/internal/domain/model"
	"ordermgmt/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func outboxRec(t *testing.T, id int64, ch model.OutboxChannel, attempts int) model.NotificationOutbox {
	t.Helper()
	payload, err := json.Marshal(createdOrder())
	require.NoError(t, err)
	return model.NotificationOutbox{
		ID:            id,
		Channel:       ch,
		Event:         model.EventOrderCreated,
		OrderID:       "o-1",
		Payload:       string(payload),
		Attempts:      attempts,
		NextAttemptAt: testNow,
	}
}

func newRelay(outbox *OutboxRepoMock, notifier *NotifierMock, publisher *PublisherMock) *usecase.OutboxRelay {
	return usecase.NewOutboxRelay(outbox, notifier, publisher, fixedClock{t: testNow}, nil, nil,
		usecase.OutboxRelayConfig{Interval: time.Second, Batch: 10, MaxAttempts: 3})
}

func TestOutboxRelay_RunOnce(t *testing.T) {
	outbox := new(OutboxRepoMock)
	notifier := new(NotifierMock)
	publisher := new(PublisherMock)

	bad := outboxRec(t, 3, model.OutboxChannelWebhook, 1)
	bad.Payload = "{broken"

	outbox.On("FetchDue", mock.Anything, testNow, 10).Return([]model.NotificationOutbox{
		outboxRec(t, 1, model.OutboxChannelWebhook, 1),
		outboxRec(t, 2, model.OutboxChannelQueue, 1),
		bad,
		outboxRec(t, 4, model.OutboxChannelQueue, 2),
	}, nil).Once()

	notifier.On("Notify", mock.Anything, model.EventOrderCreated, mock.MatchedBy(func(o model.Order) bool {
		return o.ID == "o-1" && len(o.Items) == 2
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, "order-created", "o-1", mock.Anything).Return(errors.New("broker down")).Twice()

	//1: 送信成功
	outbox.On("MarkSent", mock.Anything, int64(1), testNow).Return(nil).Once()
	//2: 2回目の失敗 → 再スケジュール（1s * 1.5 前後）
	outbox.On("MarkRetry", mock.Anything, int64(2), 2, "broker down", mock.MatchedBy(func(next time.Time) bool {
		d := next.Sub(testNow)
		return d > 0 && d <= 3*time.Second
	})).Return(nil).Once()
	//3: payloadが壊れている → 即dead
	outbox.On("MarkDead", mock.Anything, int64(3), 2, mock.Anything, testNow).Return(nil).Once()
	//4: 上限到達 → dead
	outbox.On("MarkDead", mock.Anything, int64(4), 3, "broker down", testNow).Return(nil).Once()

	sent, err := newRelay(outbox, notifier, publisher).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	outbox.AssertExpectations(t)
	notifier.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOutboxRelay_DeliveryIsBounded(t *testing.T) {
	outbox := new(OutboxRepoMock)
	notifier := new(NotifierMock)

	outbox.On("FetchDue", mock.Anything, testNow, 10).
		Return([]model.NotificationOutbox{outboxRec(t, 1, model.OutboxChannelWebhook, 1)}, nil).Once()

	//宛先が応答しない
	notifier.On("Notify", mock.Anything, model.EventOrderCreated, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}).
		Return(context.DeadlineExceeded).Once()
	outbox.On("MarkRetry", mock.Anything, int64(1), 2, context.DeadlineExceeded.Error(), mock.Anything).Return(nil).Once()

	relay := usecase.NewOutboxRelay(outbox, notifier, new(PublisherMock), fixedClock{t: testNow}, nil, nil,
		usecase.OutboxRelayConfig{Interval: time.Second, Batch: 10, MaxAttempts: 3, Timeout: 30 * time.Millisecond})

	start := time.Now()
	sent, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Less(t, time.Since(start), 2*time.Second)

	outbox.AssertExpectations(t)
}

func TestOutboxRelay_FetchFailure(t *testing.T) {
	outbox := new(OutboxRepoMock)
	outbox.On("FetchDue", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db gone"))

	sent, err := newRelay(outbox, new(NotifierMock), new(PublisherMock)).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, sent)
}

func TestOutboxRelay_RunStopsOnCancel(t *testing.T) {
	outbox := new(OutboxRepoMock)
	outbox.On("FetchDue", mock.Anything, mock.Anything, mock.Anything).Return([]model.NotificationOutbox{}, nil)

	relay := usecase.NewOutboxRelay(outbox, new(NotifierMock), new(PublisherMock), fixedClock{t: testNow}, nil, nil,
		usecase.OutboxRelayConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.NotEmpty(t, outbox.Calls)
}
