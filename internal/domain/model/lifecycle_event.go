package model

// 注文ライフサイクルのイベント種別。webhookのevent typeとキューのtopic名を兼ねる。
type LifecycleEvent string

const (
	EventOrderCreated   LifecycleEvent = "order-created"
	EventOrderCancelled LifecycleEvent = "order-cancelled"
)
