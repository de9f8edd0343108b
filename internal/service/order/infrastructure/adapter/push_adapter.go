package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/push"
	"marketplace/internal/service/order/domain"
)

// PushMessage 是推送给浏览器的消息格式
type PushMessage struct {
	Type    string       `json:"type"`
	Payload domain.Event `json:"payload"`
}

// PushAdapter 实现了 port.EventPublisher 接口，把事件推送给订单所属客户的在线连接
type PushAdapter struct {
	hub *push.Hub
}

func NewPushAdapter(hub *push.Hub) *PushAdapter {
	return &PushAdapter{hub: hub}
}

func (a *PushAdapter) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(PushMessage{Type: event.EventType(), Payload: event})
	if err != nil {
		return errors.Wrapf(err, "marshal %s", event.EventType())
	}
	n := a.hub.Send(event.CustomerRef(), body)
	logger.Ctx(ctx).Debug().Str("event", event.EventType()).Int64("customer_id", event.CustomerRef()).
		Int("connections", n).Msg("event pushed")
	return nil
}
