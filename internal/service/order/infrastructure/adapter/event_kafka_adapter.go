package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/order/domain"
)

// HeaderEventType 标识消息体的事件类型
const HeaderEventType = "event-type"

// EventKafkaAdapter 实现了 port.EventPublisher 接口，事件写入 order-events 主题。
type EventKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewEventKafkaAdapter(writer mq.MessageWriter) *EventKafkaAdapter {
	return &EventKafkaAdapter{writer: writer}
}

func (a *EventKafkaAdapter) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", event.EventType())
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(event.Key()), body,
		kafka.Header{Key: HeaderEventType, Value: []byte(event.EventType())})
}

// CheckoutKafkaAdapter 实现了 port.CheckoutQueue 接口。
// 以客户ID为 Key，同一客户的下单请求按顺序消费。
type CheckoutKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewCheckoutKafkaAdapter(writer mq.MessageWriter) *CheckoutKafkaAdapter {
	return &CheckoutKafkaAdapter{writer: writer}
}

func (a *CheckoutKafkaAdapter) Enqueue(ctx context.Context, cmd *domain.CheckoutRequested) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return errors.Wrap(err, "marshal checkout request")
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(strconv.FormatInt(cmd.CustomerID, 10)), body)
}
