package interfaces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/order/domain"
)

// MessageReader 抽象了 kafka.Reader 的手动提交模式
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// CheckoutHandler 处理一条异步下单命令
type CheckoutHandler interface {
	HandleCheckoutRequested(ctx context.Context, cmd *domain.CheckoutRequested) error
}

var errMalformedMessage = errors.New("malformed checkout message")

// CheckoutConsumer 是一个驱动适配器，它监听下单队列并驱动应用服务。
type CheckoutConsumer struct {
	reader     MessageReader
	handler    CheckoutHandler
	deadLetter mq.MessageWriter
	retryDelay time.Duration
}

// NewCheckoutConsumer 创建消费者；deadLetter 为 nil 时需要转入死信的消息只记日志
func NewCheckoutConsumer(reader MessageReader, handler CheckoutHandler, deadLetter mq.MessageWriter) *CheckoutConsumer {
	return &CheckoutConsumer{reader: reader, handler: handler, deadLetter: deadLetter, retryDelay: time.Second}
}

// Run 阻塞消费直到 ctx 结束
func (c *CheckoutConsumer) Run(ctx context.Context) error {
	log := logger.Ctx(ctx)
	log.Info().Msg("✅ checkout consumer started")
	defer log.Info().Msg("🛑 checkout consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			log.Error().Err(err).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		if err := c.process(msgCtx, msg); err != nil {
			// 服务正在退出，不提交，重启后重新投递
			if ctx.Err() != nil {
				return nil
			}
			c.onFailure(msgCtx, msg, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

func (c *CheckoutConsumer) process(ctx context.Context, msg kafka.Message) error {
	var cmd domain.CheckoutRequested
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return errors.Wrap(errMalformedMessage, err.Error())
	}
	if cmd.EventID == "" {
		return errors.Wrap(errMalformedMessage, "missing event id")
	}
	return c.handler.HandleCheckoutRequested(ctx, &cmd)
}

// onFailure 业务拒绝已由应用层发布 OrderCreationFailed，只记日志；
// 无法解析的消息和基础设施错误（数据库、Redis 等不可用）转入死信，由人工或重放任务处理
func (c *CheckoutConsumer) onFailure(ctx context.Context, msg kafka.Message, err error) {
	if isRejection(err) {
		logger.Ctx(ctx).Warn().Err(err).Str("key", string(msg.Key)).Msg("checkout rejected")
		return
	}
	logger.Ctx(ctx).Error().Err(err).
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("🚨 dead letter: checkout message could not be processed")
	if c.deadLetter == nil {
		return
	}
	if werr := mq.ProduceMessage(ctx, c.deadLetter, msg.Key, msg.Value, mq.DeadLetterHeaders(msg, err)...); werr != nil {
		logger.Ctx(ctx).Error().Err(werr).Msg("failed to forward message to dead letter topic")
	}
}

// isRejection 判断是否为确定性的业务拒绝，重放也不会成功
func isRejection(err error) bool {
	if errors.Is(err, errMalformedMessage) {
		return false
	}
	return StatusFor(err) < http.StatusInternalServerError
}
