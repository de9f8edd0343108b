package adapter

import (
	"context"
	"errors"

	"marketplace/internal/service/order/domain"
	"marketplace/internal/service/order/domain/port"
)

// FanoutPublisher 把同一个事件交给多个发布者，单个失败不影响其他
type FanoutPublisher struct {
	publishers []port.EventPublisher
}

func NewFanoutPublisher(publishers ...port.EventPublisher) *FanoutPublisher {
	return &FanoutPublisher{publishers: publishers}
}

func (f *FanoutPublisher) Publish(ctx context.Context, event domain.Event) error {
	var errs error
	for _, p := range f.publishers {
		errs = errors.Join(errs, p.Publish(ctx, event))
	}
	return errs
}
