// internal/service/promotion/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/service/promotion/domain"
)

// DiscountService 定义了折扣服务提供的所有业务用例
type DiscountService struct {
	repo   domain.DiscountRepository
	rules  domain.RuleEngine // 为 nil 时不支持带规则的折扣码
	tracer trace.Tracer
	now    func() time.Time

	creators domain.CreatorDirectory // 可选
}

// NewDiscountService 创建一个新的折扣服务实例
func NewDiscountService(repo domain.DiscountRepository, rules domain.RuleEngine, tracer trace.Tracer) *DiscountService {
	return &DiscountService{
		repo:   repo,
		rules:  rules,
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetCreatorDirectory 开启创建人用户名的展示
func (s *DiscountService) SetCreatorDirectory(c domain.CreatorDirectory) {
	s.creators = c
}

// SetClock 替换时间来源（测试用）
func (s *DiscountService) SetClock(now func() time.Time) {
	s.now = now
}

// Evaluate 试算折扣金额，不修改任何状态
func (s *DiscountService) Evaluate(ctx context.Context, req EvaluateRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "service.EvaluateDiscount")
	defer span.End()
	span.SetAttributes(
		attribute.String("discount.code", domain.NormalizeCode(req.Code)),
		attribute.String("order.subtotal", req.Subtotal.String()),
	)

	d, amount, err := s.quote(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discount not applicable")
		return nil, err
	}

	final := req.Subtotal.Sub(amount)
	return &Quote{
		Code:           d.Code,
		Type:           d.Type,
		DiscountAmount: amount,
		FinalAmount:    final,
		FreeShipping:   d.FreeShipping(),
	}, nil
}

// Redeem 在提交时重新校验并原子地占用一次使用次数
func (s *DiscountService) Redeem(ctx context.Context, req EvaluateRequest) error {
	ctx, span := s.tracer.Start(ctx, "service.RedeemDiscount")
	defer span.End()
	code := domain.NormalizeCode(req.Code)
	span.SetAttributes(attribute.String("discount.code", code))

	if _, _, err := s.quote(ctx, req); err != nil {
		metrics.DiscountRedemptions.WithLabelValues(metrics.ResultFailed).Inc()
		span.RecordError(err)
		return err
	}
	// 试算到提交之间折扣码可能已经过期或被用完，由条件更新兜底
	if err := s.repo.IncrementUsage(ctx, code, s.now()); err != nil {
		metrics.DiscountRedemptions.WithLabelValues(metrics.ResultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "redeem failed")
		return err
	}

	metrics.DiscountRedemptions.WithLabelValues(metrics.ResultOK).Inc()
	logger.Ctx(ctx).Info().Str("code", code).Msg("discount redeemed")
	return nil
}

// ReleaseRedemption 是 Redeem 的补偿，归还一次使用次数
func (s *DiscountService) ReleaseRedemption(ctx context.Context, code string) error {
	ctx, span := s.tracer.Start(ctx, "service.ReleaseRedemption (Compensation)")
	defer span.End()
	code = domain.NormalizeCode(code)
	span.SetAttributes(attribute.String("discount.code", code))

	if err := s.repo.DecrementUsage(ctx, code); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "compensation failed")
	}
	logger.Ctx(ctx).Info().Str("code", code).Msg("Compensation: discount redemption released")
	return nil
}

func (s *DiscountService) quote(ctx context.Context, req EvaluateRequest) (*domain.Discount, decimal.Decimal, error) {
	d, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	amount, err := d.Quote(s.now(), req.Subtotal)
	if err != nil {
		return nil, decimal.Zero, errors.Wrapf(err, "code %s", d.Code)
	}
	if err := s.checkRule(d, req); err != nil {
		return nil, decimal.Zero, err
	}
	return d, amount, nil
}

func (s *DiscountService) checkRule(d *domain.Discount, req EvaluateRequest) error {
	if d.Rule == "" {
		return nil
	}
	if s.rules == nil {
		return errors.Wrapf(domain.ErrDiscountNotApplicable, "code %s: rule engine disabled", d.Code)
	}
	ok, err := s.rules.Evaluate(d.Rule, req.fact())
	if err != nil {
		return errors.Wrapf(err, "code %s", d.Code)
	}
	if !ok {
		return errors.Wrapf(domain.ErrDiscountNotApplicable, "code %s", d.Code)
	}
	return nil
}

func (s *DiscountService) validateRule(rule string) error {
	if rule == "" {
		return nil
	}
	if s.rules == nil {
		return errors.Wrap(domain.ErrInvalidRule, "rule engine disabled")
	}
	return s.rules.Validate(rule)
}

// Create 创建折扣码，code 统一转成大写并且必须唯一
func (s *DiscountService) Create(ctx context.Context, actorID int64, req *DiscountRequest) (*DiscountDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateDiscount")
	defer span.End()

	d := &domain.Discount{Status: domain.StatusActive, CreatedBy: actorID}
	req.applyTo(d)
	if err := s.validate(d); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if _, err := s.repo.FindByCode(ctx, d.Code); err == nil {
		return nil, errors.Wrapf(domain.ErrDuplicateCode, "code %s", d.Code)
	} else if !errors.Is(err, domain.ErrDiscountNotFound) {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("code", d.Code).Int64("actor", actorID).Msg("discount created")
	return s.present(ctx, ToDiscountDTO(d))[0], nil
}

// Update 修改折扣定义，已使用次数保持不变
func (s *DiscountService) Update(ctx context.Context, id int64, req *DiscountRequest) (*DiscountDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateDiscount")
	defer span.End()

	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	newCode := domain.NormalizeCode(req.Code)
	if newCode != d.Code {
		if other, err := s.repo.FindByCode(ctx, newCode); err == nil && other.ID != id {
			return nil, errors.Wrapf(domain.ErrDuplicateCode, "code %s", newCode)
		} else if err != nil && !errors.Is(err, domain.ErrDiscountNotFound) {
			return nil, err
		}
	}

	req.applyTo(d)
	if err := s.validate(d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.present(ctx, ToDiscountDTO(d))[0], nil
}

func (s *DiscountService) validate(d *domain.Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.validateRule(d.Rule)
}

// Deactivate 是软删除
func (s *DiscountService) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetStatus(ctx, id, domain.StatusInactive)
}

func (s *DiscountService) SetStatus(ctx context.Context, id int64, status string) (*DiscountDTO, error) {
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, st); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *DiscountService) GetByID(ctx context.Context, id int64) (*DiscountDTO, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, ToDiscountDTO(d))[0], nil
}

// GetByCode 只返回启用中的折扣码
func (s *DiscountService) GetByCode(ctx context.Context, code string) (*DiscountDTO, error) {
	d, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusActive {
		return nil, errors.Wrapf(domain.ErrDiscountNotFound, "code %s", d.Code)
	}
	return s.present(ctx, ToDiscountDTO(d))[0], nil
}

func (s *DiscountService) ListActive(ctx context.Context) ([]*DiscountDTO, error) {
	ds, err := s.repo.List(ctx, domain.DiscountFilter{Status: domain.StatusActive})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, toDTOs(ds)...), nil
}

// ListValid 返回此刻可以直接使用的折扣码
func (s *DiscountService) ListValid(ctx context.Context) ([]*DiscountDTO, error) {
	ds, err := s.repo.List(ctx, domain.DiscountFilter{Status: domain.StatusActive})
	if err != nil {
		return nil, err
	}
	now := s.now()
	valid := ds[:0]
	for _, d := range ds {
		if d.CheckUsable(now) == nil {
			valid = append(valid, d)
		}
	}
	return s.present(ctx, toDTOs(valid)...), nil
}

func (s *DiscountService) ListByCreator(ctx context.Context, creatorID int64) ([]*DiscountDTO, error) {
	ds, err := s.repo.List(ctx, domain.DiscountFilter{CreatedBy: creatorID})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, toDTOs(ds)...), nil
}

// Search 按 code 或 name 模糊匹配，包含已停用的折扣码
func (s *DiscountService) Search(ctx context.Context, keyword string) ([]*DiscountDTO, error) {
	ds, err := s.repo.List(ctx, domain.DiscountFilter{Keyword: keyword})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, toDTOs(ds)...), nil
}

// present 补全创建人用户名；查询失败只影响展示
func (s *DiscountService) present(ctx context.Context, dtos ...*DiscountDTO) []*DiscountDTO {
	if s.creators == nil || len(dtos) == 0 {
		return dtos
	}
	seen := make(map[int64]bool, len(dtos))
	ids := make([]int64, 0, len(dtos))
	for _, dto := range dtos {
		if dto.CreatedBy > 0 && !seen[dto.CreatedBy] {
			seen[dto.CreatedBy] = true
			ids = append(ids, dto.CreatedBy)
		}
	}
	names, err := s.creators.Usernames(ctx, ids)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to resolve discount creators")
		return dtos
	}
	for _, dto := range dtos {
		dto.CreatedByUsername = names[dto.CreatedBy]
	}
	return dtos
}
