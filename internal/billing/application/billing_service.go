// Package application 承载计费服务的用例逻辑、DTO 与注册边界.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wealthops/advisorybilling/internal/billing/domain"
	"github.com/wealthops/advisorybilling/internal/billing/infrastructure/messaging"
	"github.com/wealthops/advisorybilling/pkg/metrics"
)

// BillingService 计费应用服务.
// 封装引擎的注册与计算用例：注册前做建议性校验，
// 计算后记录日志、指标并发布运行完成事件.
type BillingService struct {
	engine    *domain.Engine
	publisher messaging.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewBillingService 创建计费应用服务.
func NewBillingService(
	engine *domain.Engine,
	publisher messaging.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BillingService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &BillingService{
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("service", "billing_application"),
	}
}

// RegisterFeeSchedule 校验并注册费率表.
// 校验失败直接拒绝；引擎在计算时不会复核，未经此入口注册的
// 费率表照样会被使用，把关是注册方的责任.
func (s *BillingService) RegisterFeeSchedule(ctx context.Context, schedule *domain.FeeSchedule) (domain.ValidationResult, error) {
	if schedule.ID == "" {
		schedule.ID = "fee-schedule-" + uuid.NewString()
	}

	result := domain.ValidateSchedule(schedule)
	if !result.Valid {
		return result, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, result.Errors)
	}
	for _, w := range result.Warnings {
		s.logger.Warn("fee schedule validation warning", "schedule_id", schedule.ID, "warning", w)
	}

	if err := s.engine.RegisterFeeSchedule(ctx, schedule); err != nil {
		return result, err
	}
	s.logger.Info("fee schedule registered",
		"schedule_id", schedule.ID, "fee_code", schedule.FeeCode, "fee_type", schedule.FeeType)
	return result, nil
}

// RegisterLegacySchedule 从旧系统扁平记录构造并注册费率表.
func (s *BillingService) RegisterLegacySchedule(ctx context.Context, row domain.LegacyScheduleRow) (*domain.FeeSchedule, error) {
	schedule := domain.BuildFromLegacyRow(row)
	if _, err := s.RegisterFeeSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// GetFeeSchedule 按 ID 查询费率表.
func (s *BillingService) GetFeeSchedule(ctx context.Context, id string) (*domain.FeeSchedule, error) {
	return s.engine.GetFeeSchedule(ctx, id)
}

// ListFeeSchedules 列出全部费率表.
func (s *BillingService) ListFeeSchedules(ctx context.Context) ([]*domain.FeeSchedule, error) {
	return s.engine.ListFeeSchedules(ctx)
}

// RegisterClient 注册客户.
func (s *BillingService) RegisterClient(ctx context.Context, client *domain.Client) error {
	if client.ID == "" {
		client.ID = "client-" + uuid.NewString()
	}
	if err := s.engine.RegisterClient(ctx, client); err != nil {
		return err
	}
	s.logger.Info("client registered", "client_id", client.ID, "default_schedule", client.FeeScheduleID)
	return nil
}

// GetClient 按 ID 查询客户.
func (s *BillingService) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	return s.engine.GetClient(ctx, id)
}

// CalculateFees 执行一次计费运行.
// 返回运行 ID 与完整结果；成功时发布运行完成事件，
// 事件发布失败只记日志，不影响计算结果.
func (s *BillingService) CalculateFees(
	ctx context.Context,
	balances []domain.AccountBalance,
	positions []domain.AccountPosition,
	period domain.BillingPeriod,
	clientID string,
) (string, *domain.FeeCalculationResult) {
	runID := uuid.NewString()
	s.logger.Info("fee calculation started",
		"run_id", runID, "period", period.Name, "accounts", len(balances), "positions", len(positions))

	result := s.engine.CalculateFeesForPeriod(ctx, balances, positions, period, clientID)

	if s.metrics != nil {
		s.metrics.ObserveFeeRun(result.Success, result.Summary.TotalAccounts,
			time.Duration(result.ProcessingTimeMs)*time.Millisecond)
	}

	if result.Success {
		event := messaging.NewRunCompletedEvent(runID, result)
		if err := s.publisher.PublishRunCompleted(ctx, event); err != nil {
			s.logger.Error("failed to publish fee run event", "run_id", runID, "error", err)
		}
	}

	s.logger.Info("fee calculation finished",
		"run_id", runID,
		"success", result.Success,
		"clients", result.Summary.TotalClients,
		"accounts", result.Summary.TotalAccounts,
		"total_fees", result.Summary.TotalFees,
		"errors", len(result.Errors),
		"duration_ms", result.ProcessingTimeMs)

	return runID, result
}

// SeedDefaults 注册与旧系统一致的缺省费率表和缺省客户，便于接线验证.
func (s *BillingService) SeedDefaults(ctx context.Context) error {
	rows := []domain.LegacyScheduleRow{
		{FeeCode: "0", FlatPercent: 0.0025},
		{FeeCode: "1", FlatPercent: 0.005},
		{
			FeeCode: "5",
			TierSlots: [domain.MaxTiers]domain.LegacyTierSlot{
				{Percent: 0.01, Limit: 249999.99, Cap: 2500},
				{Percent: 0.008, Limit: 499999.99, Cap: 2000},
				{Percent: 0.005, Limit: 999999.99, Cap: 2500},
				{Percent: 0.0025, Limit: 0, Cap: 0}, // 末层无上限
			},
		},
	}
	for _, row := range rows {
		if _, err := s.RegisterLegacySchedule(ctx, row); err != nil {
			return fmt.Errorf("seed schedule %s: %w", row.FeeCode, err)
		}
	}
	return s.RegisterClient(ctx, domain.DefaultClient())
}
