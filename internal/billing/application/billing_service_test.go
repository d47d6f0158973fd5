package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/wealthops/advisorybilling/internal/billing/domain"
	"github.com/wealthops/advisorybilling/internal/billing/infrastructure/messaging"
	"github.com/wealthops/advisorybilling/internal/billing/infrastructure/persistence/memory"
)

// recordingPublisher 记录发布的事件，供断言.
type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.FeeRunCompleted
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, event messaging.FeeRunCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(publisher messaging.EventPublisher) *BillingService {
	engine := domain.NewEngine(memory.NewScheduleRepository(), memory.NewClientRepository())
	return NewBillingService(engine, publisher, nil, discardLogger())
}

func TestRegisterFeeScheduleRejectsInvalid(t *testing.T) {
	svc := newTestService(nil)

	bad := &domain.FeeSchedule{FeeType: domain.FeeTypeFlatPercent, FlatPercent: 0.2}
	result, err := svc.RegisterFeeSchedule(context.Background(), bad)
	if err == nil {
		t.Fatal("expected registration error")
	}
	if !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Errorf("err = %v, want ErrInvalidSchedule", err)
	}
	if result.Valid {
		t.Errorf("validation result should be invalid: %+v", result)
	}
}

func TestRegisterFeeScheduleAssignsID(t *testing.T) {
	svc := newTestService(nil)

	s := &domain.FeeSchedule{FeeCode: "9", Name: "Custom", FeeType: domain.FeeTypeFlatPercent, FlatPercent: 0.003}
	if _, err := svc.RegisterFeeSchedule(context.Background(), s); err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.ID == "" {
		t.Error("expected generated schedule ID")
	}
	got, err := svc.GetFeeSchedule(context.Background(), s.ID)
	if err != nil || got.FeeCode != "9" {
		t.Errorf("lookup after register: %v %+v", err, got)
	}
}

func TestSeedDefaults(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if err := svc.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	schedules, err := svc.ListFeeSchedules(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(schedules) != 3 {
		t.Fatalf("expected 3 seeded schedules, got %d", len(schedules))
	}

	base, err := svc.GetFeeSchedule(ctx, "fee-schedule-0")
	if err != nil {
		t.Fatalf("get base schedule: %v", err)
	}
	if base.FeeType != domain.FeeTypeFlatPercent || base.FlatPercent != 0.0025 {
		t.Errorf("unexpected base schedule: %+v", base)
	}

	tiered, err := svc.GetFeeSchedule(ctx, "fee-schedule-5")
	if err != nil {
		t.Fatalf("get tiered schedule: %v", err)
	}
	if tiered.FeeType != domain.FeeTypeTiered || len(tiered.Tiers) != 4 {
		t.Fatalf("unexpected tiered schedule: %+v", tiered)
	}
	if !tiered.Tiers[3].Unbounded {
		t.Errorf("final seeded tier should be unbounded")
	}

	client, err := svc.GetClient(ctx, "default-client")
	if err != nil {
		t.Fatalf("get default client: %v", err)
	}
	if client.FeeScheduleID != "fee-schedule-0" {
		t.Errorf("default client schedule = %s", client.FeeScheduleID)
	}
}

func TestCalculateFeesPublishesEventOnSuccess(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := newTestService(publisher)
	ctx := context.Background()

	if err := svc.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	period := domain.QuarterlyPeriods(2024)[0]
	balances := []domain.AccountBalance{
		{AccountNumber: "ACC-1", AccountName: "Test", PortfolioValue: 1000000},
	}

	runID, result := svc.CalculateFees(ctx, balances, nil, period, "")
	if runID == "" {
		t.Error("expected run ID")
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.RunID != runID || event.PeriodID != period.ID || event.TotalAccounts != 1 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestCalculateFeesSkipsEventOnFailure(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := newTestService(publisher)

	// 未注册任何客户，计算必然失败
	period := domain.QuarterlyPeriods(2024)[0]
	balances := []domain.AccountBalance{
		{AccountNumber: "ACC-1", PortfolioValue: 100000},
	}

	_, result := svc.CalculateFees(context.Background(), balances, nil, period, "ghost")
	if result.Success {
		t.Fatal("expected failure")
	}
	if len(publisher.events) != 0 {
		t.Errorf("failed run must not publish events, got %d", len(publisher.events))
	}
}

func TestToRunDTORoundsMoney(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	if err := svc.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	period := domain.QuarterlyPeriods(2024)[0]
	balances := []domain.AccountBalance{
		{AccountNumber: "ACC-1", AccountName: "Test", PortfolioValue: 1000000},
	}
	runID, result := svc.CalculateFees(ctx, balances, nil, period, "")

	dto := ToRunDTO(runID, result)
	if dto.RunID != runID || !dto.Success {
		t.Errorf("unexpected dto header: %+v", dto)
	}
	if len(dto.Clients) != 1 || len(dto.Clients[0].Accounts) != 1 {
		t.Fatalf("unexpected dto shape")
	}
	acct := dto.Clients[0].Accounts[0]
	// 1,000,000 × 0.25% × 91/366，舍入到分
	if acct.FinalFee != "621.58" {
		t.Errorf("FinalFee = %s, want 621.58", acct.FinalFee)
	}
	if acct.PortfolioValue != "1000000.00" {
		t.Errorf("PortfolioValue = %s", acct.PortfolioValue)
	}
	if dto.TotalFees != "621.58" {
		t.Errorf("TotalFees = %s", dto.TotalFees)
	}
}
