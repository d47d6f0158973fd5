package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Engine 费用计算引擎.
// 计算是同步单遍的，一次调用处理完整批次，无 I/O 与后台任务。
// 仓储本身不做并发控制：注册与计算并发交叠属于数据竞争，
// 由调用方串行化（单写者，或注册全部完成后再开始计算）.
type Engine struct {
	schedules ScheduleRepository
	clients   ClientRepository
	now       func() time.Time // 可注入时钟，便于测试
}

// NewEngine 创建费用计算引擎.
func NewEngine(schedules ScheduleRepository, clients ClientRepository) *Engine {
	return &Engine{
		schedules: schedules,
		clients:   clients,
		now:       time.Now,
	}
}

// WithClock 替换引擎时钟，返回引擎自身便于链式构造.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RegisterFeeSchedule 注册费率表.
// 校验是注册方的责任：未经校验注册的费率表仍会被使用.
func (e *Engine) RegisterFeeSchedule(ctx context.Context, s *FeeSchedule) error {
	return e.schedules.Save(ctx, s)
}

// GetFeeSchedule 按 ID 查询费率表.
func (e *Engine) GetFeeSchedule(ctx context.Context, id string) (*FeeSchedule, error) {
	return e.schedules.Get(ctx, id)
}

// ListFeeSchedules 列出全部费率表.
func (e *Engine) ListFeeSchedules(ctx context.Context) ([]*FeeSchedule, error) {
	return e.schedules.List(ctx)
}

// RegisterClient 注册客户.
func (e *Engine) RegisterClient(ctx context.Context, c *Client) error {
	return e.clients.Save(ctx, c)
}

// GetClient 按 ID 查询客户.
func (e *Engine) GetClient(ctx context.Context, id string) (*Client, error) {
	return e.clients.Get(ctx, id)
}

// CalculateFeesForPeriod 计算整个批次在指定计费周期的费用.
// 单账户的失败被隔离记录后继续处理，不会中断整个批次；
// 账户循环之外的意外故障统一折叠为一条 calculation 错误，
// 此时 Success 为 false 且结果集合为空.
func (e *Engine) CalculateFeesForPeriod(
	ctx context.Context,
	balances []AccountBalance,
	positions []AccountPosition,
	period BillingPeriod,
	clientID string,
) (result *FeeCalculationResult) {
	start := e.now()
	var errs, warns []CalculationIssue

	defer func() {
		if r := recover(); r != nil {
			errs = append(errs, CalculationIssue{
				Kind:     IssueCalculation,
				Code:     CodeCalculationError,
				Message:  fmt.Sprintf("unexpected error: %v", r),
				Severity: SeverityError,
			})
			result = &FeeCalculationResult{
				Success:            false,
				ClientCalculations: []ClientFeeCalculation{},
				Summary:            e.emptySummary(period),
				Errors:             errs,
				Warnings:           warns,
				ProcessingTimeMs:   e.now().Sub(start).Milliseconds(),
			}
		}
	}()

	clientCalculations := []ClientFeeCalculation{}

	for _, group := range groupAccountsByClient(balances, clientID) {
		client, err := e.clients.Get(ctx, group.clientID)
		if err != nil {
			errs = append(errs, CalculationIssue{
				Kind:     IssueValidation,
				Code:     CodeClientNotFound,
				Message:  fmt.Sprintf("client %s not found", group.clientID),
				ClientID: group.clientID,
				Severity: SeverityError,
			})
			continue
		}

		calc := e.calculateFeesForClient(ctx, client, group.accounts, positions, period, &errs)
		clientCalculations = append(clientCalculations, calc)
	}

	return &FeeCalculationResult{
		Success:            len(errs) == 0,
		ClientCalculations: clientCalculations,
		Summary:            e.buildSummary(clientCalculations, period),
		Errors:             errs,
		Warnings:           warns,
		ProcessingTimeMs:   e.now().Sub(start).Milliseconds(),
	}
}

// calculateFeesForClient 计算单个客户的全部账户并逐项汇总.
// 某个账户失败只追加错误记录，其余账户照常聚合.
func (e *Engine) calculateFeesForClient(
	ctx context.Context,
	client *Client,
	accounts []AccountBalance,
	positions []AccountPosition,
	period BillingPeriod,
	errs *[]CalculationIssue,
) ClientFeeCalculation {
	calc := ClientFeeCalculation{
		ClientID:            client.ID,
		ClientName:          client.Name,
		BillingPeriod:       period,
		TotalAccounts:       len(accounts),
		AccountCalculations: []AccountFeeCalculation{},
		CalculationDate:     e.now(),
		Status:              "calculated",
	}

	for _, account := range accounts {
		accountCalc, err := e.safeCalculateAccount(ctx, client, account, positions, period)
		if err != nil {
			*errs = append(*errs, CalculationIssue{
				Kind:          IssueCalculation,
				Code:          CodeAccountError,
				Message:       fmt.Sprintf("error calculating fees for account %s: %v", account.AccountNumber, err),
				AccountNumber: account.AccountNumber,
				ClientID:      client.ID,
				Severity:      SeverityError,
			})
			continue
		}

		calc.AccountCalculations = append(calc.AccountCalculations, *accountCalc)
		calc.TotalPortfolioValue += accountCalc.TotalPortfolioValue
		calc.TotalExcludedValue += accountCalc.ExcludedValue
		calc.TotalBillableValue += accountCalc.BillableValue
		calc.TotalCalculatedFees += accountCalc.CalculatedFee
		calc.TotalAdjustments += accountCalc.TotalAdjustments
		calc.TotalFinalFees += accountCalc.FinalFee
	}

	return calc
}

// safeCalculateAccount 把单账户计算中的 panic 转成 error，实现故障隔离.
func (e *Engine) safeCalculateAccount(
	ctx context.Context,
	client *Client,
	account AccountBalance,
	positions []AccountPosition,
	period BillingPeriod,
) (calc *AccountFeeCalculation, err error) {
	defer func() {
		if r := recover(); r != nil {
			calc = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.calculateFeesForAccount(ctx, client, account, positions, period)
}

// calculateFeesForAccount 单账户计费算法，步骤顺序不可调整：
// 费率表解析 -> 组合分析（排除） -> 基础费 -> 日折算 -> 调整 -> 钳位.
func (e *Engine) calculateFeesForAccount(
	ctx context.Context,
	client *Client,
	account AccountBalance,
	positions []AccountPosition,
	period BillingPeriod,
) (*AccountFeeCalculation, error) {
	// 覆盖窗口按当前评估时刻解析，历史重算沿用旧系统行为（见 DESIGN.md）
	scheduleID := client.ResolveScheduleID(account.AccountNumber, e.now())
	schedule, err := e.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("fee schedule %s not found for account %s: %w", scheduleID, account.AccountNumber, err)
	}

	accountPositions := make([]AccountPosition, 0)
	for _, p := range positions {
		if p.AccountNumber == account.AccountNumber {
			accountPositions = append(accountPositions, p)
		}
	}

	totalValue, excludedValue, billableValue, excluded := analyzePortfolio(account, accountPositions, schedule)

	annualFee, prorationFactor, calculatedFee, tierBreakdown := computeBaseFee(billableValue, schedule, period)

	adjustments := applyAdjustments(calculatedFee, billableValue, totalValue, schedule)
	totalAdjustments := 0.0
	for _, adj := range adjustments {
		totalAdjustments += adj.AppliedAmount
	}
	finalFee := calculatedFee + totalAdjustments

	// 最低费优先于最高费评估；校验保证两者不会同时触发
	minimumApplied := false
	maximumApplied := false
	if schedule.MinimumFee > 0 && finalFee < schedule.MinimumFee {
		finalFee = schedule.MinimumFee
		minimumApplied = true
	} else if schedule.MaximumFee > 0 && finalFee > schedule.MaximumFee {
		finalFee = schedule.MaximumFee
		maximumApplied = true
	}

	return &AccountFeeCalculation{
		AccountNumber:       account.AccountNumber,
		AccountName:         account.AccountName,
		ClientID:            client.ID,
		TotalPortfolioValue: totalValue,
		ExcludedValue:       excludedValue,
		BillableValue:       billableValue,
		ExcludedPositions:   excluded,
		FeeScheduleID:       schedule.ID,
		FeeScheduleName:     schedule.Name,
		TierBreakdown:       tierBreakdown,
		AnnualFeeAmount:     annualFee,
		ProrationFactor:     prorationFactor,
		CalculatedFee:       calculatedFee,
		AdjustmentDetails:   adjustments,
		TotalAdjustments:    totalAdjustments,
		FinalFee:            finalFee,
		MinimumFeeApplied:   minimumApplied,
		MaximumFeeApplied:   maximumApplied,
		CalculationDate:     e.now(),
		BillingPeriod:       period,
	}, nil
}

// analyzePortfolio 组合分析：从账户申报的组合总值出发应用排除规则.
// 每个持仓按规则列表顺序尝试，命中第一条即停止，不会重复剔除；
// 计费资产钳到非负.
func analyzePortfolio(
	account AccountBalance,
	positions []AccountPosition,
	schedule *FeeSchedule,
) (totalValue, excludedValue, billableValue float64, excluded []ExcludedPosition) {
	totalValue = account.PortfolioValue

	for _, position := range positions {
		for _, rule := range schedule.FundExclusions {
			if !rule.Active {
				continue
			}
			if !rule.Matches(position) {
				continue
			}
			excludedValue += position.MarketValue
			excluded = append(excluded, ExcludedPosition{
				Symbol:              position.Symbol,
				SecurityDescription: position.SecurityDescription,
				MarketValue:         position.MarketValue,
				NumberOfShares:      position.NumberOfShares,
				ExclusionReason:     fmt.Sprintf("excluded by rule: %s (%s)", rule.Value, rule.Target),
			})
			break
		}
	}

	billableValue = totalValue - excludedValue
	if billableValue < 0 {
		billableValue = 0
	}
	return totalValue, excludedValue, billableValue, excluded
}

// Matches 判断排除规则是否命中持仓，匹配不区分大小写.
func (f FundExclusion) Matches(p AccountPosition) bool {
	var field string
	switch f.Target {
	case ExcludeBySymbol:
		field = p.Symbol
	case ExcludeBySecurityType:
		field = p.SecurityType
	case ExcludeBySecurityDescription:
		field = p.SecurityDescription
	default:
		return false
	}

	field = strings.ToUpper(field)
	value := strings.ToUpper(f.Value)

	switch f.MatchType {
	case MatchExact:
		return field == value
	case MatchContains:
		return strings.Contains(field, value)
	case MatchStartsWith:
		return strings.HasPrefix(field, value)
	case MatchEndsWith:
		return strings.HasSuffix(field, value)
	default:
		return false
	}
}

// computeBaseFee 按计费方式分派基础年费计算，再按日折算.
// 分层费率用边际法：每层费率只作用于落在该层区间内的资产.
func computeBaseFee(
	billableValue float64,
	schedule *FeeSchedule,
	period BillingPeriod,
) (annualFee, prorationFactor, calculatedFee float64, breakdown []TierCalculation) {
	prorationFactor = period.ProrationFactor()

	switch schedule.FeeType {
	case FeeTypeNoFee:
		return 0, prorationFactor, 0, nil
	case FeeTypeFlatPercent:
		annualFee = billableValue * schedule.FlatPercent
	case FeeTypeFlatAmount:
		annualFee = schedule.FlatAmount
	case FeeTypeTiered:
		remaining := billableValue
		tierFloor := 0.0

		for i, tier := range schedule.Tiers {
			if remaining <= 0 {
				break
			}
			applicable := remaining
			if !tier.Unbounded {
				if span := tier.UpperLimit - tierFloor; span < applicable {
					applicable = span
				}
			}
			if applicable > 0 {
				annualFeeForTier := applicable * tier.Percentage
				breakdown = append(breakdown, TierCalculation{
					TierNumber:       i + 1,
					TierRate:         tier.Percentage,
					TierLimit:        tier.UpperLimit,
					Unbounded:        tier.Unbounded,
					ApplicableValue:  applicable,
					AnnualFeeForTier: annualFeeForTier,
					ProratedFee:      annualFeeForTier * prorationFactor,
				})
				annualFee += annualFeeForTier
				remaining -= applicable
				tierFloor = tier.UpperLimit
			}
		}
	}

	calculatedFee = annualFee * prorationFactor
	return annualFee, prorationFactor, calculatedFee, breakdown
}

// applyAdjustments 按列表顺序应用费率表的调整项.
// 未启用或条件不满足的跳过；贷记金额强制为负，借记强制为正，
// 与配置值本身的符号无关.
func applyAdjustments(
	calculatedFee, billableValue, totalPortfolioValue float64,
	schedule *FeeSchedule,
) []AppliedAdjustment {
	var applied []AppliedAdjustment

	for _, adj := range schedule.Adjustments {
		if !adj.Active {
			continue
		}
		if !evaluateConditions(adj.Conditions, calculatedFee, billableValue, totalPortfolioValue) {
			continue
		}

		var amount float64
		switch adj.Method {
		case AdjustmentFixedAmount:
			amount = adj.Value
		case AdjustmentPercentage:
			var base float64
			switch adj.ApplyTo {
			case BaseCalculatedFee:
				base = calculatedFee
			case BaseBillableValue:
				base = billableValue
			case BaseTotalPortfolioValue:
				base = totalPortfolioValue
			}
			amount = base * adj.Value
		}

		if amount < 0 {
			amount = -amount
		}
		if adj.Type == AdjustmentCredit {
			amount = -amount
		}

		applied = append(applied, AppliedAdjustment{
			AdjustmentID:   adj.ID,
			AdjustmentName: adj.Name,
			Type:           adj.Type,
			Method:         adj.Method,
			Value:          adj.Value,
			AppliedAmount:  amount,
			Description:    adj.Description,
		})
	}

	return applied
}

// evaluateConditions 评估调整条件，全部满足才返回 true，未知字段视为不满足.
func evaluateConditions(
	conditions []AdjustmentCondition,
	calculatedFee, billableValue, totalPortfolioValue float64,
) bool {
	for _, cond := range conditions {
		var fieldValue float64
		switch cond.Field {
		case FieldPortfolioValue:
			fieldValue = totalPortfolioValue
		case FieldCalculatedFee:
			fieldValue = calculatedFee
		case FieldBillableValue:
			fieldValue = billableValue
		default:
			return false
		}

		ok := false
		switch cond.Operator {
		case OpGreaterThan:
			ok = fieldValue > cond.Value
		case OpGreaterOrEqual:
			ok = fieldValue >= cond.Value
		case OpLessThan:
			ok = fieldValue < cond.Value
		case OpLessOrEqual:
			ok = fieldValue <= cond.Value
		case OpEqual:
			ok = fieldValue == cond.Value
		case OpBetween:
			ok = fieldValue >= cond.Value && fieldValue <= cond.SecondValue
		}
		if !ok {
			return false
		}
	}
	return true
}

// accountGroup 按客户分组后的账户批，保持输入顺序.
type accountGroup struct {
	clientID string
	accounts []AccountBalance
}

// groupAccountsByClient 把余额记录分到客户名下.
// 当前数据源不携带客户归属，整批记到指定客户或缺省客户.
func groupAccountsByClient(balances []AccountBalance, clientID string) []accountGroup {
	if clientID == "" {
		clientID = "default-client"
	}
	if len(balances) == 0 {
		return nil
	}
	return []accountGroup{{clientID: clientID, accounts: balances}}
}

// buildSummary 生成全组合汇总，并按费率表维度分组.
func (e *Engine) buildSummary(calculations []ClientFeeCalculation, period BillingPeriod) FeeCalculationSummary {
	summary := FeeCalculationSummary{
		TotalClients:       len(calculations),
		ScheduleBreakdowns: []ScheduleBreakdown{},
		BillingPeriod:      period,
		CalculationDate:    e.now(),
	}

	indexByID := map[string]int{}

	for _, client := range calculations {
		summary.TotalAccounts += client.TotalAccounts
		summary.TotalPortfolioValue += client.TotalPortfolioValue
		summary.TotalBillableValue += client.TotalBillableValue
		summary.TotalExcludedValue += client.TotalExcludedValue
		summary.TotalFees += client.TotalFinalFees

		for _, account := range client.AccountCalculations {
			idx, ok := indexByID[account.FeeScheduleID]
			if !ok {
				idx = len(summary.ScheduleBreakdowns)
				indexByID[account.FeeScheduleID] = idx
				summary.ScheduleBreakdowns = append(summary.ScheduleBreakdowns, ScheduleBreakdown{
					FeeScheduleID:   account.FeeScheduleID,
					FeeScheduleName: account.FeeScheduleName,
				})
			}
			b := &summary.ScheduleBreakdowns[idx]
			b.AccountCount++
			b.TotalBillableValue += account.BillableValue
			b.TotalFees += account.FinalFee
		}
	}

	if summary.TotalBillableValue > 0 {
		summary.AverageFeeRate = summary.TotalFees / summary.TotalBillableValue
	}
	for i := range summary.ScheduleBreakdowns {
		b := &summary.ScheduleBreakdowns[i]
		if b.TotalBillableValue > 0 {
			b.AverageRate = b.TotalFees / b.TotalBillableValue
		}
	}

	return summary
}

func (e *Engine) emptySummary(period BillingPeriod) FeeCalculationSummary {
	return FeeCalculationSummary{
		ScheduleBreakdowns: []ScheduleBreakdown{},
		BillingPeriod:      period,
		CalculationDate:    e.now(),
	}
}
