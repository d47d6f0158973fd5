package application

import (
	"github.com/shopspring/decimal"
	"github.com/wealthops/advisorybilling/internal/billing/domain"
)

// CalculationRunDTO 计费运行结果的对外表示.
// 展示金额统一舍入到分；核心计算保持完整精度，舍入只发生在这里.
type CalculationRunDTO struct {
	RunID            string             `json:"run_id"`
	Success          bool               `json:"success"`
	PeriodName       string             `json:"period_name"`
	TotalClients     int                `json:"total_clients"`
	TotalAccounts    int                `json:"total_accounts"`
	TotalFees        string             `json:"total_fees"`
	AverageFeeRate   string             `json:"average_fee_rate"`
	Clients          []ClientFeeDTO     `json:"clients"`
	Errors           []domain.CalculationIssue `json:"errors"`
	Warnings         []domain.CalculationIssue `json:"warnings"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// ClientFeeDTO 客户汇总的对外表示.
type ClientFeeDTO struct {
	ClientID       string          `json:"client_id"`
	ClientName     string          `json:"client_name"`
	TotalAccounts  int             `json:"total_accounts"`
	PortfolioValue string          `json:"portfolio_value"`
	BillableValue  string          `json:"billable_value"`
	FinalFees      string          `json:"final_fees"`
	Accounts       []AccountFeeDTO `json:"accounts"`
}

// AccountFeeDTO 账户明细的对外表示.
type AccountFeeDTO struct {
	AccountNumber     string `json:"account_number"`
	AccountName       string `json:"account_name"`
	FeeScheduleID     string `json:"fee_schedule_id"`
	PortfolioValue    string `json:"portfolio_value"`
	ExcludedValue     string `json:"excluded_value"`
	BillableValue     string `json:"billable_value"`
	CalculatedFee     string `json:"calculated_fee"`
	TotalAdjustments  string `json:"total_adjustments"`
	FinalFee          string `json:"final_fee"`
	MinimumFeeApplied bool   `json:"minimum_fee_applied"`
	MaximumFeeApplied bool   `json:"maximum_fee_applied"`
}

// cents 把浮点金额格式化为两位小数的十进制字符串.
func cents(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// rate 费率保留六位小数.
func rate(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

// ToRunDTO 把引擎结果映射为对外 DTO.
func ToRunDTO(runID string, result *domain.FeeCalculationResult) CalculationRunDTO {
	clients := make([]ClientFeeDTO, 0, len(result.ClientCalculations))
	for _, c := range result.ClientCalculations {
		accounts := make([]AccountFeeDTO, 0, len(c.AccountCalculations))
		for _, a := range c.AccountCalculations {
			accounts = append(accounts, AccountFeeDTO{
				AccountNumber:     a.AccountNumber,
				AccountName:       a.AccountName,
				FeeScheduleID:     a.FeeScheduleID,
				PortfolioValue:    cents(a.TotalPortfolioValue),
				ExcludedValue:     cents(a.ExcludedValue),
				BillableValue:     cents(a.BillableValue),
				CalculatedFee:     cents(a.CalculatedFee),
				TotalAdjustments:  cents(a.TotalAdjustments),
				FinalFee:          cents(a.FinalFee),
				MinimumFeeApplied: a.MinimumFeeApplied,
				MaximumFeeApplied: a.MaximumFeeApplied,
			})
		}
		clients = append(clients, ClientFeeDTO{
			ClientID:       c.ClientID,
			ClientName:     c.ClientName,
			TotalAccounts:  c.TotalAccounts,
			PortfolioValue: cents(c.TotalPortfolioValue),
			BillableValue:  cents(c.TotalBillableValue),
			FinalFees:      cents(c.TotalFinalFees),
			Accounts:       accounts,
		})
	}

	return CalculationRunDTO{
		RunID:            runID,
		Success:          result.Success,
		PeriodName:       result.Summary.BillingPeriod.Name,
		TotalClients:     result.Summary.TotalClients,
		TotalAccounts:    result.Summary.TotalAccounts,
		TotalFees:        cents(result.Summary.TotalFees),
		AverageFeeRate:   rate(result.Summary.AverageFeeRate),
		Clients:          clients,
		Errors:           result.Errors,
		Warnings:         result.Warnings,
		ProcessingTimeMs: result.ProcessingTimeMs,
	}
}
