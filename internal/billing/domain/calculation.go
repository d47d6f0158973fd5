package domain

import "time"

// IssueKind 计算问题分类.
// data 保留给上游接入层，引擎本身不产生.
type IssueKind string

const (
	IssueValidation  IssueKind = "validation"
	IssueCalculation IssueKind = "calculation"
	IssueData        IssueKind = "data"
)

// IssueSeverity 问题严重级别.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// CalculationIssue 计算过程中记录的错误或警告，附带账户/客户上下文.
type CalculationIssue struct {
	Kind          IssueKind     `json:"kind"`
	Code          string        `json:"code"`
	Message       string        `json:"message"`
	AccountNumber string        `json:"account_number,omitempty"`
	ClientID      string        `json:"client_id,omitempty"`
	Severity      IssueSeverity `json:"severity"`
}

// 问题代码.
const (
	CodeClientNotFound   = "CLIENT_NOT_FOUND"
	CodeScheduleNotFound = "FEE_SCHEDULE_NOT_FOUND"
	CodeAccountError     = "ACCOUNT_CALCULATION_ERROR"
	CodeCalculationError = "CALCULATION_ERROR"
)

// ExcludedPosition 被排除规则命中的持仓明细.
type ExcludedPosition struct {
	Symbol              string  `json:"symbol"`
	SecurityDescription string  `json:"security_description"`
	MarketValue         float64 `json:"market_value"`
	NumberOfShares      float64 `json:"number_of_shares"`
	ExclusionReason     string  `json:"exclusion_reason"` // 命中的规则描述
}

// TierCalculation 分层费率的逐层计算明细.
type TierCalculation struct {
	TierNumber       int     `json:"tier_number"`
	TierRate         float64 `json:"tier_rate"`
	TierLimit        float64 `json:"tier_limit"` // Unbounded 层为 0
	Unbounded        bool    `json:"unbounded"`
	ApplicableValue  float64 `json:"applicable_value"`
	AnnualFeeForTier float64 `json:"annual_fee_for_tier"`
	ProratedFee      float64 `json:"prorated_fee"`
}

// AppliedAdjustment 实际应用的调整明细，AppliedAmount 已做符号归一：
// 贷记恒为负，借记恒为正.
type AppliedAdjustment struct {
	AdjustmentID   string           `json:"adjustment_id"`
	AdjustmentName string           `json:"adjustment_name"`
	Type           AdjustmentType   `json:"type"`
	Method         AdjustmentMethod `json:"method"`
	Value          float64          `json:"value"`
	AppliedAmount  float64          `json:"applied_amount"`
	Description    string           `json:"description,omitempty"`
}

// AccountFeeCalculation 单账户费用计算结果，每次调用新建，引擎不持久化也不复用.
type AccountFeeCalculation struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	ClientID      string `json:"client_id"`

	TotalPortfolioValue float64            `json:"total_portfolio_value"`
	ExcludedValue       float64            `json:"excluded_value"`
	BillableValue       float64            `json:"billable_value"`
	ExcludedPositions   []ExcludedPosition `json:"excluded_positions,omitempty"`

	FeeScheduleID   string            `json:"fee_schedule_id"`
	FeeScheduleName string            `json:"fee_schedule_name"`
	TierBreakdown   []TierCalculation `json:"tier_breakdown,omitempty"`

	AnnualFeeAmount float64 `json:"annual_fee_amount"` // 折算前年费
	ProrationFactor float64 `json:"proration_factor"`
	CalculatedFee   float64 `json:"calculated_fee"` // 折算后、调整前

	AdjustmentDetails []AppliedAdjustment `json:"adjustment_details,omitempty"`
	TotalAdjustments  float64             `json:"total_adjustments"` // 净调整，贷记为负

	FinalFee          float64 `json:"final_fee"`
	MinimumFeeApplied bool    `json:"minimum_fee_applied"`
	MaximumFeeApplied bool    `json:"maximum_fee_applied"`

	CalculationDate time.Time     `json:"calculation_date"`
	BillingPeriod   BillingPeriod `json:"billing_period"`
}

// ClientFeeCalculation 客户级汇总，各合计为其账户结果的逐项相加.
type ClientFeeCalculation struct {
	ClientID      string        `json:"client_id"`
	ClientName    string        `json:"client_name"`
	BillingPeriod BillingPeriod `json:"billing_period"`

	TotalAccounts       int     `json:"total_accounts"`
	TotalPortfolioValue float64 `json:"total_portfolio_value"`
	TotalExcludedValue  float64 `json:"total_excluded_value"`
	TotalBillableValue  float64 `json:"total_billable_value"`
	TotalCalculatedFees float64 `json:"total_calculated_fees"`
	TotalAdjustments    float64 `json:"total_adjustments"`
	TotalFinalFees      float64 `json:"total_final_fees"`

	AccountCalculations []AccountFeeCalculation `json:"account_calculations"`
	ClientAdjustments   []AppliedAdjustment     `json:"client_adjustments,omitempty"`

	CalculationDate time.Time `json:"calculation_date"`
	Status          string    `json:"status"`
}

// ScheduleBreakdown 按费率表维度的汇总.
type ScheduleBreakdown struct {
	FeeScheduleID      string  `json:"fee_schedule_id"`
	FeeScheduleName    string  `json:"fee_schedule_name"`
	AccountCount       int     `json:"account_count"`
	TotalBillableValue float64 `json:"total_billable_value"`
	TotalFees          float64 `json:"total_fees"`
	AverageRate        float64 `json:"average_rate"` // 计费资产为 0 时定义为 0
}

// FeeCalculationSummary 全组合汇总.
type FeeCalculationSummary struct {
	TotalClients        int                 `json:"total_clients"`
	TotalAccounts       int                 `json:"total_accounts"`
	TotalPortfolioValue float64             `json:"total_portfolio_value"`
	TotalBillableValue  float64             `json:"total_billable_value"`
	TotalExcludedValue  float64             `json:"total_excluded_value"`
	TotalFees           float64             `json:"total_fees"`
	AverageFeeRate      float64             `json:"average_fee_rate"`
	ScheduleBreakdowns  []ScheduleBreakdown `json:"schedule_breakdowns"`
	BillingPeriod       BillingPeriod       `json:"billing_period"`
	CalculationDate     time.Time           `json:"calculation_date"`
}

// FeeCalculationResult 一次计费运行的完整输出.
type FeeCalculationResult struct {
	Success            bool                   `json:"success"`
	ClientCalculations []ClientFeeCalculation `json:"client_calculations"`
	Summary            FeeCalculationSummary  `json:"summary"`
	Errors             []CalculationIssue     `json:"errors"`
	Warnings           []CalculationIssue     `json:"warnings"`
	ProcessingTimeMs   int64                  `json:"processing_time_ms"` // 实测耗时，非预算
}
