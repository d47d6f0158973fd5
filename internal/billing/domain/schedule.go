package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound = errors.New("fee schedule not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrInvalidSchedule  = errors.New("invalid fee schedule")
)

// FeeType 费率表计费方式.
type FeeType string

const (
	FeeTypeFlatPercent FeeType = "flat_percent" // 按计费资产的固定年化比例
	FeeTypeFlatAmount  FeeType = "flat_amount"  // 固定年费，与计费资产无关
	FeeTypeTiered      FeeType = "tiered"       // 边际分层费率（同累进税率）
	FeeTypeNoFee       FeeType = "no_fee"       // 不收费
)

// ExclusionTarget 排除规则匹配的持仓字段.
type ExclusionTarget string

const (
	ExcludeBySymbol              ExclusionTarget = "symbol"
	ExcludeBySecurityType        ExclusionTarget = "security_type"
	ExcludeBySecurityDescription ExclusionTarget = "security_description"
)

// MatchType 排除规则的匹配方式.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
)

// AdjustmentType 调整方向：贷记减费，借记加费.
type AdjustmentType string

const (
	AdjustmentCredit AdjustmentType = "credit"
	AdjustmentDebit  AdjustmentType = "debit"
)

// AdjustmentMethod 调整金额的计算方式.
type AdjustmentMethod string

const (
	AdjustmentFixedAmount AdjustmentMethod = "fixed_amount"
	AdjustmentPercentage  AdjustmentMethod = "percentage"
)

// AdjustmentBase 百分比调整的基数.
type AdjustmentBase string

const (
	BaseCalculatedFee       AdjustmentBase = "calculated_fee"
	BaseBillableValue       AdjustmentBase = "billable_value"
	BaseTotalPortfolioValue AdjustmentBase = "total_portfolio_value"
)

// ConditionField 调整条件所引用的数值字段，封闭枚举.
type ConditionField string

const (
	FieldPortfolioValue ConditionField = "portfolio_value"
	FieldCalculatedFee  ConditionField = "calculated_fee"
	FieldBillableValue  ConditionField = "billable_value"
)

// ConditionOperator 调整条件的比较运算符.
type ConditionOperator string

const (
	OpGreaterThan    ConditionOperator = "gt"
	OpGreaterOrEqual ConditionOperator = "gte"
	OpLessThan       ConditionOperator = "lt"
	OpLessOrEqual    ConditionOperator = "lte"
	OpEqual          ConditionOperator = "eq"
	OpBetween        ConditionOperator = "between"
)

// 费率表结构约束常量.
const (
	MaxTiers         = 5
	MinPercentage    = 0.0
	MaxPercentage    = 0.05    // 年化费率上限 5%
	MinFeeAmount     = 0.0
	MaxFeeAmount     = 1000000 // 固定费用上限 $1M
	StandardYearDays = 365
	LeapYearDays     = 366
)

// FeeTier 单个费率层级.
// Unbounded 为 true 时该层无上限（通常只允许最后一层），
// 用显式标志而非 +Inf 哨兵，避免序列化与比较的浮点边界问题.
type FeeTier struct {
	Percentage float64 `json:"percentage"`  // 年化费率，0.01 即 1%
	UpperLimit float64 `json:"upper_limit"` // 本层资产上限（含），Unbounded 时忽略
	Unbounded  bool    `json:"unbounded"`
	CapAmount  float64 `json:"cap_amount"` // 本层费用封顶金额，0 表示不封顶
}

// FundExclusion 基金排除规则，命中的持仓从计费资产中剔除.
type FundExclusion struct {
	ID          string          `json:"id"`
	Target      ExclusionTarget `json:"target"`
	Value       string          `json:"value"` // 待匹配的文本，如 "CASH"、"SWVXX"
	MatchType   MatchType       `json:"match_type"`
	Active      bool            `json:"active"`
	Description string          `json:"description,omitempty"`
}

// AdjustmentCondition 调整生效条件，同一调整的多个条件取 AND.
type AdjustmentCondition struct {
	Field       ConditionField    `json:"field"`
	Operator    ConditionOperator `json:"operator"`
	Value       float64           `json:"value"`
	SecondValue float64           `json:"second_value,omitempty"` // 仅 between 使用
}

// FeeAdjustment 费用调整项，在基础费用计算后按列表顺序应用.
type FeeAdjustment struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Type        AdjustmentType        `json:"type"`
	Method      AdjustmentMethod      `json:"method"`
	Value       float64               `json:"value"` // 金额或比例（0.001 即 0.1%）
	ApplyTo     AdjustmentBase        `json:"apply_to"`
	Conditions  []AdjustmentCondition `json:"conditions,omitempty"`
	Active      bool                  `json:"active"`
	Description string                `json:"description,omitempty"`
}

// FeeSchedule 费率表聚合根.
// 不变式：tiers 按 UpperLimit 严格递增，只有最后一层允许 Unbounded；
// MinimumFee 与 MaximumFee 同时设置时前者不得大于后者.
type FeeSchedule struct {
	ID       string  `json:"id"`
	FeeCode  string  `json:"fee_code"` // 对接旧系统的费率编码（0、1、5 等）
	Name     string  `json:"name"`
	FeeType  FeeType `json:"fee_type"`

	FlatPercent float64 `json:"flat_percent,omitempty"` // flat_percent 专用
	FlatAmount  float64 `json:"flat_amount,omitempty"`  // flat_amount 专用

	Tiers []FeeTier `json:"tiers,omitempty"`

	MinimumFee float64 `json:"minimum_fee,omitempty"` // 0 表示未配置
	MaximumFee float64 `json:"maximum_fee,omitempty"` // 0 表示未配置

	FundExclusions []FundExclusion `json:"fund_exclusions,omitempty"`
	Adjustments    []FeeAdjustment `json:"adjustments,omitempty"`

	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Active        bool       `json:"active"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
