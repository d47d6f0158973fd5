package domain

import (
	"fmt"
	"strings"
	"time"
)

// LegacyTierSlot 旧系统费率表中的一个层级槽位.
// Limit 为 0 表示该层无上限.
type LegacyTierSlot struct {
	Percent float64
	Limit   float64
	Cap     float64
}

// LegacyScheduleRow 旧系统导出的扁平费率记录，最多五个层级槽位.
type LegacyScheduleRow struct {
	FeeCode     string
	FlatPercent float64
	FlatAmount  float64
	TierSlots   [MaxTiers]LegacyTierSlot
}

// BuildFromLegacyRow 把扁平的旧费率记录构造成结构化费率表.
// 计费方式按优先级推断：flat_percent > flat_amount > tiered > no_fee.
// 层级按槽位顺序扫描，遇到费率为零的槽位即停止，允许尾部稀疏.
func BuildFromLegacyRow(row LegacyScheduleRow) *FeeSchedule {
	feeType := FeeTypeNoFee
	switch {
	case row.FlatPercent > 0:
		feeType = FeeTypeFlatPercent
	case row.FlatAmount > 0:
		feeType = FeeTypeFlatAmount
	case row.TierSlots[0].Percent > 0:
		feeType = FeeTypeTiered
	}

	var tiers []FeeTier
	if feeType == FeeTypeTiered {
		for _, slot := range row.TierSlots {
			if slot.Percent <= 0 {
				break
			}
			tiers = append(tiers, FeeTier{
				Percentage: slot.Percent,
				UpperLimit: slot.Limit,
				Unbounded:  slot.Limit == 0,
				CapAmount:  slot.Cap,
			})
		}
	}

	now := time.Now()
	s := &FeeSchedule{
		ID:            "fee-schedule-" + row.FeeCode,
		FeeCode:       row.FeeCode,
		Name:          "Fee Schedule " + row.FeeCode,
		FeeType:       feeType,
		Tiers:         tiers,
		EffectiveDate: now,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if feeType == FeeTypeFlatPercent {
		s.FlatPercent = row.FlatPercent
	}
	if feeType == FeeTypeFlatAmount {
		s.FlatAmount = row.FlatAmount
	}
	return s
}

// ValidationResult 费率表校验结果，警告不阻止注册.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateSchedule 校验费率表的结构不变式.
// 校验是建议性的：注册方应在注册前调用，引擎计算时不再复核.
func ValidateSchedule(s *FeeSchedule) ValidationResult {
	var errs, warns []string

	if strings.TrimSpace(s.FeeCode) == "" {
		errs = append(errs, "fee code is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, "fee schedule name is required")
	}

	switch s.FeeType {
	case FeeTypeFlatPercent:
		if s.FlatPercent <= 0 {
			errs = append(errs, "flat percentage must be greater than 0")
		} else if s.FlatPercent > MaxPercentage {
			errs = append(errs, fmt.Sprintf("flat percentage cannot exceed %.0f%%", MaxPercentage*100))
		}
	case FeeTypeFlatAmount:
		if s.FlatAmount <= 0 {
			errs = append(errs, "flat amount must be greater than 0")
		} else if s.FlatAmount > MaxFeeAmount {
			errs = append(errs, fmt.Sprintf("flat amount cannot exceed $%d", int(MaxFeeAmount)))
		}
	case FeeTypeTiered:
		if len(s.Tiers) == 0 {
			errs = append(errs, "tiered fee schedule must have at least one tier")
		} else {
			validateTiers(s.Tiers, &errs, &warns)
		}
	}

	if s.MinimumFee < 0 {
		errs = append(errs, "minimum fee cannot be negative")
	}
	if s.MaximumFee < 0 {
		errs = append(errs, "maximum fee cannot be negative")
	}
	if s.MinimumFee > 0 && s.MaximumFee > 0 && s.MinimumFee > s.MaximumFee {
		errs = append(errs, "minimum fee cannot be greater than maximum fee")
	}
	if s.EndDate != nil && s.EffectiveDate.After(*s.EndDate) {
		errs = append(errs, "effective date cannot be after end date")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

func validateTiers(tiers []FeeTier, errs, warns *[]string) {
	if len(tiers) > MaxTiers {
		*errs = append(*errs, fmt.Sprintf("cannot have more than %d tiers", MaxTiers))
	}

	previousLimit := 0.0
	for i, tier := range tiers {
		n := i + 1

		if tier.Percentage < MinPercentage {
			*errs = append(*errs, fmt.Sprintf("tier %d percentage cannot be negative", n))
		}
		if tier.Percentage > MaxPercentage {
			*errs = append(*errs, fmt.Sprintf("tier %d percentage cannot exceed %.0f%%", n, MaxPercentage*100))
		}
		if !tier.Unbounded && tier.UpperLimit <= previousLimit {
			*errs = append(*errs, fmt.Sprintf("tier %d limit must be greater than previous tier limit", n))
		}
		if tier.Unbounded && i != len(tiers)-1 {
			*warns = append(*warns, fmt.Sprintf("tier %d is unbounded but is not the final tier", n))
		}
		if tier.CapAmount < 0 {
			*errs = append(*errs, fmt.Sprintf("tier %d cap amount cannot be negative", n))
		}
		if !tier.Unbounded {
			previousLimit = tier.UpperLimit
		}

		if i > 0 && tier.Percentage > tiers[i-1].Percentage {
			*warns = append(*warns, fmt.Sprintf("tier %d has higher percentage than previous tier - this is unusual", n))
		}
	}

	final := tiers[len(tiers)-1]
	if !final.Unbounded && final.UpperLimit < 10000000 {
		*warns = append(*warns, "final tier should typically be unbounded to handle all portfolio sizes")
	}
}

// TheoreticalTier 参考公式的逐层明细.
type TheoreticalTier struct {
	Tier   int     `json:"tier"`
	Amount float64 `json:"amount"`
	Rate   float64 `json:"rate"`
	Fee    float64 `json:"fee"`
}

// TheoreticalFeeResult 参考公式的输出.
type TheoreticalFeeResult struct {
	AnnualFee     float64           `json:"annual_fee"`
	ProratedFee   float64           `json:"prorated_fee"`
	EffectiveRate float64           `json:"effective_rate"`
	TierBreakdown []TheoreticalTier `json:"tier_breakdown,omitempty"`
}

// TheoreticalFee 独立推导的参考费用公式，用于交叉验证引擎输出.
// 不变式：对相同输入，结果与引擎的边际分层计算在数值上完全一致.
func TheoreticalFee(value float64, s *FeeSchedule, daysInPeriod, daysInYear int) TheoreticalFeeResult {
	var annualFee float64
	var breakdown []TheoreticalTier

	switch s.FeeType {
	case FeeTypeNoFee:
		return TheoreticalFeeResult{}
	case FeeTypeFlatPercent:
		annualFee = value * s.FlatPercent
	case FeeTypeFlatAmount:
		annualFee = s.FlatAmount
	case FeeTypeTiered:
		remaining := value
		tierFloor := 0.0

		for i, tier := range s.Tiers {
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
				fee := applicable * tier.Percentage
				annualFee += fee
				breakdown = append(breakdown, TheoreticalTier{
					Tier:   i + 1,
					Amount: applicable,
					Rate:   tier.Percentage,
					Fee:    fee,
				})
				remaining -= applicable
				tierFloor = tier.UpperLimit
			}
		}
	}

	prorationFactor := float64(daysInPeriod) / float64(daysInYear)
	effectiveRate := 0.0
	if value > 0 {
		effectiveRate = annualFee / value
	}

	return TheoreticalFeeResult{
		AnnualFee:     annualFee,
		ProratedFee:   annualFee * prorationFactor,
		EffectiveRate: effectiveRate,
		TierBreakdown: breakdown,
	}
}

// StandardExclusions 常用的基金排除规则预设.
func StandardExclusions() []FundExclusion {
	return []FundExclusion{
		{
			ID:          "exclude-cash",
			Target:      ExcludeBySymbol,
			Value:       "CASH",
			MatchType:   MatchExact,
			Active:      true,
			Description: "Exclude cash positions from fee calculation",
		},
		{
			ID:          "exclude-swvxx",
			Target:      ExcludeBySymbol,
			Value:       "SWVXX",
			MatchType:   MatchExact,
			Active:      true,
			Description: "Exclude Schwab money market fund",
		},
		{
			ID:          "exclude-money-market",
			Target:      ExcludeBySecurityType,
			Value:       "MONEY MARKET",
			MatchType:   MatchContains,
			Active:      false,
			Description: "Exclude all money market funds",
		},
	}
}

// StandardAdjustments 常用的费用调整预设，默认不启用.
func StandardAdjustments() []FeeAdjustment {
	return []FeeAdjustment{
		{
			ID:          "family-discount",
			Name:        "Family Account Discount",
			Type:        AdjustmentCredit,
			Method:      AdjustmentPercentage,
			Value:       0.1,
			ApplyTo:     BaseCalculatedFee,
			Active:      false,
			Description: "10% discount for family accounts",
		},
		{
			ID:      "small-account-credit",
			Name:    "Small Account Credit",
			Type:    AdjustmentCredit,
			Method:  AdjustmentFixedAmount,
			Value:   100,
			ApplyTo: BaseCalculatedFee,
			Conditions: []AdjustmentCondition{
				{Field: FieldPortfolioValue, Operator: OpLessThan, Value: 50000},
			},
			Active:      false,
			Description: "$100 credit for accounts under $50,000",
		},
	}
}
