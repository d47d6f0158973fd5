package domain

import (
	"fmt"
	"time"
)

// BillingPeriod 计费周期.
// 不变式：DaysInPeriod >= 1，DaysInYear 为 365 或 366.
type BillingPeriod struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"` // 如 "Q1 2024"、"January 2024"
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	// 周期内的自然日数，首尾两天都计入
	DaysInPeriod int `json:"days_in_period"`
	// 参考年的天数，闰年 366，平年 365
	DaysInYear int              `json:"days_in_year"`
	Frequency  BillingFrequency `json:"frequency"`
	AsOfDate   time.Time        `json:"as_of_date"` // 组合估值日
}

// ProrationFactor 周期占参考年的比例，用于把年费折算为本期应收.
func (p BillingPeriod) ProrationFactor() float64 {
	return float64(p.DaysInPeriod) / float64(p.DaysInYear)
}

// IsLeapYear 格里高利闰年规则：能被 4 整除且不能被 100 整除，或能被 400 整除.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func daysInYear(year int) int {
	if IsLeapYear(year) {
		return LeapYearDays
	}
	return StandardYearDays
}

// inclusiveDays 首尾两端都计入的自然日跨度，入参须为同一时区的零点日期.
func inclusiveDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

func dateOf(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// QuarterlyPeriods 生成指定年份的 4 个季度计费周期.
func QuarterlyPeriods(year int) []BillingPeriod {
	yearDays := daysInYear(year)

	quarters := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"Q1", dateOf(year, time.January, 1), dateOf(year, time.March, 31)},
		{"Q2", dateOf(year, time.April, 1), dateOf(year, time.June, 30)},
		{"Q3", dateOf(year, time.July, 1), dateOf(year, time.September, 30)},
		{"Q4", dateOf(year, time.October, 1), dateOf(year, time.December, 31)},
	}

	periods := make([]BillingPeriod, 0, len(quarters))
	for _, q := range quarters {
		periods = append(periods, BillingPeriod{
			ID:           fmt.Sprintf("%d-%s", year, q.name),
			Name:         fmt.Sprintf("%s %d", q.name, year),
			StartDate:    q.start,
			EndDate:      q.end,
			DaysInPeriod: inclusiveDays(q.start, q.end),
			DaysInYear:   yearDays,
			Frequency:    FrequencyQuarterly,
			AsOfDate:     q.end, // 估值日取季度末
		})
	}
	return periods
}

// MonthlyPeriods 生成指定年份的 12 个月度计费周期.
func MonthlyPeriods(year int) []BillingPeriod {
	yearDays := daysInYear(year)

	periods := make([]BillingPeriod, 0, 12)
	for month := time.January; month <= time.December; month++ {
		start := dateOf(year, month, 1)
		end := start.AddDate(0, 1, -1) // 该月最后一天

		periods = append(periods, BillingPeriod{
			ID:           fmt.Sprintf("%d-%02d", year, int(month)),
			Name:         fmt.Sprintf("%s %d", month.String(), year),
			StartDate:    start,
			EndDate:      end,
			DaysInPeriod: end.Day(),
			DaysInYear:   yearDays,
			Frequency:    FrequencyMonthly,
			AsOfDate:     end,
		})
	}
	return periods
}

// CustomPeriod 构造任意起止的计费周期，参考年天数取结束日所在年份.
// asOf 为零值时估值日取结束日。起止倒置属调用方错误，
// 此处仅把 DaysInPeriod 钳到 1 以上以维持不变式.
func CustomPeriod(name string, start, end time.Time, freq BillingFrequency, asOf time.Time) BillingPeriod {
	days := inclusiveDays(start, end)
	if days < 1 {
		days = 1
	}
	if asOf.IsZero() {
		asOf = end
	}
	return BillingPeriod{
		ID:           fmt.Sprintf("custom-%s-%s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		Name:         name,
		StartDate:    start,
		EndDate:      end,
		DaysInPeriod: days,
		DaysInYear:   daysInYear(end.Year()),
		Frequency:    freq,
		AsOfDate:     asOf,
	}
}

// CurrentQuarter 返回包含 date 的季度周期.
func CurrentQuarter(date time.Time) BillingPeriod {
	quarters := QuarterlyPeriods(date.Year())
	for _, q := range quarters {
		// 结束日整天都算在季度内
		if !date.Before(q.StartDate) && date.Before(q.EndDate.AddDate(0, 0, 1)) {
			return q
		}
	}
	// 时区偏移导致区间判断落空时按月份兜底
	return quarters[(int(date.Month())-1)/3]
}

// PreviousQuarter 返回 date 所在季度的前一个季度.
func PreviousQuarter(date time.Time) BillingPeriod {
	current := CurrentQuarter(date)
	year := current.StartDate.Year()
	quarter := (int(current.StartDate.Month())-1)/3 + 1

	if quarter == 1 {
		return QuarterlyPeriods(year - 1)[3]
	}
	return QuarterlyPeriods(year)[quarter-2]
}
