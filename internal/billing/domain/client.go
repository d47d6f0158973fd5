package domain

import "time"

// BillingFrequency 计费周期频率.
type BillingFrequency string

const (
	FrequencyMonthly   BillingFrequency = "monthly"
	FrequencyQuarterly BillingFrequency = "quarterly"
	FrequencyAnnually  BillingFrequency = "annually"
)

// AccountScheduleOverride 账户级费率表覆盖，在自身生效窗口内优先于客户默认费率表.
type AccountScheduleOverride struct {
	AccountNumber string     `json:"account_number"`
	FeeScheduleID string     `json:"fee_schedule_id"`
	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// Client 客户聚合根，持有默认费率表与账户级覆盖.
type Client struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	ClientCode       string                    `json:"client_code,omitempty"`
	FeeScheduleID    string                    `json:"fee_schedule_id"` // 默认费率表
	BillingFrequency BillingFrequency          `json:"billing_frequency"`
	ScheduleOverrides []AccountScheduleOverride `json:"schedule_overrides,omitempty"`
	Adjustments      []FeeAdjustment           `json:"adjustments,omitempty"` // 客户级调整
	Active           bool                      `json:"active"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	Notes            string                    `json:"notes,omitempty"`
}

// ResolveScheduleID 解析某账户在 at 时刻适用的费率表 ID.
// 先查生效窗口覆盖 at 的账户级覆盖，否则退回客户默认费率表.
func (c *Client) ResolveScheduleID(accountNumber string, at time.Time) string {
	for _, o := range c.ScheduleOverrides {
		if o.AccountNumber != accountNumber {
			continue
		}
		if at.Before(o.EffectiveDate) {
			continue
		}
		if o.EndDate != nil && at.After(*o.EndDate) {
			continue
		}
		return o.FeeScheduleID
	}
	return c.FeeScheduleID
}

// DefaultClient 返回用于接线验证与测试的缺省客户.
func DefaultClient() *Client {
	now := time.Now()
	return &Client{
		ID:               "default-client",
		Name:             "Default Client",
		FeeScheduleID:    "fee-schedule-0",
		BillingFrequency: FrequencyQuarterly,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
