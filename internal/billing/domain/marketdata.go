package domain

import "time"

// AccountBalance 上游导入的账户余额记录.
// 数值字段由接入层保证有限，账户号是与持仓记录关联的稳定键.
type AccountBalance struct {
	BusinessDate        time.Time `json:"business_date"`
	AccountNumber       string    `json:"account_number"`
	AccountName         string    `json:"account_name"`
	PortfolioValue      float64   `json:"portfolio_value"`
	MarketValueShort    float64   `json:"market_value_short"`
	CashNetCreditDebit  float64   `json:"cash_net_credit_debit"`
	CashNetMarketValue  float64   `json:"cash_net_market_value"`
	CashMoneyMarketFund float64   `json:"cash_money_market_fund"`
}

// AccountPosition 上游导入的账户持仓记录.
type AccountPosition struct {
	BusinessDate        time.Time `json:"business_date"`
	AccountNumber       string    `json:"account_number"`
	Symbol              string    `json:"symbol"`
	SecurityType        string    `json:"security_type"`
	SecurityDescription string    `json:"security_description"`
	NumberOfShares      float64   `json:"number_of_shares"`
	Price               float64   `json:"price"`
	MarketValue         float64   `json:"market_value"`
}
