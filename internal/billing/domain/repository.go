package domain

import "context"

// ScheduleRepository 费率表仓储接口.
// 引擎只依赖该抽象，内存注册表与持久化存储可互换.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *FeeSchedule) error
	Get(ctx context.Context, id string) (*FeeSchedule, error)
	List(ctx context.Context) ([]*FeeSchedule, error)
}

// ClientRepository 客户仓储接口.
type ClientRepository interface {
	Save(ctx context.Context, client *Client) error
	Get(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
}
