// Package memory 提供基于进程内 map 的仓储实现.
// 即规格中的内存注册表：无内部锁，注册与计算的并发交叠
// 由调用方按单写者纪律串行化.
package memory

import (
	"context"
	"fmt"

	"github.com/wealthops/advisorybilling/internal/billing/domain"
)

// ScheduleRepository 内存费率表仓储.
type ScheduleRepository struct {
	schedules map[string]*domain.FeeSchedule
	order     []string // 保持注册顺序，List 输出确定
}

// NewScheduleRepository 创建内存费率表仓储.
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{schedules: make(map[string]*domain.FeeSchedule)}
}

// Save 注册或覆盖费率表.
func (r *ScheduleRepository) Save(_ context.Context, s *domain.FeeSchedule) error {
	if _, exists := r.schedules[s.ID]; !exists {
		r.order = append(r.order, s.ID)
	}
	r.schedules[s.ID] = s
	return nil
}

// Get 按 ID 查询费率表.
func (r *ScheduleRepository) Get(_ context.Context, id string) (*domain.FeeSchedule, error) {
	s, ok := r.schedules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	return s, nil
}

// List 按注册顺序列出全部费率表.
func (r *ScheduleRepository) List(_ context.Context) ([]*domain.FeeSchedule, error) {
	out := make([]*domain.FeeSchedule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.schedules[id])
	}
	return out, nil
}

// ClientRepository 内存客户仓储.
type ClientRepository struct {
	clients map[string]*domain.Client
	order   []string
}

// NewClientRepository 创建内存客户仓储.
func NewClientRepository() *ClientRepository {
	return &ClientRepository{clients: make(map[string]*domain.Client)}
}

// Save 注册或覆盖客户.
func (r *ClientRepository) Save(_ context.Context, c *domain.Client) error {
	if _, exists := r.clients[c.ID]; !exists {
		r.order = append(r.order, c.ID)
	}
	r.clients[c.ID] = c
	return nil
}

// Get 按 ID 查询客户.
func (r *ClientRepository) Get(_ context.Context, id string) (*domain.Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrClientNotFound, id)
	}
	return c, nil
}

// List 按注册顺序列出全部客户.
func (r *ClientRepository) List(_ context.Context) ([]*domain.Client, error) {
	out := make([]*domain.Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out, nil
}
