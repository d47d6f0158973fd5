// Package mysql 提供基于 GORM 的持久化仓储实现.
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wealthops/advisorybilling/internal/billing/domain"
	"gorm.io/gorm"
)

// FeeScheduleModel 费率表 GORM 模型.
// 层级、排除规则与调整项序列化为 JSON 列，结构随领域模型演进.
type FeeScheduleModel struct {
	gorm.Model
	ScheduleID    string     `gorm:"column:schedule_id;uniqueIndex;type:varchar(64);not null"`
	FeeCode       string     `gorm:"column:fee_code;index;type:varchar(32);not null"`
	Name          string     `gorm:"column:name;type:varchar(255)"`
	FeeType       string     `gorm:"column:fee_type;type:varchar(32);not null"`
	FlatPercent   float64    `gorm:"column:flat_percent;type:decimal(10,6)"`
	FlatAmount    float64    `gorm:"column:flat_amount;type:decimal(18,4)"`
	MinimumFee    float64    `gorm:"column:minimum_fee;type:decimal(18,4)"`
	MaximumFee    float64    `gorm:"column:maximum_fee;type:decimal(18,4)"`
	Tiers         string     `gorm:"column:tiers_json;type:text"`
	Exclusions    string     `gorm:"column:exclusions_json;type:text"`
	Adjustments   string     `gorm:"column:adjustments_json;type:text"`
	EffectiveDate time.Time  `gorm:"column:effective_date"`
	EndDate       *time.Time `gorm:"column:end_date"`
	Active        bool       `gorm:"column:active"`
	Description   string     `gorm:"column:description;type:varchar(512)"`
}

func (FeeScheduleModel) TableName() string { return "fee_schedules" }

// ClientModel 客户 GORM 模型.
type ClientModel struct {
	gorm.Model
	ClientID         string `gorm:"column:client_id;uniqueIndex;type:varchar(64);not null"`
	Name             string `gorm:"column:name;type:varchar(255)"`
	ClientCode       string `gorm:"column:client_code;type:varchar(64)"`
	FeeScheduleID    string `gorm:"column:fee_schedule_id;index;type:varchar(64)"`
	BillingFrequency string `gorm:"column:billing_frequency;type:varchar(16)"`
	Overrides        string `gorm:"column:overrides_json;type:text"`
	Adjustments      string `gorm:"column:adjustments_json;type:text"`
	Active           bool   `gorm:"column:active"`
	Notes            string `gorm:"column:notes;type:varchar(512)"`
}

func (ClientModel) TableName() string { return "billing_clients" }

// ScheduleRepository 基于 MySQL 的费率表仓储.
type ScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository 创建 MySQL 费率表仓储.
func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Save 写入或更新费率表.
func (r *ScheduleRepository) Save(ctx context.Context, s *domain.FeeSchedule) error {
	tiers, err := json.Marshal(s.Tiers)
	if err != nil {
		return fmt.Errorf("marshal tiers: %w", err)
	}
	exclusions, err := json.Marshal(s.FundExclusions)
	if err != nil {
		return fmt.Errorf("marshal exclusions: %w", err)
	}
	adjustments, err := json.Marshal(s.Adjustments)
	if err != nil {
		return fmt.Errorf("marshal adjustments: %w", err)
	}

	m := &FeeScheduleModel{
		ScheduleID:    s.ID,
		FeeCode:       s.FeeCode,
		Name:          s.Name,
		FeeType:       string(s.FeeType),
		FlatPercent:   s.FlatPercent,
		FlatAmount:    s.FlatAmount,
		MinimumFee:    s.MinimumFee,
		MaximumFee:    s.MaximumFee,
		Tiers:         string(tiers),
		Exclusions:    string(exclusions),
		Adjustments:   string(adjustments),
		EffectiveDate: s.EffectiveDate,
		EndDate:       s.EndDate,
		Active:        s.Active,
		Description:   s.Description,
	}

	var existing FeeScheduleModel
	err = r.db.WithContext(ctx).Where("schedule_id = ?", s.ID).First(&existing).Error
	switch {
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(m).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(m).Error
	default:
		return err
	}
}

// Get 按 ID 查询费率表.
func (r *ScheduleRepository) Get(ctx context.Context, id string) (*domain.FeeSchedule, error) {
	var m FeeScheduleModel
	if err := r.db.WithContext(ctx).Where("schedule_id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
		}
		return nil, err
	}
	return toScheduleDomain(&m)
}

// List 列出全部费率表，按主键顺序.
func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.FeeSchedule, error) {
	var models []*FeeScheduleModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.FeeSchedule, 0, len(models))
	for _, m := range models {
		s, err := toScheduleDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func toScheduleDomain(m *FeeScheduleModel) (*domain.FeeSchedule, error) {
	s := &domain.FeeSchedule{
		ID:            m.ScheduleID,
		FeeCode:       m.FeeCode,
		Name:          m.Name,
		FeeType:       domain.FeeType(m.FeeType),
		FlatPercent:   m.FlatPercent,
		FlatAmount:    m.FlatAmount,
		MinimumFee:    m.MinimumFee,
		MaximumFee:    m.MaximumFee,
		EffectiveDate: m.EffectiveDate,
		EndDate:       m.EndDate,
		Active:        m.Active,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Tiers != "" {
		if err := json.Unmarshal([]byte(m.Tiers), &s.Tiers); err != nil {
			return nil, fmt.Errorf("unmarshal tiers for %s: %w", m.ScheduleID, err)
		}
	}
	if m.Exclusions != "" {
		if err := json.Unmarshal([]byte(m.Exclusions), &s.FundExclusions); err != nil {
			return nil, fmt.Errorf("unmarshal exclusions for %s: %w", m.ScheduleID, err)
		}
	}
	if m.Adjustments != "" {
		if err := json.Unmarshal([]byte(m.Adjustments), &s.Adjustments); err != nil {
			return nil, fmt.Errorf("unmarshal adjustments for %s: %w", m.ScheduleID, err)
		}
	}
	return s, nil
}

// ClientRepository 基于 MySQL 的客户仓储.
type ClientRepository struct {
	db *gorm.DB
}

// NewClientRepository 创建 MySQL 客户仓储.
func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Save 写入或更新客户.
func (r *ClientRepository) Save(ctx context.Context, c *domain.Client) error {
	overrides, err := json.Marshal(c.ScheduleOverrides)
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}
	adjustments, err := json.Marshal(c.Adjustments)
	if err != nil {
		return fmt.Errorf("marshal adjustments: %w", err)
	}

	m := &ClientModel{
		ClientID:         c.ID,
		Name:             c.Name,
		ClientCode:       c.ClientCode,
		FeeScheduleID:    c.FeeScheduleID,
		BillingFrequency: string(c.BillingFrequency),
		Overrides:        string(overrides),
		Adjustments:      string(adjustments),
		Active:           c.Active,
		Notes:            c.Notes,
	}

	var existing ClientModel
	err = r.db.WithContext(ctx).Where("client_id = ?", c.ID).First(&existing).Error
	switch {
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(m).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(m).Error
	default:
		return err
	}
}

// Get 按 ID 查询客户.
func (r *ClientRepository) Get(ctx context.Context, id string) (*domain.Client, error) {
	var m ClientModel
	if err := r.db.WithContext(ctx).Where("client_id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrClientNotFound, id)
		}
		return nil, err
	}
	return toClientDomain(&m)
}

// List 列出全部客户.
func (r *ClientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	var models []*ClientModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Client, 0, len(models))
	for _, m := range models {
		c, err := toClientDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toClientDomain(m *ClientModel) (*domain.Client, error) {
	c := &domain.Client{
		ID:               m.ClientID,
		Name:             m.Name,
		ClientCode:       m.ClientCode,
		FeeScheduleID:    m.FeeScheduleID,
		BillingFrequency: domain.BillingFrequency(m.BillingFrequency),
		Active:           m.Active,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.Overrides != "" {
		if err := json.Unmarshal([]byte(m.Overrides), &c.ScheduleOverrides); err != nil {
			return nil, fmt.Errorf("unmarshal overrides for %s: %w", m.ClientID, err)
		}
	}
	if m.Adjustments != "" {
		if err := json.Unmarshal([]byte(m.Adjustments), &c.Adjustments); err != nil {
			return nil, fmt.Errorf("unmarshal adjustments for %s: %w", m.ClientID, err)
		}
	}
	return c, nil
}
