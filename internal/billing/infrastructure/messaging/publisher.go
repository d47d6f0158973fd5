// Package messaging 提供计费运行事件的 Kafka 发布者.
// 引擎本身不持久化结果，这里只在计算成功后发出轻量事件
// 供下游（开票、报表）消费.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wealthops/advisorybilling/internal/billing/domain"
)

// FeeRunCompleted 一次计费运行完成的事件载荷.
type FeeRunCompleted struct {
	RunID            string    `json:"run_id"`
	PeriodID         string    `json:"period_id"`
	PeriodName       string    `json:"period_name"`
	TotalClients     int       `json:"total_clients"`
	TotalAccounts    int       `json:"total_accounts"`
	TotalFees        float64   `json:"total_fees"`
	ErrorCount       int       `json:"error_count"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CompletedAt      time.Time `json:"completed_at"`
}

// EventPublisher 计费事件发布接口.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event FeeRunCompleted) error
	Close() error
}

// KafkaPublisher 基于 kafka-go 的事件发布者.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建 Kafka 发布者.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishRunCompleted 发布计费运行完成事件，以运行 ID 作为分区键.
func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, event FeeRunCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal fee run event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
	})
}

// Close 关闭底层 writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 空实现，未配置 Kafka 时使用.
type NopPublisher struct{}

// PublishRunCompleted 丢弃事件.
func (NopPublisher) PublishRunCompleted(context.Context, FeeRunCompleted) error { return nil }

// Close 无操作.
func (NopPublisher) Close() error { return nil }

// NewRunCompletedEvent 从计算结果构造事件载荷.
func NewRunCompletedEvent(runID string, result *domain.FeeCalculationResult) FeeRunCompleted {
	return FeeRunCompleted{
		RunID:            runID,
		PeriodID:         result.Summary.BillingPeriod.ID,
		PeriodName:       result.Summary.BillingPeriod.Name,
		TotalClients:     result.Summary.TotalClients,
		TotalAccounts:    result.Summary.TotalAccounts,
		TotalFees:        result.Summary.TotalFees,
		ErrorCount:       len(result.Errors),
		ProcessingTimeMs: result.ProcessingTimeMs,
		CompletedAt:      result.Summary.CalculationDate,
	}
}
