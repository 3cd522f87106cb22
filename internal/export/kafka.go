// Package export publishes closed footprint candles to Kafka.
package export

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/internal/models"
)

// Producer is the part of *kafka.Producer the sink uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// CandleMessage is the JSON value of one exported candle.
type CandleMessage struct {
	ChartID          string                 `json:"chart_id"`
	Symbol           string                 `json:"symbol"`
	TimeframeMinutes int                    `json:"timeframe_minutes"`
	TickSize         float64                `json:"tick_size"`
	Candle           models.FootprintCandle `json:"candle"`
}

// Meta describes the series a candle belongs to. It is read on every
// publish since settings may change at runtime.
type Meta func() (symbol string, timeframeMinutes int, tickSize float64)

// KafkaSink publishes closed candles keyed by symbol.
type KafkaSink struct {
	producer Producer
	topic    string
	chartID  string
	meta     Meta
	logger   *logrus.Logger

	failures atomic.Int64
	wg       sync.WaitGroup
	once     sync.Once
}

// NewKafkaProducer connects a producer to broker.
func NewKafkaProducer(broker string) (*kafka.Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaSink wraps producer and starts its delivery report loop.
func NewKafkaSink(producer Producer, topic, chartID string, meta Meta, logger *logrus.Logger) *KafkaSink {
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		chartID:  chartID,
		meta:     meta,
		logger:   logger,
	}
	s.wg.Add(1)
	go s.deliveryReport()
	logger.WithField("topic", topic).Info("Kafka candle export started")
	return s
}

// deliveryReport logs failed deliveries until the events channel closes.
func (s *KafkaSink) deliveryReport() {
	defer s.wg.Done()
	for e := range s.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				s.failures.Add(1)
				s.logger.WithError(ev.TopicPartition.Error).WithField("key", string(ev.Key)).Error("Candle delivery failed")
			}
		case kafka.Error:
			s.logger.WithError(ev).Warn("Kafka producer error")
		}
	}
}

// Publish queues every candle. Encoding or enqueue errors are logged and
// the rest of the batch still goes out.
func (s *KafkaSink) Publish(candles []models.FootprintCandle) {
	symbol, timeframe, tick := s.meta()
	for _, c := range candles {
		value, err := json.Marshal(CandleMessage{
			ChartID:          s.chartID,
			Symbol:           symbol,
			TimeframeMinutes: timeframe,
			TickSize:         tick,
			Candle:           c,
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to encode candle")
			continue
		}
		err = s.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
			Key:            []byte(symbol),
			Value:          value,
		}, nil)
		if err != nil {
			s.failures.Add(1)
			s.logger.WithError(err).WithField("open_time", c.OpenTime).Error("Failed to queue candle")
		}
	}
}

// Failures counts candles that could not be queued or delivered.
func (s *KafkaSink) Failures() int64 {
	return s.failures.Load()
}

// Close flushes pending messages for up to timeoutMs and closes the producer.
func (s *KafkaSink) Close(timeoutMs int) {
	s.once.Do(func() {
		if left := s.producer.Flush(timeoutMs); left > 0 {
			s.logger.WithField("pending", left).Warn("Kafka flush timed out")
		}
		s.producer.Close()
		s.wg.Wait()
		s.logger.Info("Kafka candle export closed")
	})
}
