package events

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/IBM/sarama"

	"briefbot/config"
	"briefbot/types"
)

// Publisher emits a build-report event after each successful dedup run so
// downstream issue-build steps (article selection, delivery) can react
// without polling the database. Optional: disabled when KAFKA_BROKERS is
// not configured.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisherFromEnv creates a Publisher when KAFKA_BROKERS is set, or
// returns nil (publishing disabled) when it is not.
func NewPublisherFromEnv() (*Publisher, error) {
	brokers := strings.TrimSpace(config.GetEnvOrDefault("KAFKA_BROKERS", ""))
	if brokers == "" {
		return nil, nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	topic := config.GetEnvOrDefault("KAFKA_DEDUP_TOPIC", "dedup-reports")
	log.Printf("✅ Kafka publisher ready (topic: %s)", topic)
	return &Publisher{producer: producer, topic: topic}, nil
}

// PublishRunReport sends the run report keyed by issue id, so all reports
// for one issue land on the same partition in order.
func (p *Publisher) PublishRunReport(report *types.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(report.IssueID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send run report: %w", err)
	}

	log.Printf("events: published run report for issue %s (partition=%d, offset=%d)",
		report.IssueID, partition, offset)
	return nil
}

// Close shuts down the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
