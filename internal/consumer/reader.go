package consumer

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// NewKafkaReader builds a consumer-group reader for one topic.
func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(readerConfig(brokers, groupID, topic))
}

// NewBroadcastReader builds a reader in a consumer group of its own, so every
// process sees every record of topic. It starts at the newest offset.
func NewBroadcastReader(brokers []string, groupPrefix, topic string) *kafka.Reader {
	cfg := readerConfig(brokers, BroadcastGroupID(groupPrefix), topic)
	cfg.StartOffset = kafka.LastOffset
	return kafka.NewReader(cfg)
}

// BroadcastGroupID derives a consumer group unique to this process.
func BroadcastGroupID(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return prefix + "-" + host + "-" + uuid.NewString()[:8]
}

func readerConfig(brokers []string, groupID, topic string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         groupID,
		Topic:           topic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	}
}
