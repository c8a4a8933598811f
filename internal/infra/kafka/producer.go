package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
)

const (
	producerClientID   = "securityd-alerts"
	deliveryErrBacklog = 64
)

// Producer owns the Sarama async producer used for security alerts and surfaces
// delivery failures both in the log and on Errors.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	failures chan error
	done     chan struct{}
}

// NewProducer connects to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("create kafka producer: no brokers configured")
	}

	async, err := sarama.NewAsyncProducer(cfg.Brokers, alertProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(async, cfg, logger)
	p.logger.Info("security alert producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

// alertProducerConfig favours durability over throughput: alerts are rare and
// a dropped one hides an attack, so the producer is idempotent and waits for
// every in-sync replica.
func alertProducerConfig() *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = producerClientID
	sc.Version = sarama.V3_5_0_0

	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 200 * time.Millisecond
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond
	return sc
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		producer: async,
		logger:   logger,
		prefix:   cfg.TopicPrefix,
		failures: make(chan error, deliveryErrBacklog),
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *Producer) drainErrors() {
	for {
		var perr *sarama.ProducerError
		var ok bool
		select {
		case perr, ok = <-p.producer.Errors():
			if !ok {
				return
			}
		case <-p.done:
			return
		}
		if perr == nil {
			continue
		}

		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("security alert delivery failed", zap.Error(perr.Err), zap.String("topic", topic))

		select {
		case p.failures <- perr.Err:
		default:
			p.logger.Warn("delivery failure backlog full, dropping error")
		}
	}
}

// Input is where the alert publisher enqueues messages.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Errors yields delivery failures. Once the backlog is full, new failures are
// only logged.
func (p *Producer) Errors() <-chan error {
	return p.failures
}

// Close flushes pending alerts.
func (p *Producer) Close() error {
	p.logger.Info("closing security alert producer")
	close(p.done)

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName prefixes name with the configured topic prefix unless it already carries it.
func (p *Producer) TopicName(name string) string {
	if p.prefix == "" || strings.HasPrefix(name, p.prefix+".") {
		return name
	}
	return p.prefix + "." + name
}
