package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/models"
	"custom-alerts-service/internal/service"
)

// runMessage is what the external scheduler publishes once per period per
// site.
type runMessage struct {
	RequestID string `json:"request_id"`
	Period    string `json:"period"`
	Date      string `json:"date"`
	SiteID    int64  `json:"site_id"`
}

// Consumer reads scheduler run messages and queues them on the run service.
type Consumer struct {
	reader *kafka.Reader
	svc    *service.Service
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc *service.Service) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
	})
	return &Consumer{reader: reader, svc: svc, logger: svc.Logger()}
}

func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started")
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var run runMessage
			if err := json.Unmarshal(msg.Value, &run); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}

			granularity := models.Granularity(run.Period)
			if !granularity.Valid() || run.SiteID < 1 {
				c.logger.Errorf("Invalid run message: period=%q site_id=%d", run.Period, run.SiteID)
				continue
			}
			date, err := time.Parse("2006-01-02", run.Date)
			if err != nil {
				c.logger.Errorf("Invalid run date %q: %v", run.Date, err)
				continue
			}
			if run.RequestID == "" {
				run.RequestID = uuid.NewString()
			}

			c.svc.QueueRun(service.RunJob{
				RequestID: run.RequestID,
				Period:    models.NewPeriod(granularity, date),
				SiteID:    run.SiteID,
			})
		}
	}()
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
