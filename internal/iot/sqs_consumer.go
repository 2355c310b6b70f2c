package iot

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"parking_dashboard/internal/config"
	"parking_dashboard/internal/detector"
	"parking_dashboard/internal/domain"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSConsumer - đường ingest dự phòng: detector node không mở được
// WebSocket trực tiếp (NAT, mạng site) có thể đẩy event qua SQS.
// Payload giống hệt frame WebSocket, nên consumer chỉ decode đủ để
// route theo type rồi giao cho đúng monitor handler.
type SQSConsumer struct {
	sqsClient   *sqs.Client
	queueURL    string
	gateHandler detector.MessageHandler
	lotHandler  detector.MessageHandler
}

func NewSQSConsumer(client *sqs.Client, cfg *config.Config, gateHandler detector.MessageHandler, lotHandler detector.MessageHandler) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:   client,
		queueURL:    cfg.SQSEventQueueURL,
		gateHandler: gateHandler,
		lotHandler:  lotHandler,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Printf("SQS Consumer đang bắt đầu lắng nghe queue: %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS Consumer: context cancelled, stopping.")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            &c.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("SQS Consumer: Lỗi khi nhận message: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					log.Println("SQS Consumer: context cancelled while waiting for retry.")
					return
				}
				continue
			}

			if len(result.Messages) == 0 {
				continue
			}

			log.Printf("SQS Consumer: Đã nhận %d message(s)", len(result.Messages))

			for _, message := range result.Messages {
				if message.Body == nil {
					log.Println("SQS Consumer: Nhận được message với body rỗng. Đang xóa...")
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				processingErr := c.routeMessage(ctx, []byte(*message.Body))

				if processingErr == nil {
					c.deleteMessage(ctx, message.ReceiptHandle)
				} else {
					log.Printf("SQS Consumer: Lỗi khi xử lý message ID %s: %v. Message sẽ được xử lý lại sau visibility timeout.", *message.MessageId, processingErr)
				}
			}
		}
	}
}

// routeMessage decode vừa đủ để biết loại event rồi giao cho handler của
// monitor tương ứng. Message không nhận dạng được bị coi là xử lý xong
// (xóa khỏi queue) để không lặp vô hạn.
func (c *SQSConsumer) routeMessage(ctx context.Context, body []byte) error {
	var generic domain.GenericDetectorEvent
	if err := json.Unmarshal(body, &generic); err != nil {
		log.Printf("SQS Consumer: bỏ qua message không decode được: %v", err)
		return nil
	}

	switch generic.Type {
	case domain.MessageTypePlateDetection:
		return c.gateHandler.HandleDetectorMessage(ctx, body)
	case domain.MessageTypeCapacityUpdate:
		return c.lotHandler.HandleDetectorMessage(ctx, body)
	default:
		log.Printf("SQS Consumer: bỏ qua message type không xác định: '%s'", generic.Type)
		return nil
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS Consumer: Receipt handle rỗng, không thể xóa message.")
		return
	}
	_, delErr := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("SQS Consumer: Lỗi khi xóa message: %v", delErr)
	}
}
