package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	MailQueue       = "email_queue"
	SchedulingQueue = "scheduling_queue"
)

// DeclareQueues 声明所有用到的队列
func DeclareQueues(ch *amqp.Channel) error {
	for _, name := range []string{MailQueue, SchedulingQueue} {
		_, err := ch.QueueDeclare(
			name,  // 队列名称
			true,  // 是否持久化
			false, // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
			false, // 是否独占
			false, // 是否不等待
			nil,   // 额外参数
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Publisher 将消息序列化为 JSON 后投递到指定队列
type Publisher struct {
	ch      *amqp.Channel
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, timeout time.Duration) *Publisher {
	return &Publisher{
		ch:      ch,
		timeout: timeout,
	}
}

func (p *Publisher) Publish(queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
