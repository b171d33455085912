package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/infra"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/mailer"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/wneessen/go-mail"
)

const templatesDir = "./templates"

// errRetry 表示投递失败，可以重新入队
var errRetry = errors.New("邮件发送失败")

func send(client *mail.Client, m *mailer.Mailer, delivery amqp.Delivery) error {
	var message domain.MailMessage
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return err
	}

	msg, err := m.Build(message)
	if err != nil {
		return err
	}

	if err := client.DialAndSend(msg); err != nil {
		return errors.Join(errRetry, err)
	}
	return nil
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 解析邮件模板
	 **********************************************/
	m, err := mailer.New(templatesDir, cfg.Email.SMTP.Username)
	if err != nil {
		logger.Error("无法加载邮件模板", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer dialCancel()
	if err := client.DialWithContext(dialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	broker, err := infra.OpenBroker(cfg, 0)
	if err != nil {
		logger.Error("无法连接消息队列", slog.String("error", err.Error()))
		return
	}
	defer broker.Close()

	deliveries, err := broker.Consume(queue.MailQueue)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}

				if err := send(client, m, delivery); err != nil {
					logger.Error("邮件处理失败", slog.Uint64("delivery_tag", delivery.DeliveryTag), slog.String("error", err.Error()))
					_ = delivery.Nack(false, errors.Is(err, errRetry))
					continue
				}

				logger.Info("邮件已发送", slog.Uint64("delivery_tag", delivery.DeliveryTag))
				_ = delivery.Ack(false)
			}
		}
	}()

	logger.Info("等待邮件消息...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 mail worker...")
	cancel()
	wg.Wait()
	logger.Info("mail worker 已成功关闭")
}
