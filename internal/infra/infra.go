// Package infra 负责建立各个进程共用的外部连接
package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB 创建数据库连接池并确认数据库可用
func OpenDB(cfg *config.Config) (*sql.DB, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 不会真正建立连接
	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	return dbpool, nil
}

// OpenRedis 连接保存排课进度的 redis
func OpenRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("无法连接到 redis: %w", err)
	}

	return rdb, nil
}

// Broker 是一条 RabbitMQ 连接和在其上打开的通道，队列已经声明好
type Broker struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// OpenBroker 连接 RabbitMQ 并声明邮件队列和排课队列
// prefetch 大于 0 时限制该通道上未确认消息的数量
func OpenBroker(cfg *config.Config, prefetch int) (*Broker, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return nil, fmt.Errorf("无法连接到 RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建通道: %w", err)
	}

	b := &Broker{Conn: conn, Channel: ch}

	if err := queue.DeclareQueues(ch); err != nil {
		b.Close()
		return nil, fmt.Errorf("无法声明队列: %w", err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			b.Close()
			return nil, fmt.Errorf("无法设置预取数量: %w", err)
		}
	}

	return b, nil
}

// Publisher 返回在该通道上投递消息的 publisher
func (b *Broker) Publisher(cfg *config.Config) *queue.Publisher {
	return queue.NewPublisher(b.Channel, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
}

// Consume 以手动确认的方式消费指定队列
func (b *Broker) Consume(name string) (<-chan amqp.Delivery, error) {
	return b.Channel.Consume(
		name,  // 队列
		"",    // 消费者标识，由 RabbitMQ 自动分配
		false, // 手动确认
		false, // 是否独占队列
		false, // 必须为 false，RabbitMQ 不支持这个参数
		false, // 等待 RabbitMQ 响应
		nil,   // 额外参数
	)
}

func (b *Broker) Close() {
	_ = b.Channel.Close()
	_ = b.Conn.Close()
}
