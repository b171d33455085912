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
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/worker"
)

// process 执行一条排课消息并确认
func process(ctx context.Context, w *worker.Worker, delivery amqp.Delivery, logger *slog.Logger) {
	var message domain.ScheduleRunMessage
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		logger.Error("排课消息反序列化失败", slog.String("error", err.Error()))
		_ = delivery.Nack(false, false)
		return
	}

	logger.Info("收到排课任务", slog.Int64("run_id", message.RunID))

	if err := w.Handle(ctx, message); err != nil {
		logger.Error("排课任务执行失败", slog.Int64("run_id", message.RunID), slog.String("error", err.Error()))
		// 任务不存在时重新入队也没有意义
		_ = delivery.Nack(false, !errors.Is(err, worker.ErrRunNotFound))
		return
	}

	_ = delivery.Ack(false)
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库、redis 和 RabbitMQ
	 **********************************************/
	dbpool, err := infra.OpenDB(cfg)
	if err != nil {
		logger.Error("无法连接数据库", slog.String("error", err.Error()))
		return
	}
	defer dbpool.Close()

	rdb, err := infra.OpenRedis(cfg)
	if err != nil {
		logger.Error("无法连接 redis", slog.String("error", err.Error()))
		return
	}
	defer rdb.Close()

	// 排课是 CPU 密集型任务，每个 worker 同一时间只处理一个
	broker, err := infra.OpenBroker(cfg, 1)
	if err != nil {
		logger.Error("无法连接消息队列", slog.String("error", err.Error()))
		return
	}
	defer broker.Close()

	w := worker.New(
		repository.NewRepository(cfg, dbpool),
		progress.NewStore(rdb, time.Duration(cfg.Scheduler.ProgressExpiration)*time.Second),
		broker.Publisher(cfg),
		logger,
	)

	deliveries, err := broker.Consume(queue.SchedulingQueue)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 关闭时取消正在进行的排课，排课会在下一代开始前停止并保存当前结果
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
				process(ctx, w, delivery, logger)
			}
		}
	}()

	logger.Info("等待排课任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 scheduling worker...")
	cancel()
	wg.Wait()
	logger.Info("scheduling worker 已成功关闭")
}
