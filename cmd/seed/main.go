package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/infra"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/seed"
)

const usage = `用法:
  seed users [-n 数量]       插入随机用户
  seed subjects [-file 路径]  从 CSV 插入科目`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	usersCmd := flag.NewFlagSet("users", flag.ExitOnError)
	n := usersCmd.Int("n", 5, "要插入的用户数量")

	subjectsCmd := flag.NewFlagSet("subjects", flag.ExitOnError)
	file := subjectsCmd.String("file", seed.DefaultSubjectsFile, "科目 CSV 文件路径")

	switch os.Args[1] {
	case "users":
		_ = usersCmd.Parse(os.Args[2:])
	case "subjects":
		_ = subjectsCmd.Parse(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbpool, err := infra.OpenDB(cfg)
	if err != nil {
		logger.Error("无法连接数据库", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbpool.Close()

	repo := repository.NewRepository(cfg, dbpool)

	var cnt int
	switch os.Args[1] {
	case "users":
		cnt, err = seed.SeedUsers(repo, *n, cfg.Seed.User.Password, cfg.Email.UserDomain)
	case "subjects":
		cnt, err = seed.SeedSubjectsFromFile(repo, *file, cfg.Scheduler.NumDays*cfg.Scheduler.NumSlots)
	}
	if err != nil {
		logger.Error("插入数据失败", slog.String("target", os.Args[1]), slog.Int("count", cnt), slog.String("error", err.Error()))
		return
	}

	logger.Info("插入数据成功", slog.String("target", os.Args[1]), slog.Int("count", cnt))
}
