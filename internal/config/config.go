package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，即 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	// 自动排课的默认参数，创建排课任务时未填写的字段使用这里的值
	Scheduler struct {
		PopulationSize     int     `env:"POPULATION_SIZE" envDefault:"100"`
		Generations        int     `env:"GENERATIONS" envDefault:"100"`
		MaxGenerations     int     `env:"MAX_GENERATIONS" envDefault:"5000"`
		CrossoverRate      float64 `env:"CROSSOVER_RATE" envDefault:"0.85"`
		MutationRate       float64 `env:"MUTATION_RATE" envDefault:"0.2"`
		EliteCount         int     `env:"ELITE_COUNT" envDefault:"2"`
		SelectionMethod    string  `env:"SELECTION_METHOD" envDefault:"roulette"`
		TournamentSize     int     `env:"TOURNAMENT_SIZE" envDefault:"3"`
		NumPeriods         int     `env:"NUM_PERIODS" envDefault:"6"`
		NumDays            int     `env:"NUM_DAYS" envDefault:"5"`
		NumSlots           int     `env:"NUM_SLOTS" envDefault:"4"`
		ProgressExpiration int     `env:"PROGRESS_EXPIRATION" envDefault:"86400"` // 秒
	} `envPrefix:"SCHEDULER_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.validateScheduler(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultRunParameters 返回默认的排课参数，创建排课任务时未填写的字段使用这里的值
func (c *Config) DefaultRunParameters() domain.RunParameters {
	s := c.Scheduler
	return domain.RunParameters{
		PopulationSize:  s.PopulationSize,
		Generations:     s.Generations,
		CrossoverRate:   s.CrossoverRate,
		MutationRate:    s.MutationRate,
		EliteCount:      s.EliteCount,
		SelectionMethod: domain.SelectionMethod(s.SelectionMethod),
		TournamentSize:  s.TournamentSize,
		NumPeriods:      s.NumPeriods,
		NumDays:         s.NumDays,
		NumSlots:        s.NumSlots,
	}
}

// validateScheduler 保证默认排课参数本身就是一组合法的参数
func (c *Config) validateScheduler() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c.DefaultRunParameters()); err != nil {
		return fmt.Errorf("默认排课参数不合法: %w", err)
	}
	if c.Scheduler.Generations > c.Scheduler.MaxGenerations {
		return fmt.Errorf("默认迭代次数 %d 超过了上限 %d", c.Scheduler.Generations, c.Scheduler.MaxGenerations)
	}
	if c.Scheduler.ProgressExpiration <= 0 {
		return errors.New("排课进度的过期时间必须大于 0")
	}
	return nil
}
