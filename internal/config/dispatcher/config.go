package dispatcher_config

import (
	"time"

	"github.com/mkorobov/notibox/internal/obs"
	pginfra "github.com/mkorobov/notibox/internal/repository/postgres"
)

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type DispatchCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	Cron        string        `mapstructure:"cron"`
	BatchLimit  int           `mapstructure:"batch_limit"`
	TxTimeout   time.Duration `mapstructure:"tx_timeout"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type OutboxCfg struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
	Ver    string `mapstructure:"ver"`
}

func (c LogCfg) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Level,
		Pretty: c.Pretty,
		App:    "dispatcher",
		Env:    c.Env,
		Ver:    c.Ver,
	}
}

type OTELCfg struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"otlp_endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func (c OTELCfg) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.Enable,
		Endpoint:    c.Endpoint,
		ServiceName: c.ServiceName,
		SampleRatio: c.SampleRatio,
	}
}

type Config struct {
	DB     pginfra.Config `mapstructure:"db"`
	Kafka  KafkaCfg       `mapstructure:"kafka"`
	Sched  DispatchCfg    `mapstructure:"sched"`
	Outbox OutboxCfg      `mapstructure:"outbox"`
	Log    LogCfg         `mapstructure:"log"`
	OTEL   OTELCfg        `mapstructure:"otel"`
}
