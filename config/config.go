package config

import (
	"errors"
	"io/fs"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/logs"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config 服务端与 reactor 的全部配置
type Config struct {
	QueueCapacity int
	EventBuffer   int
	TokenCapacity int

	Host    string
	Port    int
	Backlog int
	Workers int
	Handler string

	PushURL      string
	PushInterval time.Duration
}

func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Load 读取配置，优先级：环境变量 > 配置文件 > 默认值
// path 为目录时读取其中的 config.yaml，为 .yaml/.yml 文件时直接读取，为空时使用 ~/eggie_net/config
// 配置文件不存在不算错误
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = consts.DefaultConfigPath
	}
	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(consts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			e := errs.NewReadConfigErr().WithErr(err)
			logs.Logger.Error(e.Error(), zap.String(consts.LogFieldParams, "path"), zap.String(consts.LogFieldValue, path))
			return nil, e
		}
		logs.Logger.Info("config file not found, using defaults", zap.String(consts.LogFieldValue, path))
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(consts.ConfigReactorQueueCapacity, consts.DefaultQueueCapacity)
	v.SetDefault(consts.ConfigReactorEventBuffer, consts.DefaultEventBuffer)
	v.SetDefault(consts.ConfigReactorTokenCapacity, consts.DefaultTokenCapacity)
	v.SetDefault(consts.ConfigServerHost, consts.DefaultHost)
	v.SetDefault(consts.ConfigServerPort, consts.DefaultPort)
	v.SetDefault(consts.ConfigServerBacklog, consts.DefaultBacklog)
	v.SetDefault(consts.ConfigServerWorkers, consts.DefaultWorkers)
	v.SetDefault(consts.ConfigServerHandler, consts.DefaultHandler)
	v.SetDefault(consts.ConfigMetricsPushURL, "")
	v.SetDefault(consts.ConfigMetricsPushInterval, 5*time.Second)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		QueueCapacity: v.GetInt(consts.ConfigReactorQueueCapacity),
		EventBuffer:   v.GetInt(consts.ConfigReactorEventBuffer),
		TokenCapacity: v.GetInt(consts.ConfigReactorTokenCapacity),
		Host:          v.GetString(consts.ConfigServerHost),
		Port:          v.GetInt(consts.ConfigServerPort),
		Backlog:       v.GetInt(consts.ConfigServerBacklog),
		Workers:       v.GetInt(consts.ConfigServerWorkers),
		Handler:       v.GetString(consts.ConfigServerHandler),
		PushURL:       v.GetString(consts.ConfigMetricsPushURL),
		PushInterval:  v.GetDuration(consts.ConfigMetricsPushInterval),
	}
}

func (c *Config) Validate() error {
	checks := []struct {
		name string
		ok   bool
		val  interface{}
	}{
		{consts.ConfigReactorQueueCapacity, c.QueueCapacity > 0, c.QueueCapacity},
		{consts.ConfigReactorEventBuffer, c.EventBuffer > 0, c.EventBuffer},
		// 监听、停止、completion 各占一个 token，至少还要留一个给连接
		{consts.ConfigReactorTokenCapacity, c.TokenCapacity > 4, c.TokenCapacity},
		{consts.ConfigServerPort, c.Port >= 0 && c.Port <= 65535, c.Port},
		{consts.ConfigServerWorkers, c.Workers > 0, c.Workers},
		{consts.ConfigMetricsPushInterval, c.PushURL == "" || c.PushInterval > 0, c.PushInterval},
	}
	for _, check := range checks {
		if !check.ok {
			e := errs.NewInvalidParamErr()
			logs.Logger.Error(e.Error(), zap.String(consts.LogFieldParams, check.name), zap.Any(consts.LogFieldValue, check.val))
			return e
		}
	}
	return nil
}

// Addr host:port，IPv6 地址会加上方括号
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
