package consts

const (
	Env       = "EGGIE_NET_ENV"       // 运行环境，test 表示单测
	EnvPrefix = "EGGIE_NET"           // viper 环境变量前缀
	Host      = "EGGIE_NET_HOST"      // 主机名，目前只支持ip
	Port      = "EGGIE_NET_PORT"      // 端口
	Config    = "EGGIE_NET_CONFIG"    // 配置文件目录
	Workers   = "EGGIE_NET_WORKERS"   // 处理协程池容量
	Handler   = "EGGIE_NET_HANDLER"   // 处理器类型
	QueueCap  = "EGGIE_NET_QUEUE_CAP" // readiness queue 容量
)
