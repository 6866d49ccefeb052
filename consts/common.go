package consts

const (
	B = 1 << (iota * 10)
	KB
	MB
	GB
)

const HelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
COMMANDS:
{{range .Commands}}{{if not .HideHelp}}   {{join .Names ", "}}{{ "\t"}}{{.Usage}}{{ "\n" }}{{end}}{{end}}{{end}}{{if .VisibleFlags}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Copyright }}
COPYRIGHT:
   {{.Copyright}}
   {{end}}{{if .Version}}
VERSION:
   {{.Version}}
   {{end}}
`

// 组件名，用于日志 component 字段
const (
	ComponentReactor     = "reactor"
	ComponentConnections = "connections"
	ComponentServer      = "server"
	ComponentClient      = "client"
)

// 默认参数
const (
	DefaultQueueCapacity = 1024
	DefaultEventBuffer   = 256
	DefaultTokenCapacity = 4096
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8014
	DefaultBacklog       = 128
	DefaultWorkers       = 64
	DefaultHandler       = "echo"
	DefaultBufferSize    = 4 * KB
	DefaultDialTimeout   = 3 // 秒
	MaxRequestSize       = 64 * KB
)
