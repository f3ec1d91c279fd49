package ioc

import (
	"os"
	"strings"

	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/redis/go-redis/v9"
)

func InitDispatcherModule(client redis.Cmdable) *dispatcher.Module {
	cfg := dispatcher.DefaultConfig()
	if err := econf.UnmarshalKey("dispatcher", &cfg); err != nil {
		panic(err)
	}
	m := dispatcher.InitModule(cfg, client)
	seedAPIKeys(m)
	return m
}

// seedAPIKeys 启动时把配置的 Key 灌进池。环境变量优先于配置文件。
func seedAPIKeys(m *dispatcher.Module) {
	raw := os.Getenv("AI_API_KEYS")
	if raw == "" {
		raw = econf.GetString("homework.apiKeys")
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		elog.DefaultLogger.Warn("未配置任何 API Key，批改请求将无法执行")
		return
	}
	m.Pool.AddKeys(keys)
	elog.DefaultLogger.Info("API Key 池初始化完成", elog.Int("count", len(keys)))
}
