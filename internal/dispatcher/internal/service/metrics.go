package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	keyBorrows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hanmo",
		Subsystem: "dispatcher",
		Name:      "key_borrows_total",
		Help:      "成功借出 Key 的次数",
	})
	keyReturns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hanmo",
		Subsystem: "dispatcher",
		Name:      "key_returns_total",
		Help:      "归还 Key 的次数",
	})
	keyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hanmo",
		Subsystem: "dispatcher",
		Name:      "key_failures_total",
		Help:      "Key 被标记失败的次数",
	})
	rateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hanmo",
		Subsystem: "dispatcher",
		Name:      "rate_rejections_total",
		Help:      "限流拒绝次数",
	})
)
