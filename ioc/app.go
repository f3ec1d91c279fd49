package ioc

import (
	"github.com/gotomicro/ego/server/egin"
	"github.com/gotomicro/ego/task/ecron"
)

type App struct {
	Web   *egin.Component
	Crons []ecron.Ecron
}

// InitApp 显式装配整个应用。依赖从叶子到根逐个构造，
// 不用 DI 框架，启动失败直接 panic 暴露配置问题。
func InitApp() (*App, error) {
	db := InitDB()
	redisClient := InitRedis()
	ec := InitCache(redisClient)
	q := InitMQ()

	dispatcherModule := InitDispatcherModule(redisClient)
	homeworkModule := InitHomeworkModule(db, ec, q, dispatcherModule)

	return &App{
		Web:   initGinServer(homeworkModule.Hdl),
		Crons: initCronJobs(dispatcherModule.RecoveryJob),
	}, nil
}
