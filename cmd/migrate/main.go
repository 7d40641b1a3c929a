package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/pkg/database"
	applogger "github.com/KhalilA93/TImesheetTracker/pkg/logger"
)

// 独立的迁移工具：默认执行全部未应用的迁移，--down N 回滚 N 个版本
func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径")
	down := pflag.Int("down", 0, "回滚的迁移版本数，0 表示执行 up")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	if *down > 0 {
		err = database.RollbackMigrations(sqlDB, *down, logger)
	} else {
		err = database.RunMigrations(sqlDB, logger)
	}
	if err != nil {
		logger.Fatal("迁移失败", zap.Error(err))
	}
}
