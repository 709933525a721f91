package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/xiaoheiCat/pytakeoff/internal/config"
	"github.com/xiaoheiCat/pytakeoff/internal/database"
	"github.com/xiaoheiCat/pytakeoff/internal/router"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，默认当前目录 config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 数据库和上传目录不存在时自动创建
	if dir := filepath.Dir(cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("创建数据目录失败: %v", err)
		}
	}
	if cfg.Upload.Dir != "" {
		if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
			log.Fatalf("创建上传目录失败: %v", err)
		}
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	if err := database.Seed(db, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Fatalf("初始化数据失败: %v", err)
	}

	r := router.Setup(db, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Printf("服务启动于 %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}
