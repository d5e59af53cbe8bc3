package main

import (
	"context"
	"fmt"
	"log"

	"github.com/inkwell/internal/config"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
	"gorm.io/gorm"
)

// 测试数据生成器
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("读取配置失败:", err)
	}
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")
	summary, err := seed(context.Background(), db.DB)
	if err != nil {
		log.Fatal("生成测试数据失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Println("用户: admin / author / reader (密码均为 password123)")
	fmt.Printf("文章: %d 篇，其中已发布 %d 篇，待审核 %d 篇\n", summary.posts, summary.published, summary.pending)
}

type seedSummary struct {
	posts     int
	published int
	pending   int
}

type samplePost struct {
	title   string
	content string
	tags    []string
	publish bool
	request bool
}

var samplePosts = []samplePost{
	{
		title:   "Building Web Services with Go",
		content: "Go 的并发模型和简洁语法让它很适合构建 Web 服务。\n\n## 框架选择\n\n本文分享 **Gin** 与标准库的取舍。",
		tags:    []string{"Go", "Web"},
		publish: true,
	},
	{
		title:   "SQLite Tuning Notes",
		content: "SQLite 作为轻量级数据库，在很多场景下都有出色表现。\n\n- WAL 模式\n- busy_timeout\n- IMMEDIATE 事务",
		tags:    []string{"Database", "SQLite"},
		publish: true,
	},
	{
		title:   "GORM Tips",
		content: "总结 GORM 的常用用法和事务处理技巧。",
		tags:    []string{"Go", "Database"},
		request: true,
	},
	{
		title:   "Writing Gin Middleware",
		content: "中间件开发实战：日志、恢复、限流。",
		tags:    []string{"Go", "Web", "Tutorial"},
	},
}

// seed 通过服务层写入示例数据，已有文章时跳过。
func seed(ctx context.Context, gdb *gorm.DB) (seedSummary, error) {
	var summary seedSummary

	accounts := []struct {
		name string
		role db.Role
	}{
		{name: "admin", role: db.RoleAdmin},
		{name: "author", role: db.RoleAuthor},
		{name: "reader", role: db.RoleReader},
	}
	users := make(map[db.Role]service.Actor, len(accounts))
	for _, account := range accounts {
		if err := db.EnsureUser(gdb, account.name, "password123", account.role); err != nil {
			return summary, fmt.Errorf("创建用户 %s: %w", account.name, err)
		}
		var user db.User
		if err := gdb.WithContext(ctx).Where("username = ?", account.name).First(&user).Error; err != nil {
			return summary, err
		}
		users[account.role] = service.Actor{ID: user.ID, Role: user.Role}
	}

	var existing int64
	if err := gdb.WithContext(ctx).Model(&db.Post{}).Count(&existing).Error; err != nil {
		return summary, err
	}
	if existing > 0 {
		fmt.Println("文章已存在，跳过创建")
		return summary, nil
	}

	sanitizer := service.NewPolicySanitizer()
	tags := service.NewTagService(gdb, sanitizer)
	posts := service.NewPostService(gdb, tags, sanitizer, nil)
	publish := service.NewPublishService(gdb, sanitizer)

	admin, author := users[db.RoleAdmin], users[db.RoleAuthor]
	for _, sample := range samplePosts {
		post, err := posts.Create(ctx, author, service.PostInput{
			Title:    sample.title,
			Content:  sample.content,
			TagNames: sample.tags,
		})
		if err != nil {
			return summary, fmt.Errorf("创建文章 %q: %w", sample.title, err)
		}
		summary.posts++

		if !sample.publish && !sample.request {
			continue
		}
		request, err := publish.Request(ctx, author, post.ID, "请审核")
		if err != nil {
			return summary, err
		}
		if !sample.publish {
			summary.pending++
			continue
		}
		if _, err := publish.Approve(ctx, admin, request.ID, ""); err != nil {
			return summary, err
		}
		summary.published++
	}

	return summary, nil
}
