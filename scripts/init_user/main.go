package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/inkwell/internal/config"
	"github.com/inkwell/internal/db"
)

func main() {
	var username, password, role string
	flag.StringVar(&username, "username", "admin", "username to create")
	flag.StringVar(&password, "password", "", "password (at least 8 characters)")
	flag.StringVar(&role, "role", string(db.RoleAdmin), "READER, AUTHOR or ADMIN")
	flag.Parse()

	userRole := db.Role(strings.ToUpper(strings.TrimSpace(role)))
	if !userRole.Valid() {
		fmt.Fprintf(os.Stderr, "invalid role %q\n", role)
		os.Exit(2)
	}
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		fmt.Fprintf(os.Stderr, "init db: %v\n", err)
		os.Exit(1)
	}

	// 已存在同名用户时不做任何修改
	if err := db.EnsureUser(db.DB, username, password, userRole); err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("done: user %s (%s) is ready\n", username, userRole)
}
