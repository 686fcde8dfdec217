// Package testutil 提供各包测试共用的数据库夹具。
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/beontime/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB 为当前测试打开一个独立命名的内存数据库并完成迁移。
// 连接池限制为单连接，避免共享缓存模式下的表锁错误；测试结束自动关闭。
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)

	gdb, err := db.Open(sqlite.Open(dsn), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return gdb
}

// CreateUser 写入一个测试用户并返回其 ID。
func CreateUser(t testing.TB, gdb *gorm.DB, username string) uint {
	t.Helper()

	user := db.User{Username: username, Password: "x", Email: username + "@example.com", EmailNotifications: true}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return user.ID
}
