package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了用户模型
// EmailNotifications 关闭时邮件发送方会跳过该用户；TelegramChatID 为 0 表示未绑定
type User struct {
	gorm.Model
	Username           string `gorm:"unique;not null"`
	Password           string `gorm:"not null"`
	Email              string
	EmailNotifications bool `gorm:"default:true"`
	TelegramChatID     int64
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
func EnsureUser(gdb *gorm.DB, username, password, email string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if gdb == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		_, err := CreateUser(gdb, trimmedUser, trimmedPassword, email)
		return err
	}

	return nil
}

// CreateUser 创建一个新用户，密码以 bcrypt 哈希保存。
func CreateUser(gdb *gorm.DB, username, password, email string) (*User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:           strings.TrimSpace(username),
		Password:           string(hashed),
		Email:              strings.TrimSpace(email),
		EmailNotifications: true,
	}
	if err := gdb.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CheckPassword 比对明文密码与存储的哈希。
func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
