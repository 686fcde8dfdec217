package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beontime/internal/config"
	"github.com/beontime/internal/db"
	"github.com/spf13/cobra"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserAddCommand())
	return cmd
}

func newUserAddCommand() *cobra.Command {
	var (
		password   string
		email      string
		telegramID int64
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user with a bcrypt-hashed password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(password) == "" {
				return errors.New("--password is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Init(cfg.DatabasePath); err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}

			user, err := db.CreateUser(db.DB, args[0], password, email)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			if telegramID != 0 {
				if err := db.DB.Model(user).Update("telegram_chat_id", telegramID).Error; err != nil {
					return fmt.Errorf("link telegram chat: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "用户创建成功: %s (id=%d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringVar(&email, "email", "", "email address for reminders")
	cmd.Flags().Int64Var(&telegramID, "telegram-chat-id", 0, "Telegram chat id for reminders")

	return cmd
}
