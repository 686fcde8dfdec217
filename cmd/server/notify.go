package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beontime/internal/db"
	"github.com/beontime/internal/service"
	"github.com/spf13/cobra"
)

func newNotifyCommand() *cobra.Command {
	var (
		title   string
		message string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "notify [username...]",
		Short: "Send a system notification to the given users or to everyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
				return errors.New("--title and --message are required")
			}
			if len(args) == 0 && !all {
				return errors.New("name at least one user or pass --all")
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}

			sent, err := sendSystemNotice(context.Background(), a.services, args, title, message)
			fmt.Fprintf(cmd.OutOrStdout(), "系统通知已发送: %d\n", sent)
			return err
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "notification title")
	cmd.Flags().StringVar(&message, "message", "", "notification message")
	cmd.Flags().BoolVar(&all, "all", false, "notify every user")

	return cmd
}

// sendSystemNotice 为指定用户创建系统通知，usernames 为空时发给全部用户。
// 返回已成功发送的数量，遇到第一个错误即停止。
func sendSystemNotice(ctx context.Context, services *service.Services, usernames []string, title, message string) (int, error) {
	var users []db.User
	if len(usernames) == 0 {
		all, err := services.Users.List(ctx)
		if err != nil {
			return 0, err
		}
		users = all
	} else {
		for _, name := range usernames {
			user, err := services.Users.GetByUsername(ctx, name)
			if err != nil {
				return 0, fmt.Errorf("user %s: %w", name, err)
			}
			users = append(users, *user)
		}
	}

	sent := 0
	for _, user := range users {
		payload := map[string]interface{}{"source": "cli"}
		if _, err := services.Notifications.NotifySystem(ctx, user.ID, title, message, payload); err != nil {
			return sent, fmt.Errorf("notify %s: %w", user.Username, err)
		}
		sent++
	}
	return sent, nil
}
