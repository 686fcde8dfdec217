package service

import (
	"bytes"
	"fmt"

	"github.com/beontime/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	messageMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	messageSanitizer = bluemonday.UGCPolicy()
)

// Message 是一条通知对应的展示与投递内容
type Message struct {
	Title   string
	Text    string
	Subject string
	HTML    string
}

type messageTemplate struct {
	title    string
	text     string
	subject  string
	markdown string
}

// habitMessage 根据通知类型生成习惯相关的消息
func habitMessage(kind string, habit db.Habit, streak int) (Message, error) {
	var tpl messageTemplate

	switch kind {
	case db.NotificationHabitStart:
		tpl = messageTemplate{
			title:    "Habit Start Time",
			text:     fmt.Sprintf("Time to start your habit: %s", habit.Title),
			subject:  fmt.Sprintf("Time to start your habit: %s", habit.Title),
			markdown: fmt.Sprintf("## Habit Reminder\n\nIt is time to start your habit **%s** at %s. Remember to track your progress.\n", habit.Title, habit.StartTime),
		}
	case db.NotificationHabitEnd:
		tpl = messageTemplate{
			title:    "Habit End Time",
			text:     fmt.Sprintf("Your habit %s is ending soon", habit.Title),
			subject:  fmt.Sprintf("Ending soon: %s", habit.Title),
			markdown: fmt.Sprintf("## Habit Ending Soon\n\nYour habit **%s** ends at %s. Finish it before the window closes.\n", habit.Title, habit.EndTime),
		}
	case db.NotificationStreakAchievement:
		tpl = messageTemplate{
			title:    "Streak Achievement!",
			text:     fmt.Sprintf("Congratulations! You reached a %d-day streak for %s", streak, habit.Title),
			subject:  fmt.Sprintf("Congratulations! %d-day streak achieved!", streak),
			markdown: fmt.Sprintf("## Streak Achievement\n\nYou reached a **%d-day streak** for your habit **%s**. Keep up the great work!\n", streak, habit.Title),
		}
	case db.NotificationHabitCompletion:
		tpl = messageTemplate{
			title:    "Habit Completed!",
			text:     fmt.Sprintf("Great job! You completed %s for today", habit.Title),
			subject:  fmt.Sprintf("Habit Completed: %s", habit.Title),
			markdown: fmt.Sprintf("## Habit Completed\n\nGreat job! You completed your habit **%s** for today.\n", habit.Title),
		}
	default:
		return Message{}, fmt.Errorf("unsupported habit message type %q", kind)
	}

	return tpl.render()
}

// systemMessage 生成系统通知的消息，标题与正文原样使用
func systemMessage(title, text string) (Message, error) {
	tpl := messageTemplate{
		title:    title,
		text:     text,
		subject:  title,
		markdown: fmt.Sprintf("## %s\n\n%s\n", title, text),
	}
	return tpl.render()
}

func (tpl messageTemplate) render() (Message, error) {
	htmlBody, err := renderMarkdown(tpl.markdown)
	if err != nil {
		return Message{}, err
	}
	return Message{Title: tpl.title, Text: tpl.text, Subject: tpl.subject, HTML: htmlBody}, nil
}

// renderMarkdown 将 Markdown 渲染为经过清洗的 HTML
func renderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := messageMarkdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return messageSanitizer.Sanitize(buf.String()), nil
}

// RenderNote 将习惯备注渲染为安全的 HTML
func RenderNote(content string) string {
	rendered, err := renderMarkdown(content)
	if err != nil {
		return messageSanitizer.Sanitize(content)
	}
	return rendered
}
