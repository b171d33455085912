// Package mailer 把队列中的邮件消息渲染成可以发送的邮件
package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

var ErrUnknownMailType = errors.New("不支持的邮件类型")

type kind struct {
	file    string
	subject string
}

var kinds = map[string]kind{
	domain.MailTypeCreateUser: {
		file:    "new_account_email.html",
		subject: "自动排课系统 - 账户信息",
	},
	domain.MailTypeRunFinished: {
		file:    "run_finished_email.html",
		subject: "自动排课系统 - 排课任务已结束",
	},
}

type compiled struct {
	subject string
	tmpl    *template.Template
}

// Mailer 在启动时解析好所有模板
type Mailer struct {
	from      string
	templates map[string]compiled
}

func New(dir, from string) (*Mailer, error) {
	m := &Mailer{
		from:      from,
		templates: make(map[string]compiled, len(kinds)),
	}

	for typ, k := range kinds {
		tmpl, err := template.ParseFiles(filepath.Join(dir, k.file))
		if err != nil {
			return nil, fmt.Errorf("无法解析邮件模板 %s: %w", k.file, err)
		}
		m.templates[typ] = compiled{subject: k.subject, tmpl: tmpl}
	}

	return m, nil
}

// Render 返回邮件主题和 HTML 正文
func (m *Mailer) Render(message domain.MailMessage) (string, string, error) {
	c, ok := m.templates[message.Type]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownMailType, message.Type)
	}

	var body bytes.Buffer
	if err := c.tmpl.Execute(&body, message.Data); err != nil {
		return "", "", err
	}

	return c.subject, body.String(), nil
}

// Build 构建一封完整的邮件，返回的错误都说明消息本身有问题，重试没有意义
func (m *Mailer) Build(message domain.MailMessage) (*mail.Msg, error) {
	subject, body, err := m.Render(message)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	return msg, nil
}
