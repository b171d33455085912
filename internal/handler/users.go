package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// filterUsersByRole 按角色筛选用户，role 为空时返回全部
func filterUsersByRole(users []*domain.User, role domain.Role) []*domain.User {
	if role == "" {
		return users
	}

	filtered := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if u.Role == role {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// GetAllUsers 返回用户列表，可以用 ?role= 按角色筛选
func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && role != domain.RoleAdmin && role != domain.RoleStaff {
		h.fail(w, r, "角色只能为教务员或管理员")
		return
	}

	users, err := h.repository.GetAllUsers()
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "获取用户列表成功", filterUsersByRole(users, role))
}

// CreateUser 由管理员创建教务员或管理员账号，初始密码通过邮件发送
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,alphanum,max=32"`
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=教务员 管理员"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
	}

	if err := h.repository.CreateUser(user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.ConstraintName {
			case "users_username_key":
				h.fail(w, r, "用户名已存在")
				return
			case "users_email_key":
				h.fail(w, r, "邮箱已存在")
				return
			}
		}
		h.serverError(w, r, err)
		return
	}

	err = h.publisher.Publish(queue.MailQueue, domain.MailMessage{
		Type: domain.MailTypeCreateUser,
		To:   user.Email,
		Data: domain.CreateUserMailData{
			FullName: user.FullName,
			Username: user.Username,
			Password: password,
		},
	})
	if err != nil {
		// 账号已经创建，只是邮件没有发出
		h.logServerError(r, err)
		h.ok(w, r, "用户创建成功，但通知邮件发送失败", user)
		return
	}

	h.ok(w, r, "用户创建成功", user)
}
