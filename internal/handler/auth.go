package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenCookieName = "__timetable_generator_token"
	tokenIssuer     = "timetable-generator"
)

// sessionClaims 是会话令牌的内容，subject 为用户 ID
type sessionClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// issueToken 为用户签发会话令牌
func (h *Handler) issueToken(user *domain.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(time.Duration(h.config.JWT.Expiration) * time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString([]byte(h.config.JWT.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// parseToken 校验令牌并取出身份，只接受本服务用 HS256 签发的令牌
func (h *Handler) parseToken(raw string) (principal, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(h.config.JWT.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return principal{}, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return principal{}, fmt.Errorf("令牌中的用户 ID 无效: %w", err)
	}
	if claims.Role != domain.RoleAdmin && claims.Role != domain.RoleStaff {
		return principal{}, fmt.Errorf("令牌中的角色 %q 无效", claims.Role)
	}

	return principal{UserID: userID, Role: claims.Role}, nil
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Expires:  expiresAt,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.repository.GetUserByUsername(req.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.fail(w, r, "用户名不存在或密码错误")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.fail(w, r, "用户名不存在或密码错误")
			return
		}
		h.serverError(w, r, err)
		return
	}

	if !user.IsActive {
		h.fail(w, r, "账号已被停用")
		return
	}

	token, expiresAt, err := h.issueToken(user, time.Now())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.setSessionCookie(w, token, expiresAt)

	requestInfoFrom(r).userID = user.ID
	h.ok(w, r, "登录成功", map[string]any{
		"user":      user,
		"expiresAt": expiresAt,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.ok(w, r, "登出成功", nil)
}
