// Package account はユーザー登録・ログイン・ログアウト・プロフィール取得・
// パスワード変更・退会の HTTP ハンドラーを提供します。
package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/account-api/internal/auth"
	"github.com/yourusername/account-api/internal/metrics"
	"github.com/yourusername/account-api/internal/tokens"
	"github.com/yourusername/account-api/internal/users"
)

// レスポンスメッセージ
const (
	msgInvalidParameters = "Invalid parameters"
	msgBadUserOrPassword = "Bad username or password. Username must be between 3 and 20 characters and password must be between 10 and 32 characters"
	msgAlreadyLoggedIn   = "Already logged in"
	msgNotLoggedIn       = "Not logged in or invalid token"
	msgInvalidCreds      = "Invalid credentials"
	msgUserExists        = "User already exists"
	msgTooManyAttempts   = "Too many login attempts"
	msgInternal          = "Internal server error"

	msgLoggedOut       = "Logged out"
	msgPasswordChanged = "Password changed"
	msgUserDeleted     = "User deleted"
)

// SessionPurger はユーザーの全セッションを失効させます。
type SessionPurger interface {
	PurgeSessions(ctx context.Context, userID string) error
}

// Options は Handler の依存関係です。
type Options struct {
	Users        users.Store
	Tokens       tokens.Store
	Throttle     *auth.Throttle
	Purger       SessionPurger
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	MaxAge       time.Duration
	SecureCookie bool
}

// Handler はアカウント関連のハンドラーをまとめます。
type Handler struct {
	users        users.Store
	tokens       tokens.Store
	resolver     *auth.Resolver
	throttle     *auth.Throttle
	purger       SessionPurger
	metrics      *metrics.Metrics
	logger       *slog.Logger
	maxAge       time.Duration
	secureCookie bool
}

// NewHandler は Handler を作成します。
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		users:        opts.Users,
		tokens:       opts.Tokens,
		resolver:     auth.NewResolver(opts.Tokens),
		throttle:     opts.Throttle,
		purger:       opts.Purger,
		metrics:      opts.Metrics,
		logger:       logger,
		maxAge:       opts.MaxAge,
		secureCookie: opts.SecureCookie,
	}
}

// Register は /users 以下にルートを登録します。
func (h *Handler) Register(group *gin.RouterGroup) {
	u := group.Group("/users")
	{
		u.GET("/authenticated", h.IsAuthenticated)
		u.POST("/signup", h.CreateUser)
		u.POST("/login", h.LoginUser)
		u.POST("/logout", h.LogoutUser)
		u.GET("/user", h.GetUser)
		u.GET("/me", h.GetMyself)
		u.PUT("/password", h.ChangePassword)
		u.DELETE("/me", h.DeleteUser)
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// signupRequest は型の誤りを長さ不正と区別せずに返すため、値を any で受け取ります。
type signupRequest struct {
	Username any `json:"username"`
	Password any `json:"password"`
}

// isBlank は未指定・null・空文字・false・0 を未入力として扱います。
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// IsAuthenticated は有効なセッションがあるかを返します。
func (h *Handler) IsAuthenticated(c *gin.Context) {
	h.serve(c, "is_authenticated", h.isAuthenticated)
}

// CreateUser はユーザーを登録し、そのままログイン状態にします。
func (h *Handler) CreateUser(c *gin.Context) {
	h.serve(c, "create_user", h.createUser)
}

// GetUser はログイン中のユーザー情報を返します。
func (h *Handler) GetUser(c *gin.Context) {
	h.serve(c, "get_user", h.getUser)
}

// GetMyself は GetUser と同じ結果を返します。
func (h *Handler) GetMyself(c *gin.Context) {
	h.serve(c, "get_myself", h.getUser)
}

// LoginUser はユーザー名とパスワードでログインします。
func (h *Handler) LoginUser(c *gin.Context) {
	h.serve(c, "login_user", h.loginUser)
}

// LogoutUser は現在のトークンを削除し、Cookie を消去します。
func (h *Handler) LogoutUser(c *gin.Context) {
	h.serve(c, "logout_user", h.logoutUser)
}

// ChangePassword はログイン中のユーザーのパスワードを変更します。
func (h *Handler) ChangePassword(c *gin.Context) {
	h.serve(c, "change_password", h.changePassword)
}

// DeleteUser はログイン中のユーザーを削除し、全セッションを失効させます。
func (h *Handler) DeleteUser(c *gin.Context) {
	h.serve(c, "delete_user", h.deleteUser)
}

func (h *Handler) serve(c *gin.Context, name string, fn func(*gin.Context) Response) {
	resp := fn(c)
	resp.write(c)
	h.metrics.ObserveRequest(name, resp.Status)
}

// internalError は原因をログに残し、クライアントには汎用メッセージだけを返します。
func (h *Handler) internalError(c *gin.Context, op string, err error) Response {
	h.logger.ErrorContext(c.Request.Context(), "account handler failed", "operation", op, "error", err)
	_ = c.Error(err)
	return failure(http.StatusInternalServerError, msgInternal)
}

func (h *Handler) isAuthenticated(c *gin.Context) Response {
	_, ok, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	return success(http.StatusOK, ok)
}

func (h *Handler) createUser(c *gin.Context) Response {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return failure(http.StatusBadRequest, msgInvalidParameters)
	}
	if isBlank(req.Username) || isBlank(req.Password) {
		return failure(http.StatusBadRequest, msgInvalidParameters)
	}
	// 文字列以外の値は長さ不正と同じ扱い
	username, okName := req.Username.(string)
	password, okPass := req.Password.(string)
	if !okName || !okPass || !IsValidUser(username, password) {
		return failure(http.StatusBadRequest, msgBadUserOrPassword)
	}

	ctx := c.Request.Context()
	_, loggedIn, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	if loggedIn {
		return failure(http.StatusUnauthorized, msgAlreadyLoggedIn)
	}

	exists, err := h.users.Exists(ctx, username)
	if err != nil {
		return h.internalError(c, "check username", err)
	}
	if exists {
		return failure(http.StatusConflict, msgUserExists)
	}

	// Exists と Create の間に同名ユーザーが作られた場合はストアの一意制約で弾く
	userID, err := h.users.Create(ctx, username, password)
	if errors.Is(err, users.ErrAlreadyExists) {
		return failure(http.StatusConflict, msgUserExists)
	}
	if err != nil {
		return h.internalError(c, "create user", err)
	}

	return h.startSession(c, userID)
}

func (h *Handler) getUser(c *gin.Context) Response {
	userID, ok, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	if !ok {
		return failure(http.StatusUnauthorized, msgNotLoggedIn)
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if errors.Is(err, users.ErrNotFound) {
		return failure(http.StatusUnauthorized, msgNotLoggedIn)
	}
	if err != nil {
		return h.internalError(c, "get user", err)
	}
	return success(http.StatusOK, user.Public())
}

func (h *Handler) loginUser(c *gin.Context) Response {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return failure(http.StatusBadRequest, msgInvalidParameters)
	}
	if !IsValidUser(req.Username, req.Password) {
		return failure(http.StatusBadRequest, msgInvalidParameters)
	}

	_, loggedIn, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	if loggedIn {
		return failure(http.StatusUnauthorized, msgAlreadyLoggedIn)
	}

	ip := c.ClientIP()
	if retryAfter := h.throttle.Check(ip); retryAfter > 0 {
		resp := failure(http.StatusTooManyRequests, msgTooManyAttempts)
		resp.RetryAfter = retryAfter
		return resp
	}

	ctx := c.Request.Context()
	userID, err := h.users.GetIDByName(ctx, req.Username)
	if errors.Is(err, users.ErrNotFound) {
		return h.rejectLogin(c, ip)
	}
	if err != nil {
		return h.internalError(c, "lookup user", err)
	}

	matches, err := h.users.MatchesPassword(ctx, userID, req.Password)
	if errors.Is(err, users.ErrNotFound) {
		return h.rejectLogin(c, ip)
	}
	if err != nil {
		return h.internalError(c, "verify password", err)
	}
	if !matches {
		return h.rejectLogin(c, ip)
	}

	h.throttle.Reset(ip)
	return h.startSession(c, userID)
}

func (h *Handler) rejectLogin(c *gin.Context, ip string) Response {
	remaining := h.throttle.RecordFailure(ip)
	h.metrics.LoginFailed()
	h.logger.WarnContext(c.Request.Context(), "login rejected", "client_ip", ip, "remaining_attempts", remaining)
	return failure(http.StatusUnauthorized, msgInvalidCreds)
}

// startSession はトークンを発行し、Cookie 付きの 201 応答を返します。
func (h *Handler) startSession(c *gin.Context, userID string) Response {
	token, err := h.tokens.Create(c.Request.Context(), userID)
	if err != nil {
		return h.internalError(c, "create token", err)
	}
	h.metrics.SessionIssued()

	return success(http.StatusCreated, userID).
		withCookies(auth.SessionCookies(token, userID, h.maxAge, h.secureCookie))
}

func (h *Handler) logoutUser(c *gin.Context) Response {
	_, ok, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	if !ok {
		return failure(http.StatusUnauthorized, msgNotLoggedIn)
	}

	// Resolve が成功していれば Cookie は必ず存在する
	token, _ := c.Cookie(auth.CookieAuthToken)
	if err := h.tokens.Delete(c.Request.Context(), token); err != nil {
		return h.internalError(c, "delete token", err)
	}

	return success(http.StatusOK, msgLoggedOut).
		withCookies(auth.ClearedSessionCookies(h.secureCookie))
}

func (h *Handler) changePassword(c *gin.Context) Response {
	userID, ok, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	if !ok {
		return failure(http.StatusUnauthorized, msgNotLoggedIn)
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return failure(http.StatusBadRequest, msgInvalidParameters)
	}
	if !isValidPassword(req.NewPassword) {
		return failure(http.StatusBadRequest, msgInvalidParameters)
	}

	ctx := c.Request.Context()
	matches, err := h.users.MatchesPassword(ctx, userID, req.OldPassword)
	if errors.Is(err, users.ErrNotFound) {
		return failure(http.StatusUnauthorized, msgNotLoggedIn)
	}
	if err != nil {
		return h.internalError(c, "verify password", err)
	}
	if !matches {
		return failure(http.StatusUnauthorized, msgInvalidCreds)
	}

	if err := h.users.ChangePassword(ctx, userID, req.NewPassword); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return failure(http.StatusUnauthorized, msgNotLoggedIn)
		}
		return h.internalError(c, "change password", err)
	}
	return success(http.StatusOK, msgPasswordChanged)
}

func (h *Handler) deleteUser(c *gin.Context) Response {
	userID, ok, err := h.resolver.Resolve(c)
	if err != nil {
		return h.internalError(c, "resolve session", err)
	}
	if !ok {
		return failure(http.StatusUnauthorized, msgNotLoggedIn)
	}

	ctx := c.Request.Context()
	if err := h.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return failure(http.StatusUnauthorized, msgNotLoggedIn)
		}
		return h.internalError(c, "delete user", err)
	}

	// 呼び出し元のトークンは即時に消し、残りのトークンは Purger に任せる
	token, _ := c.Cookie(auth.CookieAuthToken)
	if err := h.tokens.Delete(ctx, token); err != nil {
		h.logger.WarnContext(ctx, "failed to delete current token", "user_id", userID, "error", err)
	}
	if h.purger != nil {
		if err := h.purger.PurgeSessions(ctx, userID); err != nil {
			h.logger.ErrorContext(ctx, "failed to purge sessions", "user_id", userID, "error", err)
		}
	}

	return success(http.StatusOK, msgUserDeleted).
		withCookies(auth.ClearedSessionCookies(h.secureCookie))
}
