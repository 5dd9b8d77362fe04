package auth

import (
	"net/http"
	"time"
)

// セッション Cookie の名前
const (
	CookieAuthToken = "auth_token"
	CookieUserID    = "user_id"
)

// SessionCookies はログイン成功時に発行する Cookie を返します。
// auth_token は HttpOnly、user_id はフロントエンドから読めるようにしています。
func SessionCookies(token, userID string, maxAge time.Duration, secure bool) []*http.Cookie {
	seconds := int(maxAge.Seconds())
	return []*http.Cookie{
		newCookie(CookieAuthToken, token, seconds, secure, true),
		newCookie(CookieUserID, userID, seconds, secure, false),
	}
}

// ClearedSessionCookies は両方のセッション Cookie を即時に失効させる Cookie を返します。
func ClearedSessionCookies(secure bool) []*http.Cookie {
	return []*http.Cookie{
		newCookie(CookieAuthToken, "", -1, secure, true),
		newCookie(CookieUserID, "", -1, secure, false),
	}
}

func newCookie(name, value string, maxAge int, secure, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
}
