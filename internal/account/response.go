package account

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Response はハンドラーが組み立てる応答です。write で一度だけ書き出されます。
type Response struct {
	Status     int
	Body       gin.H
	Cookies    []*http.Cookie
	RetryAfter time.Duration
}

func success(status int, v any) Response {
	return Response{Status: status, Body: gin.H{"response": v}}
}

func failure(status int, message string) Response {
	return Response{Status: status, Body: gin.H{"error": message}}
}

func (r Response) withCookies(cookies []*http.Cookie) Response {
	r.Cookies = cookies
	return r
}

func (r Response) write(c *gin.Context) {
	for _, ck := range r.Cookies {
		http.SetCookie(c.Writer, ck)
	}
	if r.RetryAfter > 0 {
		// 端数は切り上げて秒で返す
		seconds := int64((r.RetryAfter + time.Second - 1) / time.Second)
		c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	}
	c.JSON(r.Status, r.Body)
}
