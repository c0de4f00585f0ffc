package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	deviceCookieName   = "hl_device_id"
	deviceCookieMaxAge = 365 * 24 * 60 * 60
)

// ensureDeviceID 读取设备 Cookie，缺失或格式不正确时签发新的 UUID。
func (a *API) ensureDeviceID(c *gin.Context) string {
	if id, ok := deviceIDFromCookie(c); ok {
		return id
	}
	return a.issueDeviceID(c)
}

func deviceIDFromCookie(c *gin.Context) (string, bool) {
	id, err := c.Cookie(deviceCookieName)
	if err != nil {
		return "", false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func (a *API) issueDeviceID(c *gin.Context) string {
	deviceID := uuid.NewString()
	secure := c.Request.TLS != nil

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     deviceCookieName,
		Value:    deviceID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   deviceCookieMaxAge,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})
	// 同一请求内后续读取也能拿到新签发的 ID
	c.Request.AddCookie(&http.Cookie{Name: deviceCookieName, Value: deviceID})

	return deviceID
}
