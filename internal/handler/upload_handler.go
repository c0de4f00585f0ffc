package handler

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/habitlog/internal/model"
	_ "golang.org/x/image/webp"
)

const (
	maxBackgroundImageBytes = 8 << 20
	maxBackgroundImageSide  = 8192
)

var imageExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// UploadBackgroundImage 保存背景图并写入外观设置。
// 文件类型以解码结果为准，不信任扩展名和 Content-Type。
func (a *API) UploadBackgroundImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}
	if file.Size > maxBackgroundImageBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "图片不能超过 8MB")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取图片失败")
		return
	}
	cfg, format, err := image.DecodeConfig(src)
	src.Close()
	if err != nil {
		respondError(c, http.StatusBadRequest, "只允许上传 JPEG、PNG、GIF 或 WebP 图片")
		return
	}
	ext, ok := imageExtensions[format]
	if !ok {
		respondError(c, http.StatusBadRequest, "只允许上传 JPEG、PNG、GIF 或 WebP 图片")
		return
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxBackgroundImageSide || cfg.Height > maxBackgroundImageSide {
		respondError(c, http.StatusBadRequest, "图片尺寸不合法")
		return
	}

	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	// 创建上传目录
	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, "创建上传目录失败")
		return
	}

	// 生成唯一文件名
	newFilename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
	if err := c.SaveUploadedFile(file, filepath.Join(a.uploadDir, newFilename)); err != nil {
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}

	fileURL := a.uploadURL + "/" + newFilename
	settings, err := ctrl.UpdateSettings(model.SettingsPatch{BackgroundImage: &fileURL})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":      fileURL,
		"width":    cfg.Width,
		"height":   cfg.Height,
		"settings": settings,
	})
}
