package images

import (
	"errors"
	"io"
	"net/http"

	"github.com/ajoubeir/chat-service/internal/config"
	registrystore "github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/service"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts profile picture routes on the given engine. Called by
// the serve command once a picture store is selected.
func MountRoutes(r *gin.Engine, pictures *service.PictureService, cfg *config.Config) {
	g := r.Group("/api")

	g.POST("/images", func(c *gin.Context) {
		uploadImage(c, pictures)
	})
	g.GET("/images/:id", func(c *gin.Context) {
		downloadImage(c, pictures, cfg)
	})
}

func uploadImage(c *gin.Context, pictures *service.PictureService) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "multipart field 'file' is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id, err := pictures.UploadPicture(c.Request.Context(), file, fileHeader.Size, contentType)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imageId": id})
}

func downloadImage(c *gin.Context, pictures *service.PictureService, cfg *config.Config) {
	// Backends that can sign URLs let the client fetch from storage directly.
	if cfg != nil && cfg.S3DirectDownload {
		if signed, err := pictures.SignedDownloadURL(c.Request.Context(), c.Param("id")); err == nil {
			c.Redirect(http.StatusFound, signed.String())
			return
		}
	}

	reader, err := pictures.DownloadPicture(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer reader.Close()

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		// Headers are already written; nothing left to do but drop the connection.
		c.Abort()
	}
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
