package profiles

import (
	"errors"
	"net/http"

	"github.com/ajoubeir/chat-service/internal/model"
	registrystore "github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/service"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts profile routes on the given engine. Called by the serve
// command once the store and cache are initialized.
func MountRoutes(r *gin.Engine, profiles *service.ProfileService) {
	g := r.Group("/api")

	g.POST("/profile", func(c *gin.Context) {
		addProfile(c, profiles)
	})
	g.GET("/profile/:username", func(c *gin.Context) {
		getProfile(c, profiles)
	})
	g.PUT("/profile/:username", func(c *gin.Context) {
		updateProfile(c, profiles)
	})
}

type profileRequest struct {
	Username         string  `json:"username"`
	FirstName        string  `json:"firstName"`
	LastName         string  `json:"lastName"`
	ProfilePictureID *string `json:"profilePictureId"`
}

func addProfile(c *gin.Context, profiles *service.ProfileService) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile := model.Profile{
		Username:         req.Username,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		ProfilePictureID: req.ProfilePictureID,
	}
	if err := profiles.AddProfile(c.Request.Context(), profile); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func getProfile(c *gin.Context, profiles *service.ProfileService) {
	profile, err := profiles.GetProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func updateProfile(c *gin.Context, profiles *service.ProfileService) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile := model.Profile{
		Username:         c.Param("username"),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		ProfilePictureID: req.ProfilePictureID,
	}
	if err := profiles.UpdateProfile(c.Request.Context(), profile); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
