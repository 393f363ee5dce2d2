package handlers

import (
	"errors"
	"net/http"
	"strings"

	"mafserver/auth"
	"mafserver/models"
	"mafserver/profiles"
	"mafserver/report"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Gender   string `json:"gender"`
	Mail     string `json:"mail"`
}

// RegisterProfile creates a new player account.
func RegisterProfile(store *profiles.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		profile := models.Profile{
			Login:    req.Login,
			Password: auth.PasswordHash(req.Password),
			Name:     req.Name,
			Image:    req.Image,
			Gender:   req.Gender,
			Mail:     req.Mail,
		}
		if err := store.Insert(c.Request.Context(), &profile); err != nil {
			if errors.Is(err, profiles.ErrExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "Login already registered"})
				return
			}
			logger.Error("failed to register profile", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register profile"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Profile registered", "login": profile.Login})
	}
}

type AuthorizeRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Authorize checks a login and password and issues a session token. The
// token is also presented by the voice client during its handshake.
func Authorize(db *gorm.DB, store *profiles.Store, tokens *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AuthorizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		profile, err := store.Lookup(c.Request.Context(), req.Login)
		if err != nil || profile.Password != auth.PasswordHash(req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong login or password"})
			return
		}

		token, expiresAt, err := tokens.GenerateToken(profile.Login, profile.Password)
		if err != nil {
			logger.Error("failed to generate token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		record := models.SessionToken{Login: profile.Login, Token: token, ExpiresAt: expiresAt}
		if err := db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
			logger.Error("failed to store session token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store session token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt})
	}
}

// GetProfile returns one profile by login.
func GetProfile(store *profiles.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := store.Lookup(c.Request.Context(), c.Param("login"))
		if err != nil {
			if errors.Is(err, profiles.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
				return
			}
			logger.Error("failed to look up profile", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up profile"})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// AllProfiles lists every registered profile.
func AllProfiles(store *profiles.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := store.All(c.Request.Context())
		if err != nil {
			logger.Error("failed to list profiles", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list profiles"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"profiles": list})
	}
}

type ModifyRequest struct {
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Image    *string `json:"image"`
	Gender   *string `json:"gender"`
	Mail     *string `json:"mail"`
}

// ModifyProfile applies a partial update. The caller must present a token
// for the login being modified.
func ModifyProfile(store *profiles.Store, authn auth.Provider, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		login := c.Param("login")
		if !authorized(c, authn, login) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		var req ModifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		fields := map[string]interface{}{}
		if req.Password != nil {
			fields["password"] = auth.PasswordHash(*req.Password)
		}
		if req.Name != nil {
			fields["name"] = *req.Name
		}
		if req.Image != nil {
			fields["image"] = *req.Image
		}
		if req.Gender != nil {
			fields["gender"] = *req.Gender
		}
		if req.Mail != nil {
			fields["mail"] = *req.Mail
		}

		profile, err := store.Modify(c.Request.Context(), login, fields)
		if err != nil {
			if errors.Is(err, profiles.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
				return
			}
			logger.Error("failed to modify profile", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to modify profile"})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// ProfileReport renders the player's statistics report through the worker
// queue and returns it as a download.
func ProfileReport(store *profiles.Store, reports *report.Client, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := store.Lookup(c.Request.Context(), c.Param("login"))
		if err != nil {
			if errors.Is(err, profiles.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
				return
			}
			logger.Error("failed to look up profile", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up profile"})
			return
		}

		rendered, err := reports.Generate(c.Request.Context(), profile)
		if err != nil {
			if errors.Is(err, report.ErrTimeout) {
				c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Report generation timed out"})
				return
			}
			logger.Error("failed to generate report", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate report"})
			return
		}

		c.Header("Content-Disposition", `attachment; filename="report.txt"`)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", rendered)
	}
}

// authorized checks that the request carries a valid token for the login.
func authorized(c *gin.Context, authn auth.Provider, login string) bool {
	credential := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if credential == "" {
		return false
	}
	verified, err := authn.Verify(c.Request.Context(), credential)
	return err == nil && verified == login
}
