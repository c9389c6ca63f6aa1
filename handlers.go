package main

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"bezis/models"
	"bezis/pkg/ledger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// Report json field names in validation messages.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)

	writers := requireRole(models.RoleAdministrator, models.RoleAmil)
	admin := requireRole(models.RoleAdministrator)

	authGroup.GET("/muzakki", listMuzakkiHandler)
	authGroup.GET("/muzakki/:id", getMuzakkiHandler)
	authGroup.POST("/muzakki", writers, createMuzakkiHandler)
	authGroup.PUT("/muzakki/:id", writers, updateMuzakkiHandler)
	authGroup.POST("/muzakki/:id/recompute", admin, recomputeHandler(ledger.KindPenerimaan))

	authGroup.GET("/mustahiq", listMustahiqHandler)
	authGroup.GET("/mustahiq/:id", getMustahiqHandler)
	authGroup.POST("/mustahiq", writers, createMustahiqHandler)
	authGroup.PUT("/mustahiq/:id", writers, updateMustahiqHandler)
	authGroup.POST("/mustahiq/:id/recompute", admin, recomputeHandler(ledger.KindDistribusi))

	authGroup.GET("/penerimaan", listPenerimaanHandler)
	authGroup.GET("/penerimaan/:id", getPenerimaanHandler)
	authGroup.POST("/penerimaan", writers, createPenerimaanHandler)
	authGroup.PUT("/penerimaan/:id", writers, updatePenerimaanHandler)
	authGroup.DELETE("/penerimaan/:id", writers, deletePenerimaanHandler)
	authGroup.POST("/penerimaan/:id/receipt", writers, uploadReceiptHandler)

	authGroup.GET("/distribusi", listDistribusiHandler)
	authGroup.GET("/distribusi/:id", getDistribusiHandler)
	authGroup.POST("/distribusi", writers, createDistribusiHandler)
	authGroup.PUT("/distribusi/:id", writers, updateDistribusiHandler)
	authGroup.DELETE("/distribusi/:id", writers, deleteDistribusiHandler)

	authGroup.GET("/receipts", listReceiptsHandler)
	authGroup.GET("/audit", admin, listAuditHandler)
	authGroup.GET("/reports/monthly", monthlyReportHandler)
}

// respondError writes the {"error","code"} body for err. Internal failures
// are logged and their message withheld.
func respondError(c *gin.Context, err error) {
	code := ledger.CodeOf(err)
	msg := err.Error()
	var le *ledger.Error
	if errors.As(err, &le) && le.Message != "" {
		msg = le.Message
	}
	status := http.StatusInternalServerError
	switch code {
	case ledger.CodeValidation:
		status = http.StatusBadRequest
	case ledger.CodeNotFound:
		status = http.StatusNotFound
	case ledger.CodeConflict:
		status = http.StatusConflict
	case ledger.CodeInvalidState:
		status = http.StatusUnprocessableEntity
	default:
		zlog.Error("request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Uint("actor_id", actorID(c)),
			zap.Error(err))
		msg = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg, "code": code})
}

// bindError answers a payload that failed binding or validation.
func bindError(c *gin.Context, err error) {
	msg := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, describeField(fe))
		}
		msg = strings.Join(parts, "; ")
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": ledger.CodeValidation})
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, ledger.Invalid("id", "id must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

// optionalUint reads a positive integer query parameter.
func optionalUint(c *gin.Context, key string) (*uint, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return nil, ledger.Invalid(key, key+" must be a positive integer")
	}
	u := uint(n)
	return &u, nil
}

func paging(c *gin.Context) (limit, offset int, err error) {
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, ledger.Invalid("limit", "limit must be a non-negative integer")
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, ledger.Invalid("offset", "offset must be a non-negative integer")
		}
	}
	if limit == 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	return limit, offset, nil
}

// parseDate accepts 2006-01-02 or RFC3339.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, ledger.Invalid(field, field+" must be YYYY-MM-DD")
	}
	return &t, nil
}

func meHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": actorID(c), "username": c.GetString("username"), "role": c.GetString("role")})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		if errors.Is(err, errUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": ledger.CodeConflict})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": ledger.CodeValidation})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
		return
	}
	tokenString, err := issueAccessToken(user, 24*time.Hour)
	if err != nil {
		respondError(c, fmt.Errorf("sign token: %w", err))
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		respondError(c, fmt.Errorf("create refresh token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token", "code": "unauthorized"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found", "code": "unauthorized"})
		return
	}
	tokenString, err := issueAccessToken(user, 15*time.Minute)
	if err != nil {
		respondError(c, fmt.Errorf("sign token: %w", err))
		return
	}
	if err := db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true).Error; err != nil {
		respondError(c, fmt.Errorf("revoke refresh token: %w", err))
		return
	}
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		respondError(c, fmt.Errorf("rotate refresh token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found", "code": ledger.CodeNotFound})
		return
	}
	if err := db.Model(rt).Update("revoked", true).Error; err != nil {
		respondError(c, fmt.Errorf("revoke refresh token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}
