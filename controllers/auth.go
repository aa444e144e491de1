package controllers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"route-feedback-api/middleware"
	"route-feedback-api/utils"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin checks the operator credentials and issues a JWT.
func AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	s := deps.Settings
	if s.AdminUsername == "" || s.AdminPasswordHash == "" || s.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Admin login is not configured"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.AdminUsername)) == 1
	passOK := utils.CheckPasswordHash(req.Password, s.AdminPasswordHash)
	if !userOK || !passOK {
		log.Printf("auth: failed admin login for %q from %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid username or password"})
		return
	}

	hours := s.JWTExpireHours
	if hours <= 0 {
		hours = 24
	}
	token, err := middleware.GenerateToken(s.JWTSecret, req.Username, middleware.RoleAdmin, time.Duration(hours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"expires_in": hours * 3600,
		"message":    "Login successful",
	})
}
