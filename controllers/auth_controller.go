package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthController provides the minimal login path. Registration and account
// management are handled by a separate system.
type AuthController struct {
	DB        *gorm.DB
	JWTSecret string
}

func NewAuthController(db *gorm.DB, jwtSecret string) *AuthController {
	return &AuthController{DB: db, JWTSecret: jwtSecret}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Email et mot de passe requis", bindingFieldErrors(err))
		return
	}

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		utils.Unauthorized(c, "Identifiants invalides")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.LogError("Failed login attempt for %s", req.Email)
		utils.Unauthorized(c, "Identifiants invalides")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(ac.JWTSecret))
	if err != nil {
		utils.LogError("Failed to sign token for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Erreur interne", nil)
		return
	}

	utils.Success(c, "Connexion réussie", gin.H{
		"token": signed,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.FullName(),
		},
	})
}
