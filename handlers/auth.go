package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/sysviz-api/auth"
	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/utils"
)

type userResponse struct {
	ID        uint       `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	AvatarURL *string    `json:"avatar_url"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, AvatarURL: u.AvatarURL}
}

// POST /api/auth/register
func (db *DBHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,max=100"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Username, a valid email and a password of at least 6 characters are required")
		return
	}

	var count int64
	if err := db.WithContext(r.Context()).Model(&models.User{}).Where("email = ? OR username = ?", req.Email, req.Username).Count(&count).Error; err != nil {
		db.serverError(w, "Register: query failed", err)
		return
	}
	if count > 0 {
		utils.WriteError(w, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		db.serverError(w, "Register: failed to hash password", err)
		return
	}

	user := models.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := db.WithContext(r.Context()).Create(&user).Error; err != nil {
		db.serverError(w, "Register: failed to create user", err)
		return
	}

	token, err := db.Issuer.CreateToken(&user)
	if err != nil {
		db.serverError(w, "Register: failed to create token", err)
		return
	}

	db.Log.Info("User registered", zap.Uint("userID", user.ID))
	utils.WriteJSON(w, http.StatusCreated, authResponse{User: newUserResponse(&user), Token: token})
}

// POST /api/auth/login
func (db *DBHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	var user models.User
	err := db.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if err != nil {
		db.serverError(w, "Login: query failed", err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	token, err := db.Issuer.CreateToken(&user)
	if err != nil {
		db.serverError(w, "Login: failed to create token", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, authResponse{User: newUserResponse(&user), Token: token})
}

// GET /api/auth/me
func (db *DBHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}
	resp := newUserResponse(user)
	resp.CreatedAt = &user.CreatedAt
	utils.WriteJSON(w, http.StatusOK, resp)
}
