package api

import (
	"errors"
	"net/http"
	"strings"

	"inkwell/database"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func registerUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email       string `json:"email"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)

	v := newValidator()
	v.checkEmail(input.Email, "email")
	v.checkNotBlank(input.Username, "username")
	v.checkMaxLength(input.Username, 40, "username")
	v.check(len(input.Password) >= 8, "password", "must be at least 8 characters")
	v.check(len(input.Password) <= 72, "password", "must be at most 72 characters")
	v.checkMaxLength(input.DisplayName, 100, "displayName")
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondServerError(w, r, "Hashing password", err)
		return
	}

	user := database.User{
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
	}

	// The very first account becomes the admin. Counting inside the
	// transaction keeps two racing first registrations from both winning.
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.User{}).Count(&count).Error; err != nil {
			return err
		}
		user.IsAdmin = count == 0
		return tx.Create(&user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "email or username is already registered")
		return
	}
	if err != nil {
		respondServerError(w, r, "Creating user", err)
		return
	}

	token, err := issueToken(conf.JWTSecret, conf.JWTTTL, user.ID)
	if err != nil {
		respondServerError(w, r, "Issuing token", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

func loginUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user database.User
	err := database.GetDB().
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching user", err)
		return
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(input.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := issueToken(conf.JWTSecret, conf.JWTTTL, user.ID)
	if err != nil {
		respondServerError(w, r, "Issuing token", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func getCurrentUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": currentUser(r)})
}

func updateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email           *string `json:"email"`
		Username        *string `json:"username"`
		DisplayName     *string `json:"displayName"`
		Bio             *string `json:"bio"`
		AvatarURL       *string `json:"avatarUrl"`
		Password        *string `json:"password"`
		CurrentPassword *string `json:"currentPassword"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := currentUser(r)
	v := newValidator()

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		v.checkEmail(email, "email")
		user.Email = email
	}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		v.checkNotBlank(username, "username")
		v.checkMaxLength(username, 40, "username")
		user.Username = username
	}
	if input.DisplayName != nil {
		v.checkMaxLength(*input.DisplayName, 100, "displayName")
		user.DisplayName = *input.DisplayName
	}
	if input.Bio != nil {
		v.checkMaxLength(*input.Bio, 1000, "bio")
		user.Bio = *input.Bio
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}

	if input.Password != nil {
		v.check(len(*input.Password) >= 8, "password", "must be at least 8 characters")
		v.check(len(*input.Password) <= 72, "password", "must be at most 72 characters")
		if input.CurrentPassword == nil {
			v.addError("currentPassword", "is required to change the password")
		} else if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(*input.CurrentPassword)) != nil {
			v.addError("currentPassword", "is incorrect")
		}
	}

	if !v.valid() {
		respondValidation(w, v)
		return
	}

	if input.Password != nil {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			respondServerError(w, r, "Hashing password", err)
			return
		}
		user.PasswordHash = passwordHash
	}

	err := database.GetDB().Save(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "email or username is already taken")
		return
	}
	if err != nil {
		respondServerError(w, r, "Updating user", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)

	var total int64
	if err := database.GetDB().Model(&database.User{}).Count(&total).Error; err != nil {
		respondServerError(w, r, "Counting users", err)
		return
	}

	var users []database.User
	err := database.GetDB().
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		respondServerError(w, r, "Fetching users", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func setUserAdmin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var target database.User
	err := database.GetDB().First(&target, chi.URLParam(r, "userID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching user", err)
		return
	}

	if target.ID == currentUser(r).ID && !input.IsAdmin {
		respondError(w, http.StatusForbidden, "you cannot revoke your own admin access")
		return
	}

	target.IsAdmin = input.IsAdmin
	if err := database.GetDB().Save(&target).Error; err != nil {
		respondServerError(w, r, "Updating user", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": target})
}
