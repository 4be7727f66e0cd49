package services

import (
	"communication-service/internal/database"
	"communication-service/internal/models"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct{}

// Login logic
func (s *AuthService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	err := database.DB.Where("email = ? AND is_active = true", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("invalid credentials")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	return &user, nil
}

// UpsertAdminUser creates the admin account or resets its password.
// Driven by the -email/-new-password CLI flags.
func (s *AuthService) UpsertAdminUser(email, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user models.User
	result := database.DB.Where("email = ?", email).First(&user)
	if result.Error != nil {
		user = models.User{Email: email, Password: string(hashed), Role: "ADMIN"}
		if err := database.DB.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return &user, nil
	}

	user.Password = string(hashed)
	if err := database.DB.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	return &user, nil
}

// SystemUser returns (get-or-create) an inactive service account used for
// changes that aren't made by an actual user.
func (s *AuthService) SystemUser(email string) (*models.User, error) {
	if email == "" {
		email = "background_job_user@system.local"
	}

	var user models.User
	err := database.DB.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// "!" is not a valid bcrypt hash, so the account can never log in
	user = models.User{Email: email, Password: "!", Role: "SYSTEM", IsActive: false}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// NotificationsUser is the implicit sender identity for notification tasks.
func (s *AuthService) NotificationsUser() (*models.User, error) {
	return s.SystemUser("notifications_user@system.local")
}
