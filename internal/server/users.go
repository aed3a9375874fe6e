package server

import (
	"context"
	goerrors "errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"scc-link-go/internal/contracts/qrlink"
	"scc-link-go/internal/platform/errors"
)

// User is a backend account able to approve QR logins.
type User struct {
	ID           uint           `gorm:"primaryKey"                             json:"id"`
	Name         string         `gorm:"not null"                               json:"name"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null"                               json:"-"`
	Profile      string         `gorm:"default:'operator'"                     json:"profile"`
	Active       bool           `gorm:"default:true"                           json:"active"`
	Preferences  datatypes.JSON `json:"preferences,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Contract converts the stored user to its wire shape.
func (u *User) Contract() qrlink.User {
	return qrlink.User{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Profile: u.Profile,
		Active:  u.Active,
	}
}

// UserRepository persists accounts in the relational store.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository migrates the users table and returns the repository.
func NewUserRepository(db *gorm.DB) (*UserRepository, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migrate", "migrate users table", err)
	}
	return &UserRepository{db: db}, nil
}

// Create registers a new account with a bcrypt-hashed password.
func (r *UserRepository) Create(ctx context.Context, name, email, password, profile string) (*User, error) {
	const op = "create"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "hash password", err)
	}

	user := &User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Profile:      profile,
		Active:       true,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "insert user", err)
	}
	return user, nil
}

// FindByEmail loads an account by its unique email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.KindAuth, "find", "user not found")
		}
		return nil, errors.Wrap(errors.KindStorage, "find", "load user", err)
	}
	return &user, nil
}

// Authenticate checks credentials and account state.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	const op = "authenticate"

	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.New(errors.KindAuth, op, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New(errors.KindAuth, op, "invalid email or password")
	}
	if !user.Active {
		return nil, errors.New(errors.KindAuth, op, "account is deactivated")
	}
	return user, nil
}
