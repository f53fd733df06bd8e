package user

import "context"

// Repository — доступ к пользователям для аутентификации и рассылок.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListOperational(ctx context.Context) ([]*User, error)
}
