package users

import (
	"context"
)

// UserStore defines the interface for user storage operations. Every
// operation only ever sees active records; soft-deleted rows are invisible
// through this interface.
type UserStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Insert(ctx context.Context, user *User) (*User, error)
	FindAll(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, userID int64) (*User, error)
	UpdateFields(ctx context.Context, userID int64, fields map[string]any) (*User, error)
	AppendOrder(ctx context.Context, userID int64, order Order) error
	Deactivate(ctx context.Context, userID int64) error
	ListOrders(ctx context.Context, userID int64) ([]Order, error)
	SumOrderPrices(ctx context.Context, userID int64) (float64, error)
}

// UserService defines the interface for user lifecycle operations
type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	GetUserByID(ctx context.Context, userID int64) (*User, error)
	UpdateUserByID(ctx context.Context, userID int64, patch *UpdateUserRequest) (*User, error)
	DeleteUserByID(ctx context.Context, userID int64) error
	AddOrderForUser(ctx context.Context, userID int64, order Order) error
	GetOrdersForUser(ctx context.Context, userID int64) ([]Order, error)
	GetOrderTotalForUser(ctx context.Context, userID int64) (*OrderTotal, error)
}
