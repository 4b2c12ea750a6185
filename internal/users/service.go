package users

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SecurityParams carries the password handling knobs from configuration
type SecurityParams struct {
	BcryptCost             int
	PasswordRequireSpecial bool
}

// Service implements the UserService interface. It owns the lifecycle rules:
// validation and hashing on create, the flatten-merge on partial update, the
// soft-delete policy, and the order append/aggregation contracts. Every
// keyed operation is gated on the record existing and being active; the gate
// and the following write are two store calls, so a record deleted in
// between surfaces as a store-level not-found rather than a resurrection.
type Service struct {
	store  UserStore
	logger *zap.Logger
	sec    SecurityParams
}

// NewService creates a new user service instance
func NewService(store UserStore, logger *zap.Logger, sec SecurityParams) *Service {
	if sec.BcryptCost == 0 {
		sec.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:  store,
		logger: logger,
		sec:    sec,
	}
}

// CreateUser validates the payload, hashes the password and persists the
// record. The returned user never carries the password hash.
func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	policy := PasswordPolicy{
		MinLength:      DefaultPasswordPolicy.MinLength,
		RequireSpecial: s.sec.PasswordRequireSpecial,
	}

	user, err := ValidateCreate(req, policy)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), s.sec.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hash)

	created, err := s.store.Insert(ctx, user)
	if err != nil {
		return nil, err
	}

	// Hash stays at rest only
	created.Password = ""

	s.logger.Info("User created",
		zap.Int64("user_id", created.UserID),
		zap.String("username", created.Username))
	return created, nil
}

// GetAllUsers returns all active users without passwords or orders
func (s *Service) GetAllUsers(ctx context.Context) ([]User, error) {
	return s.store.FindAll(ctx)
}

// GetUserByID returns one active user
func (s *Service) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	if err := s.gate(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, userID)
}

// UpdateUserByID applies a partial update using flatten-merge: each present
// leaf of fullName and address becomes its own dotted-path write, so sibling
// leaves that are absent from the payload keep their stored value. The
// hobbies array is replaced wholesale, but only when present and non-empty.
// Remaining top-level scalars pass through as plain column writes.
func (s *Service) UpdateUserByID(ctx context.Context, userID int64, patch *UpdateUserRequest) (*User, error) {
	if err := s.gate(ctx, userID); err != nil {
		return nil, err
	}
	if err := ValidateUpdate(patch); err != nil {
		return nil, err
	}

	fields := flattenUpdate(patch)
	updated, err := s.store.UpdateFields(ctx, userID, fields)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User updated",
		zap.Int64("user_id", userID),
		zap.Int("fields", len(fields)))
	return updated, nil
}

// DeleteUserByID soft-deletes a user. The record stays in storage with the
// active flag cleared; there is no way to bring it back through this service.
func (s *Service) DeleteUserByID(ctx context.Context, userID int64) error {
	if err := s.gate(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("User deactivated", zap.Int64("user_id", userID))
	return nil
}

// AddOrderForUser appends one order to the user's embedded order list.
// Identical orders are allowed to repeat.
func (s *Service) AddOrderForUser(ctx context.Context, userID int64, order Order) error {
	if err := s.gate(ctx, userID); err != nil {
		return err
	}
	if err := CheckOrder(&order); err != nil {
		return err
	}
	return s.store.AppendOrder(ctx, userID, order)
}

// GetOrdersForUser returns the user's embedded order list
func (s *Service) GetOrdersForUser(ctx context.Context, userID int64) ([]Order, error) {
	if err := s.gate(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, userID)
}

// GetOrderTotalForUser computes the sum of the user's order prices via the
// store aggregation. The result is zero, never null, when no orders exist.
func (s *Service) GetOrderTotalForUser(ctx context.Context, userID int64) (*OrderTotal, error) {
	if err := s.gate(ctx, userID); err != nil {
		return nil, err
	}

	total, err := s.store.SumOrderPrices(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &OrderTotal{TotalPrice: total}, nil
}

// gate is the existence precondition applied before every keyed operation:
// the record must exist and be active.
func (s *Service) gate(ctx context.Context, userID int64) error {
	exists, err := s.store.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return NewUserNotFoundError(userID)
	}
	return nil
}

// flattenUpdate turns a partial payload into the dotted-path assignment map
// handed to the store. Nested objects are never replaced wholesale.
func flattenUpdate(patch *UpdateUserRequest) map[string]any {
	fields := make(map[string]any)

	if patch.Username != nil {
		fields["username"] = *patch.Username
	}
	if patch.Email != nil {
		fields["email"] = *patch.Email
	}
	if patch.Age != nil {
		fields["age"] = *patch.Age
	}
	if patch.FullName != nil {
		if patch.FullName.FirstName != nil {
			fields["fullName.firstName"] = *patch.FullName.FirstName
		}
		if patch.FullName.LastName != nil {
			fields["fullName.lastName"] = *patch.FullName.LastName
		}
	}
	if patch.Address != nil {
		if patch.Address.Street != nil {
			fields["address.street"] = *patch.Address.Street
		}
		if patch.Address.City != nil {
			fields["address.city"] = *patch.Address.City
		}
		if patch.Address.Country != nil {
			fields["address.country"] = *patch.Address.Country
		}
	}
	// An empty hobbies array means "leave it alone", not "clear it"
	if len(patch.Hobbies) > 0 {
		fields["hobbies"] = patch.Hobbies
	}

	return fields
}
