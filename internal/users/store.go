package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// UserSchema represents the users table schema in PostgreSQL. Nested and
// embedded fields live in JSONB columns so partial path updates and order
// aggregation run against the single row.
type UserSchema struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement" json:"-"`
	UserID    int64     `bun:"user_id,notnull,unique" json:"userId"`
	Username  string    `bun:"username,notnull,unique" json:"username"`
	Email     string    `bun:"email,notnull" json:"email"`
	Password  string    `bun:"password,notnull" json:"-"`
	FullName  FullName  `bun:"full_name,type:jsonb" json:"fullName"`
	Age       int       `bun:"age,notnull" json:"age"`
	Hobbies   []string  `bun:"hobbies,type:jsonb" json:"hobbies"`
	Address   Address   `bun:"address,type:jsonb" json:"address"`
	Orders    []Order   `bun:"orders,type:jsonb" json:"orders,omitempty"`
	IsActive  bool      `bun:"is_active,notnull,default:true" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"-"`
}

// activeRows restricts a select to records that have not been soft-deleted.
// Every read in this store goes through it; there is no implicit hook that
// could be bypassed.
func activeRows(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("u.is_active")
}

// activeRowsUpdate is the update-query counterpart of activeRows
func activeRowsUpdate(q *bun.UpdateQuery) *bun.UpdateQuery {
	return q.Where("u.is_active")
}

// PostgresStore implements the UserStore interface with PostgreSQL storage
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore creates a new PostgreSQL user store
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Exists reports whether an active record with the given userId exists
func (s *PostgresStore) Exists(ctx context.Context, userID int64) (bool, error) {
	count, err := s.db.NewSelect().
		Model((*UserSchema)(nil)).
		Where("u.user_id = ?", userID).
		Apply(activeRows).
		Count(ctx)
	if err != nil {
		return false, NewUserStoreError(userID, "failed to check user existence", err)
	}
	return count > 0, nil
}

// Insert persists a new user record
func (s *PostgresStore) Insert(ctx context.Context, user *User) (*User, error) {
	schema := userToSchema(user)

	_, err := s.db.NewInsert().
		Model(schema).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, NewUserAlreadyExistsError(user.UserID)
		}
		return nil, NewUserStoreError(user.UserID, "failed to create user", err)
	}

	return schemaToUser(schema), nil
}

// FindAll returns all active users. The password hash and the order list are
// excluded from the projection.
func (s *PostgresStore) FindAll(ctx context.Context) ([]User, error) {
	var schemas []UserSchema
	err := s.db.NewSelect().
		Model(&schemas).
		ExcludeColumn("password", "orders").
		Apply(activeRows).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, NewUserStoreError(0, "failed to fetch users", err)
	}

	result := make([]User, len(schemas))
	for i := range schemas {
		result[i] = *schemaToUser(&schemas[i])
	}
	return result, nil
}

// FindByID returns one active user without the password hash
func (s *PostgresStore) FindByID(ctx context.Context, userID int64) (*User, error) {
	var schema UserSchema
	err := s.db.NewSelect().
		Model(&schema).
		ExcludeColumn("password").
		Where("u.user_id = ?", userID).
		Apply(activeRows).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewUserNotFoundError(userID)
		}
		return nil, NewUserStoreError(userID, "failed to fetch user", err)
	}

	return schemaToUser(&schema), nil
}

// UpdateFields applies a set of dotted-path field assignments atomically in a
// single UPDATE. Top-level scalar paths set their column; fullName.* and
// address.* paths rewrite their keys inside the JSONB column; hobbies
// replaces the whole column. There is no upsert: an absent or inactive
// record is a not-found error, never a new row.
func (s *PostgresStore) UpdateFields(ctx context.Context, userID int64, fields map[string]any) (*User, error) {
	if len(fields) == 0 {
		return s.FindByID(ctx, userID)
	}

	q := s.db.NewUpdate().
		Model((*UserSchema)(nil)).
		Where("u.user_id = ?", userID).
		Apply(activeRowsUpdate).
		Set("updated_at = ?", time.Now())

	// All leaves of one JSONB column are collected into a single patch
	// object; a column may only be assigned once per UPDATE statement.
	jsonbPatches := make(map[string]map[string]any)

	for path, value := range fields {
		switch path {
		case "username":
			q = q.Set("username = ?", value)
		case "email":
			q = q.Set("email = ?", value)
		case "age":
			q = q.Set("age = ?", value)
		case "hobbies":
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("failed to encode hobbies: %w", err)
			}
			q = q.Set("hobbies = ?::jsonb", string(encoded))
		default:
			column, key, ok := jsonbPath(path)
			if !ok {
				return nil, fmt.Errorf("unknown update path %q", path)
			}
			if jsonbPatches[column] == nil {
				jsonbPatches[column] = make(map[string]any)
			}
			jsonbPatches[column][key] = value
		}
	}

	for column, patch := range jsonbPatches {
		encoded, err := json.Marshal(patch)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", column, err)
		}
		// Top-level concatenation merges the patched keys and leaves
		// unmentioned sibling keys untouched
		q = q.Set(column+" = "+column+" || ?::jsonb", string(encoded))
	}

	var schema UserSchema
	_, err := q.Returning("*").Exec(ctx, &schema)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewUserNotFoundError(userID)
		}
		if isDuplicateKey(err) {
			return nil, NewUserAlreadyExistsError(userID)
		}
		return nil, NewUserStoreError(userID, "failed to update user", err)
	}

	user := schemaToUser(&schema)
	user.Password = ""
	return user, nil
}

// AppendOrder adds one order to the embedded order list. Duplicate orders are
// permitted; this is a plain append, not set insertion.
func (s *PostgresStore) AppendOrder(ctx context.Context, userID int64, order Order) error {
	encoded, err := json.Marshal([]Order{order})
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	result, err := s.db.NewUpdate().
		Model((*UserSchema)(nil)).
		Where("u.user_id = ?", userID).
		Apply(activeRowsUpdate).
		Set("orders = coalesce(orders, '[]'::jsonb) || ?::jsonb", string(encoded)).
		Set("updated_at = ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return NewUserStoreError(userID, "failed to append order", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return NewUserStoreError(userID, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return NewUserNotFoundError(userID)
	}
	return nil
}

// Deactivate soft-deletes a user by clearing the active flag. The row stays
// in storage and becomes invisible to every read in this store.
func (s *PostgresStore) Deactivate(ctx context.Context, userID int64) error {
	result, err := s.db.NewUpdate().
		Model((*UserSchema)(nil)).
		Where("u.user_id = ?", userID).
		Apply(activeRowsUpdate).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return NewUserStoreError(userID, "failed to deactivate user", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return NewUserStoreError(userID, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return NewUserNotFoundError(userID)
	}
	return nil
}

// ListOrders returns the embedded order list of one active user
func (s *PostgresStore) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	var schema UserSchema
	err := s.db.NewSelect().
		Model(&schema).
		Column("orders").
		Where("u.user_id = ?", userID).
		Apply(activeRows).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewUserNotFoundError(userID)
		}
		return nil, NewUserStoreError(userID, "failed to fetch orders", err)
	}

	if schema.Orders == nil {
		return []Order{}, nil
	}
	return schema.Orders, nil
}

// SumOrderPrices matches the active record and sums the price of its embedded
// orders. A user without orders sums to zero.
func (s *PostgresStore) SumOrderPrices(ctx context.Context, userID int64) (float64, error) {
	var total float64
	err := s.db.NewSelect().
		Model((*UserSchema)(nil)).
		ColumnExpr("COALESCE(SUM((o.ord->>'price')::numeric), 0)").
		Join("CROSS JOIN LATERAL jsonb_array_elements(u.orders) AS o(ord)").
		Where("u.user_id = ?", userID).
		Apply(activeRows).
		Scan(ctx, &total)
	if err != nil {
		return 0, NewUserStoreError(userID, "failed to sum order prices", err)
	}
	return total, nil
}

// jsonbPath maps a dotted nested-field path to its JSONB column and key
func jsonbPath(path string) (column, key string, ok bool) {
	parent, key, found := strings.Cut(path, ".")
	if !found {
		return "", "", false
	}
	switch parent {
	case "fullName":
		return "full_name", key, true
	case "address":
		return "address", key, true
	}
	return "", "", false
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// Helper conversion functions

func schemaToUser(schema *UserSchema) *User {
	user := &User{
		UserID:   schema.UserID,
		Username: schema.Username,
		Email:    schema.Email,
		Password: schema.Password,
		FullName: schema.FullName,
		Age:      schema.Age,
		Hobbies:  schema.Hobbies,
		Address:  schema.Address,
		Orders:   schema.Orders,
		IsActive: schema.IsActive,
	}
	if user.Hobbies == nil {
		user.Hobbies = []string{}
	}
	return user
}

func userToSchema(user *User) *UserSchema {
	return &UserSchema{
		UserID:    user.UserID,
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.Password,
		FullName:  user.FullName,
		Age:       user.Age,
		Hobbies:   user.Hobbies,
		Address:   user.Address,
		Orders:    user.Orders,
		IsActive:  user.IsActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}
