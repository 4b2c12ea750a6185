package users

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeStore is an in-memory UserStore honoring the same contract as the
// Postgres store: active-only visibility, dotted-path merges, no upsert.
type fakeStore struct {
	mu      sync.Mutex
	records map[int64]*User
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[int64]*User)}
}

func (f *fakeStore) Exists(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	return ok && u.IsActive, nil
}

func (f *fakeStore) Insert(_ context.Context, user *User) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.UserID == user.UserID || existing.Username == user.Username {
			return nil, NewUserAlreadyExistsError(user.UserID)
		}
	}
	stored := *user
	f.records[user.UserID] = &stored
	result := stored
	return &result, nil
}

func (f *fakeStore) FindAll(_ context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []User
	for _, u := range f.records {
		if !u.IsActive {
			continue
		}
		c := *u
		c.Password = ""
		c.Orders = nil
		result = append(result, c)
	}
	return result, nil
}

func (f *fakeStore) FindByID(_ context.Context, userID int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	if !ok || !u.IsActive {
		return nil, NewUserNotFoundError(userID)
	}
	c := *u
	c.Password = ""
	return &c, nil
}

func (f *fakeStore) UpdateFields(_ context.Context, userID int64, fields map[string]any) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	if !ok || !u.IsActive {
		return nil, NewUserNotFoundError(userID)
	}
	for path, value := range fields {
		switch path {
		case "username":
			u.Username = value.(string)
		case "email":
			u.Email = value.(string)
		case "age":
			u.Age = value.(int)
		case "hobbies":
			u.Hobbies = value.([]string)
		case "fullName.firstName":
			u.FullName.FirstName = value.(string)
		case "fullName.lastName":
			u.FullName.LastName = value.(string)
		case "address.street":
			u.Address.Street = value.(string)
		case "address.city":
			u.Address.City = value.(string)
		case "address.country":
			u.Address.Country = value.(string)
		}
	}
	c := *u
	c.Password = ""
	return &c, nil
}

func (f *fakeStore) AppendOrder(_ context.Context, userID int64, order Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	if !ok || !u.IsActive {
		return NewUserNotFoundError(userID)
	}
	u.Orders = append(u.Orders, order)
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	if !ok || !u.IsActive {
		return NewUserNotFoundError(userID)
	}
	u.IsActive = false
	return nil
}

func (f *fakeStore) ListOrders(_ context.Context, userID int64) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	if !ok || !u.IsActive {
		return nil, NewUserNotFoundError(userID)
	}
	if u.Orders == nil {
		return []Order{}, nil
	}
	return append([]Order{}, u.Orders...), nil
}

func (f *fakeStore) SumOrderPrices(_ context.Context, userID int64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[userID]
	if !ok || !u.IsActive {
		return 0, nil
	}
	var total float64
	for _, o := range u.Orders {
		total += o.Price
	}
	return total, nil
}

// raw returns the stored record including inactive ones, bypassing the
// read-path projections, for asserting at-rest state
func (f *fakeStore) raw(userID int64) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[userID]
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc := NewService(store, zap.NewNop(), SecurityParams{BcryptCost: bcrypt.MinCost})
	return svc, store
}

func mustCreateUser(t *testing.T, svc *Service) *User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), validCreateRequest())
	require.NoError(t, err)
	return user
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("HashesPasswordAtRest", func(t *testing.T) {
		svc, store := newTestService(t)
		created := mustCreateUser(t, svc)

		// Response never carries the password
		assert.Empty(t, created.Password)

		// The stored record carries the hash, not the plaintext
		stored := store.raw(created.UserID)
		require.NotNil(t, stored)
		assert.NotEqual(t, "Secret123", stored.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("Secret123")))
	})

	t.Run("RejectsInvalidPayload", func(t *testing.T) {
		svc, store := newTestService(t)
		req := validCreateRequest()
		req.Email = "nope"

		_, err := svc.CreateUser(ctx, req)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Nil(t, store.raw(req.UserID))
	})

	t.Run("DuplicateUserID", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		req := validCreateRequest()
		req.Username = "othername"
		_, err := svc.CreateUser(ctx, req)
		require.Error(t, err)
		assert.True(t, IsAlreadyExists(err))
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		svc, store := newTestService(t)
		mustCreateUser(t, svc)

		req := validCreateRequest()
		req.UserID = 2
		_, err := svc.CreateUser(ctx, req)
		require.Error(t, err)
		assert.True(t, IsAlreadyExists(err))
		assert.Nil(t, store.raw(2))
	})
}

func TestUpdateUserByID(t *testing.T) {
	ctx := context.Background()
	strPtr := func(s string) *string { return &s }
	intPtr := func(i int) *int { return &i }

	t.Run("NestedLeafMergePreservesSiblings", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		updated, err := svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{
			Address: &AddressPatch{City: strPtr("Shelbyville")},
		})
		require.NoError(t, err)
		assert.Equal(t, "Main St", updated.Address.Street)
		assert.Equal(t, "Shelbyville", updated.Address.City)
		assert.Equal(t, "USA", updated.Address.Country)
	})

	t.Run("FullNameLeafMerge", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		updated, err := svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{
			FullName: &FullNamePatch{LastName: strPtr("Smith")},
		})
		require.NoError(t, err)
		assert.Equal(t, "John", updated.FullName.FirstName)
		assert.Equal(t, "Smith", updated.FullName.LastName)
	})

	t.Run("ScalarPassThrough", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		updated, err := svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{Age: intPtr(31)})
		require.NoError(t, err)
		assert.Equal(t, 31, updated.Age)
		assert.Equal(t, "johndoe", updated.Username)
		assert.Equal(t, "john@example.com", updated.Email)
	})

	t.Run("EmptyHobbiesLeavesStoredValue", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		updated, err := svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{Hobbies: []string{}})
		require.NoError(t, err)
		assert.Equal(t, []string{"reading"}, updated.Hobbies)

		updated, err = svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{Hobbies: []string{"chess", "golf"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"chess", "golf"}, updated.Hobbies)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.UpdateUserByID(ctx, 42, &UpdateUserRequest{Age: intPtr(31)})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("InvalidPresentField", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		_, err := svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{Email: strPtr("nope")})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestFlattenUpdate(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	intPtr := func(i int) *int { return &i }

	t.Run("NestedLeavesBecomeDottedPaths", func(t *testing.T) {
		fields := flattenUpdate(&UpdateUserRequest{
			Age: intPtr(31),
			FullName: &FullNamePatch{
				FirstName: strPtr("Jane"),
			},
			Address: &AddressPatch{
				City:    strPtr("Berlin"),
				Country: strPtr("Germany"),
			},
		})

		assert.Equal(t, map[string]any{
			"age":                31,
			"fullName.firstName": "Jane",
			"address.city":       "Berlin",
			"address.country":    "Germany",
		}, fields)
	})

	t.Run("AbsentFieldsProduceNoPaths", func(t *testing.T) {
		assert.Empty(t, flattenUpdate(&UpdateUserRequest{}))
	})

	t.Run("EmptyHobbiesOmitted", func(t *testing.T) {
		fields := flattenUpdate(&UpdateUserRequest{Hobbies: []string{}})
		assert.NotContains(t, fields, "hobbies")

		fields = flattenUpdate(&UpdateUserRequest{Hobbies: []string{"chess"}})
		assert.Equal(t, map[string]any{"hobbies": []string{"chess"}}, fields)
	})
}

func TestDeleteUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("SoftDeleteKeepsRecord", func(t *testing.T) {
		svc, store := newTestService(t)
		mustCreateUser(t, svc)

		require.NoError(t, svc.DeleteUserByID(ctx, 1))

		// Invisible through reads
		_, err := svc.GetUserByID(ctx, 1)
		assert.True(t, IsNotFound(err))

		all, err := svc.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		// Still in storage, flagged inactive
		stored := store.raw(1)
		require.NotNil(t, stored)
		assert.False(t, stored.IsActive)
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		require.NoError(t, svc.DeleteUserByID(ctx, 1))
		err := svc.DeleteUserByID(ctx, 1)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("MutationsGatedAfterDelete", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)
		require.NoError(t, svc.DeleteUserByID(ctx, 1))

		err := svc.AddOrderForUser(ctx, 1, Order{ProductName: "X", Price: 1, Quantity: 1})
		assert.True(t, IsNotFound(err))

		age := 40
		_, err = svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{Age: &age})
		assert.True(t, IsNotFound(err))
	})
}

func TestOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("AppendAndList", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		order := Order{ProductName: "Widget", Price: 9.99, Quantity: 2}
		require.NoError(t, svc.AddOrderForUser(ctx, 1, order))

		orders, err := svc.GetOrdersForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, order, orders[0])
	})

	t.Run("DuplicateOrdersAllowed", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		order := Order{ProductName: "Widget", Price: 5, Quantity: 1}
		require.NoError(t, svc.AddOrderForUser(ctx, 1, order))
		require.NoError(t, svc.AddOrderForUser(ctx, 1, order))

		orders, err := svc.GetOrdersForUser(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("RejectsInvalidOrder", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		err := svc.AddOrderForUser(ctx, 1, Order{ProductName: "", Price: 1, Quantity: 1})
		assert.True(t, IsValidation(err))

		err = svc.AddOrderForUser(ctx, 1, Order{ProductName: "X", Price: -1, Quantity: 1})
		assert.True(t, IsValidation(err))
	})

	t.Run("TotalPrice", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		for _, price := range []float64{10, 5, 5} {
			require.NoError(t, svc.AddOrderForUser(ctx, 1, Order{ProductName: "X", Price: price, Quantity: 1}))
		}

		total, err := svc.GetOrderTotalForUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 20.0, total.TotalPrice)
	})

	t.Run("TotalPriceZeroWithoutOrders", func(t *testing.T) {
		svc, _ := newTestService(t)
		mustCreateUser(t, svc)

		total, err := svc.GetOrderTotalForUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0.0, total.TotalPrice)
	})

	t.Run("GatedOnUnknownUser", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.GetOrdersForUser(ctx, 42)
		assert.True(t, IsNotFound(err))

		_, err = svc.GetOrderTotalForUser(ctx, 42)
		assert.True(t, IsNotFound(err))
	})
}

func TestReadsNeverLeakPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreateUser(t, svc)

	user, err := svc.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, user.Password)

	all, err := svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].Password)

	age := 31
	updated, err := svc.UpdateUserByID(ctx, 1, &UpdateUserRequest{Age: &age})
	require.NoError(t, err)
	assert.Empty(t, updated.Password)
}
