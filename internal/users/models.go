package users

// FullName is the nested name object embedded in a user record
type FullName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Address is the nested address object embedded in a user record
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Order is a single purchase embedded in a user record. Orders have no
// identity of their own and live and die with the containing user.
type Order struct {
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// User represents a user record in the system
type User struct {
	UserID   int64    `json:"userId"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"-"` // bcrypt hash, never serialized
	FullName FullName `json:"fullName"`
	Age      int      `json:"age"`
	Hobbies  []string `json:"hobbies"`
	Address  Address  `json:"address"`
	Orders   []Order  `json:"orders,omitempty"`
	IsActive bool     `json:"isActive"`
}

// CreateUserRequest is the raw create payload before validation
type CreateUserRequest struct {
	UserID   int64    `json:"userId"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	FullName FullName `json:"fullName"`
	Age      int      `json:"age"`
	Hobbies  []string `json:"hobbies"`
	Address  Address  `json:"address"`
	Orders   []Order  `json:"orders"`
	IsActive *bool    `json:"isActive"`
}

// UpdateUserRequest is a partial user payload. Nil fields are left untouched;
// present leaves of fullName and address are applied individually so that
// unspecified sibling leaves survive the update.
type UpdateUserRequest struct {
	Username *string        `json:"username"`
	Email    *string        `json:"email"`
	FullName *FullNamePatch `json:"fullName"`
	Age      *int           `json:"age"`
	Hobbies  []string       `json:"hobbies"`
	Address  *AddressPatch  `json:"address"`
}

// FullNamePatch carries the optionally-present leaves of fullName
type FullNamePatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// AddressPatch carries the optionally-present leaves of address
type AddressPatch struct {
	Street  *string `json:"street"`
	City    *string `json:"city"`
	Country *string `json:"country"`
}

// OrderTotal is the aggregation result for a user's orders. TotalPrice is
// always a number, zero when the user has no orders.
type OrderTotal struct {
	TotalPrice float64 `json:"totalPrice"`
}
