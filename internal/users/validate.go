package users

import (
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordPolicy controls the complexity rules applied to create payloads.
// The special character requirement has drifted between deployments, so it is
// a configuration knob rather than a hardcoded rule.
type PasswordPolicy struct {
	MinLength      int
	RequireSpecial bool
}

// DefaultPasswordPolicy is the policy used when none is configured
var DefaultPasswordPolicy = PasswordPolicy{MinLength: 8}

var (
	validate = validator.New()

	namePattern = regexp.MustCompile(`^[A-Z][a-z]*$`)
)

// ValidateCreate checks a raw create payload against the field rules in
// declaration order and returns the normalized user. The first failing rule
// is returned; later violations are not collected.
func ValidateCreate(req *CreateUserRequest, policy PasswordPolicy) (*User, error) {
	if req.UserID <= 0 {
		return nil, NewValidationError("userId", "userId must be a positive integer")
	}
	if len(req.Username) < 3 || len(req.Username) > 30 {
		return nil, NewValidationError("username", "username must be between 3 and 30 characters")
	}
	if err := validate.Var(req.Email, "required,email"); err != nil {
		return nil, NewValidationError("email", "Invalid email format.")
	}
	if err := checkPassword(req.Password, policy); err != nil {
		return nil, err
	}
	if !namePattern.MatchString(req.FullName.FirstName) {
		return nil, NewValidationError("fullName.firstName", "First name must start with an uppercase letter followed by lowercase letters.")
	}
	if !namePattern.MatchString(req.FullName.LastName) {
		return nil, NewValidationError("fullName.lastName", "Last name must start with an uppercase letter followed by lowercase letters.")
	}
	if req.Age <= 0 {
		return nil, NewValidationError("age", "age must be a positive integer")
	}
	if err := checkAddress(&req.Address); err != nil {
		return nil, err
	}
	for i := range req.Orders {
		if err := CheckOrder(&req.Orders[i]); err != nil {
			return nil, err
		}
	}

	user := &User{
		UserID:   req.UserID,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Age:      req.Age,
		Hobbies:  req.Hobbies,
		Address:  req.Address,
		Orders:   req.Orders,
		IsActive: true,
	}
	if user.Hobbies == nil {
		user.Hobbies = []string{}
	}
	if user.Orders == nil {
		user.Orders = []Order{}
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	return user, nil
}

// ValidateUpdate checks the fields present in a partial update payload with
// the same rules the create path applies. Absent fields are not checked.
func ValidateUpdate(patch *UpdateUserRequest) error {
	if patch.Username != nil && (len(*patch.Username) < 3 || len(*patch.Username) > 30) {
		return NewValidationError("username", "username must be between 3 and 30 characters")
	}
	if patch.Email != nil {
		if err := validate.Var(*patch.Email, "required,email"); err != nil {
			return NewValidationError("email", "Invalid email format.")
		}
	}
	if patch.FullName != nil {
		if patch.FullName.FirstName != nil && !namePattern.MatchString(*patch.FullName.FirstName) {
			return NewValidationError("fullName.firstName", "First name must start with an uppercase letter followed by lowercase letters.")
		}
		if patch.FullName.LastName != nil && !namePattern.MatchString(*patch.FullName.LastName) {
			return NewValidationError("fullName.lastName", "Last name must start with an uppercase letter followed by lowercase letters.")
		}
	}
	if patch.Age != nil && *patch.Age <= 0 {
		return NewValidationError("age", "age must be a positive integer")
	}
	if patch.Address != nil {
		if patch.Address.Street != nil && *patch.Address.Street == "" {
			return NewValidationError("address.street", "street is required")
		}
		if patch.Address.City != nil && *patch.Address.City == "" {
			return NewValidationError("address.city", "city is required")
		}
		if patch.Address.Country != nil && *patch.Address.Country == "" {
			return NewValidationError("address.country", "country is required")
		}
	}
	return nil
}

// CheckOrder validates a single order payload
func CheckOrder(order *Order) error {
	if order.ProductName == "" {
		return NewValidationError("productName", "productName is required")
	}
	if order.Price <= 0 {
		return NewValidationError("price", "price must be a positive number")
	}
	if order.Quantity <= 0 {
		return NewValidationError("quantity", "quantity must be a positive integer")
	}
	return nil
}

func checkAddress(addr *Address) error {
	if addr.Street == "" {
		return NewValidationError("address.street", "street is required")
	}
	if addr.City == "" {
		return NewValidationError("address.city", "city is required")
	}
	if addr.Country == "" {
		return NewValidationError("address.country", "country is required")
	}
	return nil
}

func checkPassword(password string, policy PasswordPolicy) error {
	minLen := policy.MinLength
	if minLen <= 0 {
		minLen = DefaultPasswordPolicy.MinLength
	}
	if len(password) < minLen {
		return NewValidationError("password", "Invalid password. It must be at least 8 characters long and include at least one uppercase letter, one lowercase letter, and one digit.")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return NewValidationError("password", "Invalid password. It must be at least 8 characters long and include at least one uppercase letter, one lowercase letter, and one digit.")
	}
	if policy.RequireSpecial && !hasSpecial {
		return NewValidationError("password", "Invalid password. It must include at least one special character.")
	}
	return nil
}
