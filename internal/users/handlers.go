package users

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handlers provides the HTTP surface for user operations. Handlers translate
// request bodies into service calls and map outcomes onto the shared
// response envelope; all decisions live in the service.
type Handlers struct {
	service UserService
	logger  *zap.Logger
}

// NewHandlers creates new user handlers
func NewHandlers(service UserService, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers all user routes under /api/users
func (h *Handlers) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/users")
	{
		api.GET("", h.ListUsers)
		api.POST("", h.CreateUser)
		api.GET("/:userId", h.GetUser)
		api.PUT("/:userId", h.UpdateUser)
		api.DELETE("/:userId", h.DeleteUser)
		api.PUT("/:userId/orders", h.AddOrder)
		api.GET("/:userId/orders", h.ListOrders)
		api.GET("/:userId/orders/total-price", h.OrderTotal)
	}
}

// envelope is the response shape shared by every endpoint
type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(c *gin.Context, status int, message, description string) {
	c.JSON(status, envelope{
		Success: false,
		Message: message,
		Error: &errorBody{
			Code:        status,
			Description: description,
		},
	})
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	result, err := h.service.GetAllUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch users", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error", "Something went wrong while fetching users.")
		return
	}

	respond(c, http.StatusOK, "Users fetched successfully!", result)
}

// GetUser handles GET /api/users/:userId
func (h *Handlers) GetUser(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Something went wrong while fetching the user.")
		return
	}

	respond(c, http.StatusOK, "User fetched successfully!", user)
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	requestID := uuid.New().String()

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Validation error", "Invalid request body")
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to create user",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.fail(c, err, "Something went wrong while creating the user.")
		return
	}

	h.logger.Info("User created",
		zap.String("request_id", requestID),
		zap.Int64("user_id", user.UserID))
	respond(c, http.StatusCreated, "User created successfully!", user)
}

// UpdateUser handles PUT /api/users/:userId
func (h *Handlers) UpdateUser(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	var patch UpdateUserRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "Validation error", "Invalid request body")
		return
	}

	user, err := h.service.UpdateUserByID(c.Request.Context(), userID, &patch)
	if err != nil {
		h.fail(c, err, "Something went wrong while updating the user.")
		return
	}

	respond(c, http.StatusOK, "User updated successfully!", user)
}

// DeleteUser handles DELETE /api/users/:userId
func (h *Handlers) DeleteUser(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteUserByID(c.Request.Context(), userID); err != nil {
		h.fail(c, err, "Something went wrong while deleting the user.")
		return
	}

	respond(c, http.StatusOK, "User deleted successfully!", nil)
}

// AddOrder handles PUT /api/users/:userId/orders
func (h *Handlers) AddOrder(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	var order Order
	if err := c.ShouldBindJSON(&order); err != nil {
		respondError(c, http.StatusBadRequest, "Validation error", "Invalid request body")
		return
	}

	if err := h.service.AddOrderForUser(c.Request.Context(), userID, order); err != nil {
		h.fail(c, err, "Something went wrong while adding the order.")
		return
	}

	respond(c, http.StatusOK, "Order created successfully!", nil)
}

// ListOrders handles GET /api/users/:userId/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersForUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Something went wrong while fetching orders.")
		return
	}

	respond(c, http.StatusOK, "Orders fetched successfully!", gin.H{"orders": orders})
}

// OrderTotal handles GET /api/users/:userId/orders/total-price
func (h *Handlers) OrderTotal(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	total, err := h.service.GetOrderTotalForUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Something went wrong while computing the total price.")
		return
	}

	respond(c, http.StatusOK, "Total price calculated successfully!", total)
}

// userIDParam parses the :userId path parameter. A non-numeric id is treated
// the same as an unknown user.
func (h *Handlers) userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		respondError(c, http.StatusNotFound, "User not found!", "User not found!")
		return 0, false
	}
	return userID, true
}

// fail maps a service error onto a status code and the error envelope
func (h *Handlers) fail(c *gin.Context, err error, fallback string) {
	switch {
	case IsValidation(err):
		respondError(c, http.StatusBadRequest, "Validation error", err.Error())
	case IsNotFound(err):
		respondError(c, http.StatusNotFound, "User not found!", "User not found!")
	case IsAlreadyExists(err):
		respondError(c, http.StatusConflict, "User already exists!", err.Error())
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error", fallback)
	}
}
