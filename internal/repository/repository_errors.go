package repository

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCartNotFound      = errors.New("cart not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrDuplicateCartItem = errors.New("cart item already exists")
	ErrAddressNotFound   = errors.New("address not found")
	ErrOrderNotFound     = errors.New("order not found")
)

const uniqueViolation = "23505"
