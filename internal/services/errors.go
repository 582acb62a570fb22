package services

import "errors"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")

	ErrProductNotFound  = errors.New("product not found")
	ErrForbidden        = errors.New("not the owner of this product")
	ErrInvalidPrice     = errors.New("price must be a positive number")
	ErrPriceOutOfRange  = errors.New("price must be below 100000000 with at most 2 decimal places")
	ErrUnsupportedImage = errors.New("unsupported image type")
)
