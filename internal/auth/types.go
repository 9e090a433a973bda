package auth

import (
	internaljwt "kingchat-backend/internal/jwt"
	"kingchat-backend/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation         ErrorCode = "validation_error"
	ErrorCodeInvalidCredentials ErrorCode = "invalid_credentials"
	ErrorCodeConflict           ErrorCode = "conflict"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeInternal           ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

type RegisterParams struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Operator model.OperatorItem        `json:"operator"`
	Tokens   internaljwt.TokenResponse `json:"tokens"`
}
