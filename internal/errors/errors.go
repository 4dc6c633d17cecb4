package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeAuth           ErrorType = "AUTH"
	ErrTypeConfig         ErrorType = "CONFIG"
	ErrTypeExtraction     ErrorType = "EXTRACTION"
	ErrTypeDetail         ErrorType = "DETAIL"
	ErrTypeClassification ErrorType = "CLASSIFICATION"
	ErrTypeStorage        ErrorType = "STORAGE"
	ErrTypeUnavailable    ErrorType = "UNAVAILABLE"
)

type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// IsType reports whether any DomainError in err's chain has type t.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Type == t {
			return true
		}
		err = de.Err
	}
	return false
}

func Auth(message string, err error) *DomainError {
	return New(ErrTypeAuth, message, err)
}

func Config(message string, err error) *DomainError {
	return New(ErrTypeConfig, message, err)
}

func Extraction(message string, err error) *DomainError {
	return New(ErrTypeExtraction, message, err)
}

func Detail(message string, err error) *DomainError {
	return New(ErrTypeDetail, message, err)
}

func Classification(message string, err error) *DomainError {
	return New(ErrTypeClassification, message, err)
}

func Storage(message string, err error) *DomainError {
	return New(ErrTypeStorage, message, err)
}

func Unavailable(message string, err error) *DomainError {
	return New(ErrTypeUnavailable, message, err)
}
