package domain

import (
	"errors"
	"fmt"
)

// Имена ошибок доступа к устройству и воспроизведения
const (
	ErrNameNotAllowed   = "NotAllowedError"
	ErrNameNotFound     = "NotFoundError"
	ErrNameNotReadable  = "NotReadableError"
	ErrNameNotSupported = "NotSupportedError"
	ErrNameInvalidState = "InvalidStateError"
	ErrNameAbort        = "AbortError"
	ErrNameUnknown      = "UnknownError"
)

// Имена штатных промахов распознавания
const (
	ErrNameCodeNotFound = "NotFoundException"
	ErrNameChecksum     = "ChecksumException"
	ErrNameFormat       = "FormatException"
)

// MediaError ошибка устройства или воспроизведения с классифицирующим именем
type MediaError struct {
	Name string
	Err  error
}

// NewMediaError создает ошибку с именем и причиной
func NewMediaError(name string, err error) *MediaError {
	return &MediaError{Name: name, Err: err}
}

func (e *MediaError) Error() string {
	if e.Err == nil {
		return e.Name
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// DecodeError ошибка отдельного прохода распознавания
type DecodeError struct {
	Name string
	Err  error
}

// NewDecodeError создает ошибку распознавания
func NewDecodeError(name string, err error) *DecodeError {
	return &DecodeError{Name: name, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Name
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorName возвращает имя классифицированной ошибки или пустую строку
func ErrorName(err error) string {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Name
	}
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return mediaErr.Name
	}
	return ""
}
