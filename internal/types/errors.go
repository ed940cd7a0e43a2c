package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrClipNotFound        = errors.New("clip not found")
	ErrInvalidTrimRange    = errors.New("invalid trim range")
	ErrIncompleteSelection = errors.New("incomplete selection")
	ErrExternalService     = errors.New("external service failure")
	ErrLineOutOfRange      = errors.New("script line out of range")
	ErrAssemblyRunning     = errors.New("an assembly is already running")
	ErrNoAssembly          = errors.New("no assembly is running")
	ErrNoSession           = errors.New("no session is open")
)

// Error kinds reported by ErrorKind.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindExternal   = "external"
)

type ClipNotFoundError struct {
	ClipID string
	Err    error
}

func (e *ClipNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clip %q not found: %v", e.ClipID, e.Err)
	}
	return fmt.Sprintf("clip %q not found", e.ClipID)
}

func (e *ClipNotFoundError) Is(target error) bool { return target == ErrClipNotFound }
func (e *ClipNotFoundError) Unwrap() error        { return e.Err }
func (e *ClipNotFoundError) ErrorKind() string    { return KindNotFound }

type InvalidTrimRangeError struct {
	Line     int
	ClipID   string
	Start    time.Duration
	End      time.Duration
	Duration time.Duration
}

func (e *InvalidTrimRangeError) Error() string {
	return fmt.Sprintf("invalid trim range for line %d (%s): start=%.3fs end=%.3fs duration=%.3fs",
		e.Line, e.ClipID, e.Start.Seconds(), e.End.Seconds(), e.Duration.Seconds())
}

func (e *InvalidTrimRangeError) Is(target error) bool { return target == ErrInvalidTrimRange }
func (e *InvalidTrimRangeError) ErrorKind() string    { return KindValidation }

type IncompleteSelectionError struct {
	Unresolved []int
}

func (e *IncompleteSelectionError) Error() string {
	idx := make([]string, 0, len(e.Unresolved))
	for _, i := range e.Unresolved {
		idx = append(idx, strconv.Itoa(i))
	}
	return fmt.Sprintf("incomplete selection: %d line(s) unresolved [%s]", len(e.Unresolved), strings.Join(idx, ","))
}

func (e *IncompleteSelectionError) Is(target error) bool { return target == ErrIncompleteSelection }
func (e *IncompleteSelectionError) ErrorKind() string    { return KindConflict }

type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }
func (e *ExternalServiceError) Unwrap() error        { return e.Err }
func (e *ExternalServiceError) ErrorKind() string    { return KindExternal }

// ErrorKind classifies err for presentation. Unclassified errors return "".
func ErrorKind(err error) string {
	var k interface{ ErrorKind() string }
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	switch {
	case errors.Is(err, ErrLineOutOfRange), errors.Is(err, ErrInvalidTrimRange):
		return KindValidation
	case errors.Is(err, ErrClipNotFound):
		return KindNotFound
	case errors.Is(err, ErrAssemblyRunning), errors.Is(err, ErrNoAssembly), errors.Is(err, ErrNoSession):
		return KindConflict
	}
	return ""
}
