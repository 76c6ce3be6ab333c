package soquetic

import (
	"errors"
	"fmt"

	"github.com/soquetic/soquetic-go/internal/sio"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotConnected    = errors.New("cannot send an event without a connection to the backend: call Connect first")

	// Ошибки жизненного цикла приходят через States и в запросы, ожидающие ответа.
	ErrConnectionFailed = sio.ErrConnectionFailed
	ErrConnectionLost   = sio.ErrConnectionLost
	ErrClosed           = sio.ErrClosed
)

const defaultRemoteMessage = "unknown error"

// RemoteError возвращается, если сервер ответил со status != 200.
type RemoteError struct {
	Event   string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote error (status %d): %s", e.Event, e.Status, e.Message)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
