package ws

import "errors"

// ErrSubscribe is returned by Run when the ranking stream cannot be opened.
var ErrSubscribe = errors.New("ranking subscription failed")
