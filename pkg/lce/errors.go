package lce

import (
	"errors"
	"fmt"
)

// LCE errors
var (
	ErrUnknownTransaction      = errors.New("unknown transaction")
	ErrInvalidTransactionValue = errors.New("invalid transaction value")
	ErrNoTransactionValue      = errors.New("no free transaction value")
	ErrQueueFull               = errors.New("link queue full")
	ErrLinkReleased            = errors.New("link released")
	ErrUnknownLink             = errors.New("unknown link")
	ErrUnknownProtocol         = errors.New("protocol not registered")
	ErrProtocolRegistered      = errors.New("protocol already registered")
	ErrEncryptionUnsupported   = errors.New("bearer does not support encryption")
)

// LinkErrorReason is the cause of an abnormal link shutdown
type LinkErrorReason uint8

const (
	ConnectFailed LinkErrorReason = iota
	Timeout
	PeerReset
)

func (r LinkErrorReason) String() string {
	switch r {
	case ConnectFailed:
		return "connect failed"
	case Timeout:
		return "timeout"
	case PeerReset:
		return "peer reset"
	default:
		return "unknown"
	}
}

// LinkError reports why a link was shut down
type LinkError struct {
	Link   LinkID
	Reason LinkErrorReason
	Err    error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("link %d: %s: %v", e.Link, e.Reason, e.Err)
	}
	return fmt.Sprintf("link %d: %s", e.Link, e.Reason)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
