package sfmt

import (
	"errors"
	"fmt"
)

// ReleaseCode is the value of the release reason IE
type ReleaseCode uint8

const (
	ReleaseNormal                       ReleaseCode = 0x00
	ReleaseUnexpectedMessage            ReleaseCode = 0x01
	ReleaseUnknownTransactionIdentifier ReleaseCode = 0x02
	ReleaseMandatoryIEMissing           ReleaseCode = 0x03
	ReleaseInvalidIEContents            ReleaseCode = 0x04
	ReleaseIncompatibleService          ReleaseCode = 0x05
	ReleaseServiceNotImplemented        ReleaseCode = 0x06
	ReleaseNegotiationNotSupported      ReleaseCode = 0x07
	ReleaseInvalidIdentity              ReleaseCode = 0x08
	ReleaseAuthenticationFailed         ReleaseCode = 0x09
	ReleaseUnknownIdentity              ReleaseCode = 0x0a
	ReleaseNegotiationFailed            ReleaseCode = 0x0b
	ReleaseTimerExpiry                  ReleaseCode = 0x0d
	ReleasePartialRelease               ReleaseCode = 0x0e
	ReleaseUnknown                      ReleaseCode = 0x0f
	ReleaseUserDetached                 ReleaseCode = 0x10
	ReleaseUserNotInRange               ReleaseCode = 0x11
	ReleaseUserUnknown                  ReleaseCode = 0x12
	ReleaseUserAlreadyActive            ReleaseCode = 0x13
	ReleaseUserBusy                     ReleaseCode = 0x14
	ReleaseUserRejection                ReleaseCode = 0x15
	ReleaseOverload                     ReleaseCode = 0x31
	ReleaseInsufficientResources        ReleaseCode = 0x32
)

var releaseNames = map[ReleaseCode]string{
	ReleaseNormal:                       "normal",
	ReleaseUnexpectedMessage:            "unexpected message",
	ReleaseUnknownTransactionIdentifier: "unknown transaction identifier",
	ReleaseMandatoryIEMissing:           "mandatory IE missing",
	ReleaseInvalidIEContents:            "invalid IE contents",
	ReleaseIncompatibleService:          "incompatible service",
	ReleaseServiceNotImplemented:        "service not implemented",
	ReleaseNegotiationNotSupported:      "negotiation not supported",
	ReleaseInvalidIdentity:              "invalid identity",
	ReleaseAuthenticationFailed:         "authentication failed",
	ReleaseUnknownIdentity:              "unknown identity",
	ReleaseNegotiationFailed:            "negotiation failed",
	ReleaseTimerExpiry:                  "timer expiry",
	ReleasePartialRelease:               "partial release",
	ReleaseUnknown:                      "unknown",
	ReleaseUserDetached:                 "user detached",
	ReleaseUserNotInRange:               "user not in range",
	ReleaseUserUnknown:                  "user unknown",
	ReleaseUserAlreadyActive:            "user already active",
	ReleaseUserBusy:                     "user busy",
	ReleaseUserRejection:                "user rejection",
	ReleaseOverload:                     "overload",
	ReleaseInsufficientResources:        "insufficient resources",
}

func (c ReleaseCode) String() string {
	if s, ok := releaseNames[c]; ok {
		return s
	}
	return fmt.Sprintf("release reason %#02x", uint8(c))
}

// RejectCode is the value of the reject reason IE
type RejectCode uint8

const (
	RejectTPUIUnknown                     RejectCode = 0x01
	RejectIPUIUnknown                     RejectCode = 0x02
	RejectNetworkAssignedIdentityUnknown  RejectCode = 0x03
	RejectIPEINotAccepted                 RejectCode = 0x05
	RejectIPUINotAccepted                 RejectCode = 0x06
	RejectAuthenticationFailed            RejectCode = 0x10
	RejectNoAuthenticationAlgorithm       RejectCode = 0x11
	RejectAuthenticationAlgorithmNotSupp  RejectCode = 0x12
	RejectAuthenticationKeyNotSupported   RejectCode = 0x13
	RejectUPINotEntered                   RejectCode = 0x14
	RejectNoCipherAlgorithm               RejectCode = 0x17
	RejectCipherAlgorithmNotSupported     RejectCode = 0x18
	RejectCipherKeyNotSupported           RejectCode = 0x19
	RejectIncompatibleService             RejectCode = 0x20
	RejectInsufficientMemory              RejectCode = 0x2f
	RejectOverload                        RejectCode = 0x30
	RejectInformationElementError         RejectCode = 0x61
	RejectInvalidInformationElementConts  RejectCode = 0x64
	RejectTimerExpiry                     RejectCode = 0x70
	RejectLocationAreaNotAllowed          RejectCode = 0x80
	RejectNationalRoamingNotAllowed       RejectCode = 0x81
	RejectLocationAreaNotAllowedByNetwork RejectCode = 0x82
)

func (c RejectCode) String() string {
	switch c {
	case RejectTPUIUnknown:
		return "TPUI unknown"
	case RejectIPUIUnknown:
		return "IPUI unknown"
	case RejectNetworkAssignedIdentityUnknown:
		return "network assigned identity unknown"
	case RejectIPEINotAccepted:
		return "IPEI not accepted"
	case RejectIPUINotAccepted:
		return "IPUI not accepted"
	case RejectAuthenticationFailed:
		return "authentication failed"
	case RejectNoAuthenticationAlgorithm:
		return "no authentication algorithm"
	case RejectAuthenticationAlgorithmNotSupp:
		return "authentication algorithm not supported"
	case RejectAuthenticationKeyNotSupported:
		return "authentication key not supported"
	case RejectUPINotEntered:
		return "UPI not entered"
	case RejectNoCipherAlgorithm:
		return "no cipher algorithm"
	case RejectCipherAlgorithmNotSupported:
		return "cipher algorithm not supported"
	case RejectCipherKeyNotSupported:
		return "cipher key not supported"
	case RejectIncompatibleService:
		return "incompatible service"
	case RejectInsufficientMemory:
		return "insufficient memory"
	case RejectOverload:
		return "overload"
	case RejectInformationElementError:
		return "information element error"
	case RejectInvalidInformationElementConts:
		return "invalid information element contents"
	case RejectTimerExpiry:
		return "timer expiry"
	case RejectLocationAreaNotAllowed:
		return "location area not allowed"
	case RejectNationalRoamingNotAllowed:
		return "national roaming not allowed"
	case RejectLocationAreaNotAllowedByNetwork:
		return "location area not allowed by network"
	}
	return fmt.Sprintf("reject reason %#02x", uint8(c))
}

// ReleaseReasonFor maps a codec error to the release reason sent to the peer
func ReleaseReasonFor(err error) ReleaseCode {
	switch {
	case errors.Is(err, ErrMandatoryMissing):
		return ReleaseMandatoryIEMissing
	case errors.Is(err, ErrMandatoryInvalid), errors.Is(err, ErrInvalidIE):
		return ReleaseInvalidIEContents
	case errors.Is(err, ErrNotImplemented):
		return ReleaseServiceNotImplemented
	default:
		return ReleaseUnknown
	}
}

// RejectReasonFor maps a codec error to the reject reason sent to the peer
func RejectReasonFor(err error) RejectCode {
	switch {
	case errors.Is(err, ErrMandatoryMissing):
		return RejectInformationElementError
	case errors.Is(err, ErrMandatoryInvalid), errors.Is(err, ErrInvalidIE):
		return RejectInvalidInformationElementConts
	case errors.Is(err, ErrNotImplemented):
		return RejectIncompatibleService
	default:
		return RejectInformationElementError
	}
}
