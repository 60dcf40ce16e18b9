package mm

import "github.com/dbehnke/dect-nwk/pkg/sfmt"

// MM message types
const (
	MsgAuthenticationRequest         uint8 = 0x40
	MsgAuthenticationReply           uint8 = 0x41
	MsgAuthenticationReject          uint8 = 0x43
	MsgAccessRightsRequest           uint8 = 0x44
	MsgAccessRightsAccept            uint8 = 0x45
	MsgAccessRightsReject            uint8 = 0x47
	MsgAccessRightsTerminateRequest  uint8 = 0x48
	MsgAccessRightsTerminateAccept   uint8 = 0x49
	MsgAccessRightsTerminateReject   uint8 = 0x4b
	MsgCipherRequest                 uint8 = 0x4c
	MsgCipherReject                  uint8 = 0x4f
	MsgInfoRequest                   uint8 = 0x50
	MsgInfoAccept                    uint8 = 0x51
	MsgInfoReject                    uint8 = 0x53
	MsgLocateRequest                 uint8 = 0x54
	MsgLocateAccept                  uint8 = 0x55
	MsgDetach                        uint8 = 0x56
	MsgLocateReject                  uint8 = 0x57
	MsgIdentityRequest               uint8 = 0x58
	MsgIdentityReply                 uint8 = 0x59
	MsgTemporaryIdentityAssign       uint8 = 0x5c
	MsgTemporaryIdentityAssignAck    uint8 = 0x5d
	MsgTemporaryIdentityAssignReject uint8 = 0x5f
)

var (
	pNone = sfmt.PolicyNone
	pOpt  = sfmt.PolicyOptional
	pMan  = sfmt.PolicyMandatory
)

// AccessRightsRequest is sent by a PP to subscribe
type AccessRightsRequest struct {
	PortableIdentity   *sfmt.PortableIdentity
	AuthType           *sfmt.AuthType
	CipherInfo         *sfmt.CipherInfo
	SetupCapability    *sfmt.SetupCapability
	TerminalCapability *sfmt.TerminalCapability
	IWUToIWU           *sfmt.IWUToIWU
	ModelIdentifier    *sfmt.ModelIdentifier
	CodecList          *sfmt.CodecList
	Escape             *sfmt.EscapeToProprietary
}

var accessRightsRequestDesc = sfmt.NewMsgDesc("ACCESS-RIGHTS-REQUEST",
	sfmt.Desc(sfmt.IEPortableIdentity, pNone, pMan),
	sfmt.Desc(sfmt.IEAuthType, pNone, pOpt),
	sfmt.Desc(sfmt.IECipherInfo, pNone, pOpt),
	sfmt.Desc(sfmt.IESetupCapability, pNone, pOpt),
	sfmt.Desc(sfmt.IETerminalCapability, pNone, pOpt),
	sfmt.Desc(sfmt.IEIWUToIWU, pNone, pOpt),
	sfmt.Desc(sfmt.IEModelIdentifier, pNone, pOpt),
	sfmt.Desc(sfmt.IECodecList, pNone, pOpt),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pNone, pOpt),
)

func (m *AccessRightsRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.AuthType),
		sfmt.Ref(&m.CipherInfo),
		sfmt.Ref(&m.SetupCapability),
		sfmt.Ref(&m.TerminalCapability),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.ModelIdentifier),
		sfmt.Ref(&m.CodecList),
		sfmt.Ref(&m.Escape),
	}
}

// AccessRightsAccept grants access. FixedIdentity lists the PARKs the
// portable may use.
type AccessRightsAccept struct {
	PortableIdentity *sfmt.PortableIdentity
	FixedIdentity    sfmt.IEList
	LocationArea     *sfmt.LocationArea
	AuthType         *sfmt.AuthType
	CipherInfo       *sfmt.CipherInfo
	ZAP              *sfmt.ZAP
	ServiceClass     *sfmt.ServiceClass
	SetupCapability  *sfmt.SetupCapability
	ModelIdentifier  *sfmt.ModelIdentifier
	IWUToIWU         *sfmt.IWUToIWU
	CodecList        *sfmt.CodecList
	Escape           *sfmt.EscapeToProprietary
}

var accessRightsAcceptDesc = sfmt.NewMsgDesc("ACCESS-RIGHTS-ACCEPT",
	sfmt.Desc(sfmt.IEPortableIdentity, pMan, pNone),
	sfmt.Repeated(sfmt.IEFixedIdentity, pMan, pNone),
	sfmt.Desc(sfmt.IELocationArea, pOpt, pNone),
	sfmt.Desc(sfmt.IEAuthType, pOpt, pNone),
	sfmt.Desc(sfmt.IECipherInfo, pOpt, pNone),
	sfmt.Desc(sfmt.IEZAPField, pOpt, pNone),
	sfmt.Desc(sfmt.IEServiceClass, pOpt, pNone),
	sfmt.Desc(sfmt.IESetupCapability, pOpt, pNone),
	sfmt.Desc(sfmt.IEModelIdentifier, pOpt, pNone),
	sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pNone),
	sfmt.Desc(sfmt.IECodecList, pOpt, pNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pNone),
)

func (m *AccessRightsAccept) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.ListRef(&m.FixedIdentity),
		sfmt.ListRef(&m.FixedIdentity),
		sfmt.Ref(&m.LocationArea),
		sfmt.Ref(&m.AuthType),
		sfmt.Ref(&m.CipherInfo),
		sfmt.Ref(&m.ZAP),
		sfmt.Ref(&m.ServiceClass),
		sfmt.Ref(&m.SetupCapability),
		sfmt.Ref(&m.ModelIdentifier),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.CodecList),
		sfmt.Ref(&m.Escape),
	}
}

// Reject is the common shape of the MM reject messages
type Reject struct {
	RejectReason *sfmt.RejectReason
	Duration     *sfmt.Duration
	IWUToIWU     *sfmt.IWUToIWU
	Escape       *sfmt.EscapeToProprietary
}

func (m *Reject) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.RejectReason),
		sfmt.Ref(&m.Duration),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

func rejectDesc(name string, fpToPP, ppToFP bool) *sfmt.MsgDesc {
	pol := func(ok bool) sfmt.Policy {
		if ok {
			return pOpt
		}
		return pNone
	}
	fp, pp := pol(fpToPP), pol(ppToFP)
	return sfmt.NewMsgDesc(name,
		sfmt.Desc(sfmt.IERejectReason, fp, pp),
		sfmt.Desc(sfmt.IEDuration, fp, pp),
		sfmt.Desc(sfmt.IEIWUToIWU, fp, pp),
		sfmt.Desc(sfmt.IEEscapeToProprietary, fp, pp),
	)
}

var (
	accessRightsRejectDesc          = rejectDesc("ACCESS-RIGHTS-REJECT", true, false)
	accessRightsTerminateRejectDesc = rejectDesc("ACCESS-RIGHTS-TERMINATE-REJECT", true, true)
	authenticationRejectDesc        = rejectDesc("AUTHENTICATION-REJECT", true, true)
	cipherRejectDesc                = rejectDesc("CIPHER-REJECT", false, true)
	infoRejectDesc                  = rejectDesc("MM-INFO-REJECT", true, false)
	locateRejectDesc                = rejectDesc("LOCATE-REJECT", true, false)
	temporaryIdentityAssignRejDesc  = rejectDesc("TEMPORARY-IDENTITY-ASSIGN-REJ", false, true)
)

// Ack is the common shape of the MM messages carrying no parameters
type Ack struct {
	IWUToIWU *sfmt.IWUToIWU
	Escape   *sfmt.EscapeToProprietary
}

func (m *Ack) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

var (
	accessRightsTerminateAcceptDesc = sfmt.NewMsgDesc("ACCESS-RIGHTS-TERMINATE-ACCEPT",
		sfmt.Optional(sfmt.IEIWUToIWU),
		sfmt.Optional(sfmt.IEEscapeToProprietary),
	)
	temporaryIdentityAssignAckDesc = sfmt.NewMsgDesc("TEMPORARY-IDENTITY-ASSIGN-ACK",
		sfmt.Desc(sfmt.IEIWUToIWU, pNone, pOpt),
		sfmt.Desc(sfmt.IEEscapeToProprietary, pNone, pOpt),
	)
)

// AccessRightsTerminateRequest removes a subscription. Either side may send it.
type AccessRightsTerminateRequest struct {
	PortableIdentity *sfmt.PortableIdentity
	FixedIdentity    sfmt.IEList
	IWUToIWU         *sfmt.IWUToIWU
	Escape           *sfmt.EscapeToProprietary
}

var accessRightsTerminateRequestDesc = sfmt.NewMsgDesc("ACCESS-RIGHTS-TERMINATE-REQUEST",
	sfmt.Mandatory(sfmt.IEPortableIdentity),
	sfmt.Repeated(sfmt.IEFixedIdentity, pOpt, pOpt),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *AccessRightsTerminateRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.ListRef(&m.FixedIdentity),
		sfmt.ListRef(&m.FixedIdentity),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// AuthenticationRequest challenges the peer
type AuthenticationRequest struct {
	AuthType   *sfmt.AuthType
	RAND       *sfmt.RAND
	RS         *sfmt.RS
	CipherInfo *sfmt.CipherInfo
	IWUToIWU   *sfmt.IWUToIWU
	Escape     *sfmt.EscapeToProprietary
}

var authenticationRequestDesc = sfmt.NewMsgDesc("AUTHENTICATION-REQUEST",
	sfmt.Mandatory(sfmt.IEAuthType),
	sfmt.Mandatory(sfmt.IERAND),
	sfmt.Optional(sfmt.IERS),
	sfmt.Optional(sfmt.IECipherInfo),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *AuthenticationRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.AuthType),
		sfmt.Ref(&m.RAND),
		sfmt.Ref(&m.RS),
		sfmt.Ref(&m.CipherInfo),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// AuthenticationReply answers a challenge
type AuthenticationReply struct {
	RES          *sfmt.RES
	RS           *sfmt.RS
	ZAP          *sfmt.ZAP
	ServiceClass *sfmt.ServiceClass
	Key          *sfmt.Key
	IWUToIWU     *sfmt.IWUToIWU
	Escape       *sfmt.EscapeToProprietary
}

var authenticationReplyDesc = sfmt.NewMsgDesc("AUTHENTICATION-REPLY",
	sfmt.Mandatory(sfmt.IERES),
	sfmt.Desc(sfmt.IERS, pNone, pOpt),
	sfmt.Desc(sfmt.IEZAPField, pNone, pOpt),
	sfmt.Desc(sfmt.IEServiceClass, pNone, pOpt),
	sfmt.Desc(sfmt.IEKey, pNone, pOpt),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *AuthenticationReply) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.RES),
		sfmt.Ref(&m.RS),
		sfmt.Ref(&m.ZAP),
		sfmt.Ref(&m.ServiceClass),
		sfmt.Ref(&m.Key),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// CipherRequest asks the PP to switch ciphering
type CipherRequest struct {
	CipherInfo *sfmt.CipherInfo
	IWUToIWU   *sfmt.IWUToIWU
	Escape     *sfmt.EscapeToProprietary
}

var cipherRequestDesc = sfmt.NewMsgDesc("CIPHER-REQUEST",
	sfmt.Desc(sfmt.IECipherInfo, pMan, pNone),
	sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pNone),
)

func (m *CipherRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.CipherInfo),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// Detach announces that a PP goes away
type Detach struct {
	PortableIdentity    *sfmt.PortableIdentity
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	IWUToIWU            *sfmt.IWUToIWU
	Escape              *sfmt.EscapeToProprietary
}

var detachDesc = sfmt.NewMsgDesc("DETACH",
	sfmt.Desc(sfmt.IEPortableIdentity, pNone, pMan),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IEIWUToIWU, pNone, pOpt),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pNone, pOpt),
)

func (m *Detach) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// IdentityRequest asks the PP for one or more identities
type IdentityRequest struct {
	IdentityType     sfmt.IEList
	NetworkParameter *sfmt.NetworkParameter
	IWUToIWU         *sfmt.IWUToIWU
	Escape           *sfmt.EscapeToProprietary
}

var identityRequestDesc = sfmt.NewMsgDesc("IDENTITY-REQUEST",
	sfmt.Repeated(sfmt.IEIdentityType, pMan, pNone),
	sfmt.Desc(sfmt.IENetworkParameter, pOpt, pNone),
	sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pNone),
)

func (m *IdentityRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.ListRef(&m.IdentityType),
		sfmt.ListRef(&m.IdentityType),
		sfmt.Ref(&m.NetworkParameter),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// IdentityReply returns the requested identities
type IdentityReply struct {
	PortableIdentity    sfmt.IEList
	FixedIdentity       *sfmt.FixedIdentity
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	ModelIdentifier     *sfmt.ModelIdentifier
	IWUToIWU            *sfmt.IWUToIWU
	Escape              *sfmt.EscapeToProprietary
}

var identityReplyDesc = sfmt.NewMsgDesc("IDENTITY-REPLY",
	sfmt.Repeated(sfmt.IEPortableIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IEFixedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IEModelIdentifier, pNone, pOpt),
	sfmt.Desc(sfmt.IEIWUToIWU, pNone, pOpt),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pNone, pOpt),
)

func (m *IdentityReply) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.ListRef(&m.PortableIdentity),
		sfmt.ListRef(&m.PortableIdentity),
		sfmt.Ref(&m.FixedIdentity),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.ModelIdentifier),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// LocateRequest updates the location of a PP
type LocateRequest struct {
	PortableIdentity    *sfmt.PortableIdentity
	FixedIdentity       *sfmt.FixedIdentity
	LocationArea        *sfmt.LocationArea
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	CipherInfo          *sfmt.CipherInfo
	SetupCapability     *sfmt.SetupCapability
	TerminalCapability  *sfmt.TerminalCapability
	IWUToIWU            *sfmt.IWUToIWU
	ModelIdentifier     *sfmt.ModelIdentifier
	CodecList           *sfmt.CodecList
	Escape              *sfmt.EscapeToProprietary
}

var locateRequestDesc = sfmt.NewMsgDesc("LOCATE-REQUEST",
	sfmt.Desc(sfmt.IEPortableIdentity, pNone, pMan),
	sfmt.Desc(sfmt.IEFixedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IELocationArea, pNone, pOpt),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IECipherInfo, pNone, pOpt),
	sfmt.Desc(sfmt.IESetupCapability, pNone, pOpt),
	sfmt.Desc(sfmt.IETerminalCapability, pNone, pOpt),
	sfmt.Desc(sfmt.IEIWUToIWU, pNone, pOpt),
	sfmt.Desc(sfmt.IEModelIdentifier, pNone, pOpt),
	sfmt.Desc(sfmt.IECodecList, pNone, pOpt),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pNone, pOpt),
)

func (m *LocateRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.FixedIdentity),
		sfmt.Ref(&m.LocationArea),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.CipherInfo),
		sfmt.Ref(&m.SetupCapability),
		sfmt.Ref(&m.TerminalCapability),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.ModelIdentifier),
		sfmt.Ref(&m.CodecList),
		sfmt.Ref(&m.Escape),
	}
}

// LocateAccept confirms a location update. A TPUI in PortableIdentity
// assigns a new identity that the PP acknowledges.
type LocateAccept struct {
	PortableIdentity    *sfmt.PortableIdentity
	LocationArea        *sfmt.LocationArea
	UseTPUI             *sfmt.UseTPUI
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	SetupCapability     *sfmt.SetupCapability
	Duration            *sfmt.Duration
	IWUToIWU            *sfmt.IWUToIWU
	ModelIdentifier     *sfmt.ModelIdentifier
	CodecList           *sfmt.CodecList
	Escape              *sfmt.EscapeToProprietary
}

var locateAcceptDesc = sfmt.NewMsgDesc("LOCATE-ACCEPT",
	sfmt.Desc(sfmt.IEPortableIdentity, pMan, pNone),
	sfmt.Desc(sfmt.IELocationArea, pMan, pNone),
	sfmt.Desc(sfmt.IEUseTPUI, pOpt, pNone),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, pOpt, pNone),
	sfmt.Desc(sfmt.IESetupCapability, pOpt, pNone),
	sfmt.Desc(sfmt.IEDuration, pOpt, pNone),
	sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pNone),
	sfmt.Desc(sfmt.IEModelIdentifier, pOpt, pNone),
	sfmt.Desc(sfmt.IECodecList, pOpt, pNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pNone),
)

func (m *LocateAccept) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.LocationArea),
		sfmt.Ref(&m.UseTPUI),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.SetupCapability),
		sfmt.Ref(&m.Duration),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.ModelIdentifier),
		sfmt.Ref(&m.CodecList),
		sfmt.Ref(&m.Escape),
	}
}

// TemporaryIdentityAssign hands a PP a new identity
type TemporaryIdentityAssign struct {
	PortableIdentity    *sfmt.PortableIdentity
	LocationArea        *sfmt.LocationArea
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	Duration            *sfmt.Duration
	NetworkParameter    *sfmt.NetworkParameter
	IWUToIWU            *sfmt.IWUToIWU
	Escape              *sfmt.EscapeToProprietary
}

var temporaryIdentityAssignDesc = sfmt.NewMsgDesc("TEMPORARY-IDENTITY-ASSIGN",
	sfmt.Desc(sfmt.IEPortableIdentity, pOpt, pNone),
	sfmt.Desc(sfmt.IELocationArea, pOpt, pNone),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, pOpt, pNone),
	sfmt.Desc(sfmt.IEDuration, pOpt, pNone),
	sfmt.Desc(sfmt.IENetworkParameter, pOpt, pNone),
	sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pNone),
)

func (m *TemporaryIdentityAssign) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.LocationArea),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.Duration),
		sfmt.Ref(&m.NetworkParameter),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// InfoRequest retrieves network parameters
type InfoRequest struct {
	InfoType            *sfmt.InfoType
	PortableIdentity    *sfmt.PortableIdentity
	FixedIdentity       *sfmt.FixedIdentity
	LocationArea        *sfmt.LocationArea
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	NetworkParameter    *sfmt.NetworkParameter
	IWUToIWU            *sfmt.IWUToIWU
	Escape              *sfmt.EscapeToProprietary
}

var infoRequestDesc = sfmt.NewMsgDesc("MM-INFO-REQUEST",
	sfmt.Desc(sfmt.IEInfoType, pNone, pMan),
	sfmt.Desc(sfmt.IEPortableIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IEFixedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IELocationArea, pNone, pOpt),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, pNone, pOpt),
	sfmt.Desc(sfmt.IENetworkParameter, pNone, pOpt),
	sfmt.Desc(sfmt.IEIWUToIWU, pNone, pOpt),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pNone, pOpt),
)

func (m *InfoRequest) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.InfoType),
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.FixedIdentity),
		sfmt.Ref(&m.LocationArea),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.NetworkParameter),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// InfoAccept supplies the requested parameters
type InfoAccept struct {
	InfoType         *sfmt.InfoType
	FixedIdentity    sfmt.IEList
	LocationArea     *sfmt.LocationArea
	NetworkParameter *sfmt.NetworkParameter
	Duration         *sfmt.Duration
	IWUToIWU         *sfmt.IWUToIWU
	Escape           *sfmt.EscapeToProprietary
}

var infoAcceptDesc = sfmt.NewMsgDesc("MM-INFO-ACCEPT",
	sfmt.Desc(sfmt.IEInfoType, pOpt, pNone),
	sfmt.Repeated(sfmt.IEFixedIdentity, pOpt, pNone),
	sfmt.Desc(sfmt.IELocationArea, pOpt, pNone),
	sfmt.Desc(sfmt.IENetworkParameter, pOpt, pNone),
	sfmt.Desc(sfmt.IEDuration, pOpt, pNone),
	sfmt.Desc(sfmt.IEIWUToIWU, pOpt, pNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, pOpt, pNone),
)

func (m *InfoAccept) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.InfoType),
		sfmt.ListRef(&m.FixedIdentity),
		sfmt.ListRef(&m.FixedIdentity),
		sfmt.Ref(&m.LocationArea),
		sfmt.Ref(&m.NetworkParameter),
		sfmt.Ref(&m.Duration),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}
