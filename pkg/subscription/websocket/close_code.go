package websocket

import (
	"unicode/utf8"

	"github.com/gobwas/ws"
)

// CloseCode is a websocket close status code.
type CloseCode uint16

const (
	// CloseCodeNone closes the socket without sending a close frame.
	CloseCodeNone                CloseCode = 0
	CloseCodeNormalClosure       CloseCode = CloseCode(ws.StatusNormalClosure)
	CloseCodeEndpointUnavailable CloseCode = CloseCode(ws.StatusGoingAway)
	CloseCodeProtocolError       CloseCode = CloseCode(ws.StatusProtocolError)
	CloseCodeInvalidMessageType  CloseCode = CloseCode(ws.StatusUnsupportedData)
	CloseCodeInvalidPayloadData  CloseCode = CloseCode(ws.StatusInvalidFramePayloadData)
	CloseCodePolicyViolation     CloseCode = CloseCode(ws.StatusPolicyViolation)
	CloseCodeMessageTooBig       CloseCode = CloseCode(ws.StatusMessageTooBig)
	CloseCodeMandatoryExtension  CloseCode = CloseCode(ws.StatusMandatoryExt)
	CloseCodeInternalServerError CloseCode = CloseCode(ws.StatusInternalServerError)
)

// maxCloseReasonLength is the control frame payload limit minus the status code.
const maxCloseReasonLength = 123

func (c CloseCode) String() string {
	switch c {
	case CloseCodeNone:
		return "None"
	case CloseCodeNormalClosure:
		return "NormalClosure"
	case CloseCodeEndpointUnavailable:
		return "EndpointUnavailable"
	case CloseCodeProtocolError:
		return "ProtocolError"
	case CloseCodeInvalidMessageType:
		return "InvalidMessageType"
	case CloseCodeInvalidPayloadData:
		return "InvalidPayloadData"
	case CloseCodePolicyViolation:
		return "PolicyViolation"
	case CloseCodeMessageTooBig:
		return "MessageTooBig"
	case CloseCodeMandatoryExtension:
		return "MandatoryExtension"
	case CloseCodeInternalServerError:
		return "InternalServerError"
	default:
		return "Unknown"
	}
}

// truncateCloseReason cuts the reason to fit a close frame without splitting
// a multi-byte rune.
func truncateCloseReason(reason string) string {
	if len(reason) <= maxCloseReasonLength {
		return reason
	}
	end := maxCloseReasonLength
	for end > 0 && !utf8.RuneStart(reason[end]) {
		end--
	}
	return reason[:end]
}
