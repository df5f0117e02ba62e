package plm

import (
	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/insteon"
)

// Serial protocol framing bytes
const (
	stx = 0x02
	ack = 0x06
	nak = 0x15
)

// Modem commands
const (
	cmdGetIMInfo         = 0x60
	cmdSendMessage       = 0x62
	cmdStartAllLinking   = 0x64
	cmdCancelAllLinking  = 0x65
	cmdGetFirstAllLink   = 0x69
	cmdGetNextAllLink    = 0x6A
	cmdManageAllLinkRecs = 0x6F
)

// Modem-originated messages
const (
	msgStandardReceived  = 0x50
	msgExtendedReceived  = 0x51
	msgX10Received       = 0x52
	msgAllLinkCompleted  = 0x53
	msgButtonEvent       = 0x54
	msgUserReset         = 0x55
	msgCleanupFailure    = 0x56
	msgAllLinkRecord     = 0x57
	msgCleanupStatus     = 0x58
	msgExtendedFlag      = 0x10
	maxMessageLen        = 25
	sendStandardEchoLen  = 9
	sendExtendedEchoLen  = 23
	extendedPayloadBytes = 14
)

// Manage All-Link record control codes (0x6F)
const (
	manageFindFirst      = 0x00
	manageFindNext       = 0x01
	manageAddController  = 0x40
	manageAddResponder   = 0x41
	manageDeleteFirstHit = 0x80
)

// All-Link start codes (0x64) and completion codes (0x53)
const (
	linkCodeResponder  = 0x00
	linkCodeController = 0x01
	linkCodeAuto       = 0x03
	linkCodeDelete     = 0xFF
)

// Record flag bits shared by modem and device link tables
const (
	flagInUse      = 0x80
	flagController = 0x40
	flagHighWater  = 0x02
	flagReserved   = 0x20
)

// Insteon message flags and commands used for remote link tables
const (
	insteonExtendedDirect = 0x1F
	insteonStandardDirect = 0x0F
	insteonAckMask        = 0xE0
	insteonDirectAck      = 0x20
	insteonDirectNak      = 0xA0

	cmdReadWriteALDB    = 0x2F
	cmdEnterLinkingMode = 0x09

	aldbRequest  = 0x00
	aldbResponse = 0x01
	aldbWrite    = 0x02

	aldbRecordSize  = 8
	aldbFirstRecord = 0x0FFF
)

var messageLens = map[byte]int{
	msgStandardReceived:  11,
	msgExtendedReceived:  25,
	msgX10Received:       4,
	msgAllLinkCompleted:  10,
	msgButtonEvent:       3,
	msgUserReset:         2,
	msgCleanupFailure:    7,
	msgAllLinkRecord:     10,
	msgCleanupStatus:     3,
	cmdGetIMInfo:         9,
	cmdStartAllLinking:   5,
	cmdCancelAllLinking:  3,
	cmdGetFirstAllLink:   3,
	cmdGetNextAllLink:    3,
	cmdManageAllLinkRecs: 12,
}

// messageLen returns the full length of the message starting in buf. It
// returns 0 when more bytes are needed to know, and false for unknown
// commands.
func messageLen(buf []byte) (int, bool) {
	if buf[1] == cmdSendMessage {
		if len(buf) < 6 {
			return 0, true
		}
		if buf[5]&msgExtendedFlag != 0 {
			return sendExtendedEchoLen, true
		}
		return sendStandardEchoLen, true
	}
	n, ok := messageLens[buf[1]]
	return n, ok
}

// parser splits the modem byte stream into messages.
type parser struct {
	buf []byte
}

// feed consumes one byte and returns a complete message when one ends. A
// bare NAK outside a message means the modem was busy and is returned as a
// one-byte message.
func (p *parser) feed(b byte) []byte {
	if len(p.buf) == 0 {
		switch b {
		case stx:
			p.buf = append(p.buf, b)
		case nak:
			return []byte{nak}
		default:
			log.Debug().Uint8("byte", b).Msg("PLM discarding byte outside message")
		}
		return nil
	}

	p.buf = append(p.buf, b)
	n, ok := messageLen(p.buf)
	if !ok {
		log.Warn().Uint8("command", p.buf[1]).Msg("PLM unknown message, resynchronizing")
		p.buf = p.buf[:0]
		return nil
	}
	if n == 0 || len(p.buf) < n {
		return nil
	}

	msg := make([]byte, len(p.buf))
	copy(msg, p.buf)
	p.buf = p.buf[:0]
	return msg
}

// recordFlags encodes the flags byte of a link record.
func recordFlags(r insteon.LinkRecord) byte {
	flags := byte(flagReserved | flagHighWater)
	if !r.Deleted {
		flags |= flagInUse
	}
	if r.IsController {
		flags |= flagController
	}
	return flags
}

// decodeRecord reads flags, group, address and data bytes.
func decodeRecord(b []byte) insteon.LinkRecord {
	return insteon.LinkRecord{
		IsController:  b[0]&flagController != 0,
		Deleted:       b[0]&flagInUse == 0,
		Group:         b[1],
		DestinationID: insteon.ID{b[2], b[3], b[4]},
		Data1:         b[5],
		Data2:         b[6],
		Data3:         b[7],
	}
}

// encodeRecord is the inverse of decodeRecord.
func encodeRecord(r insteon.LinkRecord) []byte {
	id := r.DestinationID
	return []byte{recordFlags(r), r.Group, id[0], id[1], id[2], r.Data1, r.Data2, r.Data3}
}

// extendedMessage builds a 0x62 extended direct message to id. d holds up to
// 13 user data bytes; D14 is the checksum.
func extendedMessage(id insteon.ID, cmd1, cmd2 byte, d []byte) []byte {
	var data [extendedPayloadBytes]byte
	copy(data[:13], d)
	data[13] = checksum(cmd1, cmd2, data[:13])

	msg := []byte{stx, cmdSendMessage, id[0], id[1], id[2], insteonExtendedDirect, cmd1, cmd2}
	return append(msg, data[:]...)
}

// checksum is the two's complement of the sum of cmd1, cmd2 and D1 to D13.
func checksum(cmd1, cmd2 byte, d []byte) byte {
	sum := cmd1 + cmd2
	for _, b := range d {
		sum += b
	}
	return ^sum + 1
}

// senderOf returns the source address of a 0x50 or 0x51 message.
func senderOf(msg []byte) insteon.ID {
	return insteon.ID{msg[2], msg[3], msg[4]}
}
