package net

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"skoll/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	NewQuote
)

type ReportType uint8

const (
	OrderAck ReportType = iota
	ExecutionReport
	RejectReport
	QuoteAck
)

type Message interface {
	GetType() MessageType
}

type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

const (
	baseHeaderLen        = 2
	newOrderFixedLen     = 1 + 1 + 8 + 8
	cancelOrderFixedLen  = 8
	newQuoteFixedLen     = 8 + 8 + 8 + 8
	reportFixedHeaderLen = 1 + 8 + 8 + 8 + 8 + 2
)

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < baseHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case NewQuote:
		return parseNewQuote(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// readString consumes a uint8 length-prefixed string.
func readString(msg []byte) (string, []byte, error) {
	if len(msg) < 1 {
		return "", nil, ErrMessageTooShort
	}
	n := int(msg[0])
	if len(msg) < 1+n {
		return "", nil, ErrMessageTooShort
	}
	return string(msg[1 : 1+n]), msg[1+n:], nil
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, uint8(len(s)))
	return append(buf, s...)
}

type NewOrderMessage struct {
	BaseMessage
	Side          common.Side // 1 byte
	Market        bool        // 1 byte
	Price         int64       // 8 bytes, scaled
	Quantity      uint64      // 8 bytes
	Instrument    string      // len-prefixed
	ClientOrderID string      // len-prefixed
}

func parseNewOrder(msg []byte) (*NewOrderMessage, error) {
	if len(msg) < newOrderFixedLen {
		return nil, ErrMessageTooShort
	}
	m := &NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.Side = common.Side(msg[0])
	m.Market = msg[1] != 0
	m.Price = int64(binary.BigEndian.Uint64(msg[2:10]))
	m.Quantity = binary.BigEndian.Uint64(msg[10:18])

	var err error
	if m.Instrument, msg, err = readString(msg[18:]); err != nil {
		return nil, err
	}
	if m.ClientOrderID, _, err = readString(msg); err != nil {
		return nil, err
	}
	// The wire may leave the client order id empty; mint one so
	// execution reports always carry a handle the client can keep.
	if m.ClientOrderID == "" {
		m.ClientOrderID = uuid.New().String()
	}
	return m, nil
}

func (m *NewOrderMessage) Serialize() []byte {
	buf := make([]byte, baseHeaderLen+newOrderFixedLen, baseHeaderLen+newOrderFixedLen+2+len(m.Instrument)+len(m.ClientOrderID))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(m.Side)
	if m.Market {
		buf[3] = 1
	}
	binary.BigEndian.PutUint64(buf[4:12], uint64(m.Price))
	binary.BigEndian.PutUint64(buf[12:20], m.Quantity)
	buf = appendString(buf, m.Instrument)
	return appendString(buf, m.ClientOrderID)
}

type CancelOrderMessage struct {
	BaseMessage
	ExchangeID int64 // 8 bytes
}

func parseCancelOrder(msg []byte) (*CancelOrderMessage, error) {
	if len(msg) < cancelOrderFixedLen {
		return nil, ErrMessageTooShort
	}
	return &CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		ExchangeID:  int64(binary.BigEndian.Uint64(msg[0:8])),
	}, nil
}

func (m *CancelOrderMessage) Serialize() []byte {
	buf := make([]byte, baseHeaderLen+cancelOrderFixedLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], uint64(m.ExchangeID))
	return buf
}

type NewQuoteMessage struct {
	BaseMessage
	BidPrice    int64  // 8 bytes, scaled
	BidQuantity uint64 // 8 bytes
	AskPrice    int64  // 8 bytes, scaled
	AskQuantity uint64 // 8 bytes
	Instrument  string // len-prefixed
	QuoteID     string // len-prefixed
}

func parseNewQuote(msg []byte) (*NewQuoteMessage, error) {
	if len(msg) < newQuoteFixedLen {
		return nil, ErrMessageTooShort
	}
	m := &NewQuoteMessage{BaseMessage: BaseMessage{TypeOf: NewQuote}}
	m.BidPrice = int64(binary.BigEndian.Uint64(msg[0:8]))
	m.BidQuantity = binary.BigEndian.Uint64(msg[8:16])
	m.AskPrice = int64(binary.BigEndian.Uint64(msg[16:24]))
	m.AskQuantity = binary.BigEndian.Uint64(msg[24:32])

	var err error
	if m.Instrument, msg, err = readString(msg[32:]); err != nil {
		return nil, err
	}
	if m.QuoteID, _, err = readString(msg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *NewQuoteMessage) Serialize() []byte {
	buf := make([]byte, baseHeaderLen+newQuoteFixedLen, baseHeaderLen+newQuoteFixedLen+2+len(m.Instrument)+len(m.QuoteID))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewQuote))
	binary.BigEndian.PutUint64(buf[2:10], uint64(m.BidPrice))
	binary.BigEndian.PutUint64(buf[10:18], m.BidQuantity)
	binary.BigEndian.PutUint64(buf[18:26], uint64(m.AskPrice))
	binary.BigEndian.PutUint64(buf[26:34], m.AskQuantity)
	buf = appendString(buf, m.Instrument)
	return appendString(buf, m.QuoteID)
}

// Report is the single wire shape for everything the server sends
// back: acks, fills and rejections.
type Report struct {
	TypeOf     ReportType // 1 byte
	ExchangeID int64      // 8 bytes
	ExecID     int64      // 8 bytes
	Price      int64      // 8 bytes, scaled
	Quantity   uint64     // 8 bytes
	ReasonLen  uint16     // 2 bytes
	Instrument string     // len-prefixed
	Reason     string     // n bytes
}

func (r *Report) Serialize() []byte {
	r.ReasonLen = uint16(len(r.Reason))
	buf := make([]byte, reportFixedHeaderLen, reportFixedHeaderLen+1+len(r.Instrument)+len(r.Reason))
	buf[0] = byte(r.TypeOf)
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.ExchangeID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.ExecID))
	binary.BigEndian.PutUint64(buf[17:25], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[25:33], r.Quantity)
	binary.BigEndian.PutUint16(buf[33:35], r.ReasonLen)
	buf = appendString(buf, r.Instrument)
	return append(buf, r.Reason...)
}

func ParseReport(msg []byte) (Report, error) {
	if len(msg) < reportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}
	r := Report{
		TypeOf:     ReportType(msg[0]),
		ExchangeID: int64(binary.BigEndian.Uint64(msg[1:9])),
		ExecID:     int64(binary.BigEndian.Uint64(msg[9:17])),
		Price:      int64(binary.BigEndian.Uint64(msg[17:25])),
		Quantity:   binary.BigEndian.Uint64(msg[25:33]),
		ReasonLen:  binary.BigEndian.Uint16(msg[33:35]),
	}
	var err error
	rest := msg[reportFixedHeaderLen:]
	if r.Instrument, rest, err = readString(rest); err != nil {
		return Report{}, err
	}
	if len(rest) < int(r.ReasonLen) {
		return Report{}, ErrMessageTooShort
	}
	r.Reason = string(rest[:r.ReasonLen])
	return r, nil
}
