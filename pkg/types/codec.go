package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// raft log entries use a small protobuf envelope:
//
//	1: command type (varint)
//	2: command body (bytes, JSON)
//	3: leader timestamp in unix nanos (fixed64), absent when zero
const (
	fieldType protowire.Number = 1
	fieldBody protowire.Number = 2
	fieldAt   protowire.Number = 3
)

var ErrMalformedCommand = errors.New("malformed command envelope")

// encodes a command and the time it was accepted at
func EncodeCommand(cmd Command, at time.Time) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", ErrMalformedCommand)
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", cmd.Type(), err)
	}

	b := make([]byte, 0, len(body)+16)
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cmd.Type()))
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, body)
	if !at.IsZero() {
		b = protowire.AppendTag(b, fieldAt, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(at.UnixNano()))
	}
	return b, nil
}

// decodes an envelope produced by EncodeCommand
func DecodeCommand(data []byte) (Command, time.Time, error) {
	var (
		typ  CommandType
		body []byte
		at   time.Time
	)

	for len(data) > 0 {
		num, wt, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, time.Time{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && wt == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			typ = CommandType(v)
		case num == fieldBody && wt == protowire.BytesType:
			body, n = protowire.ConsumeBytes(data)
		case num == fieldAt && wt == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(data)
			at = time.Unix(0, int64(v)).UTC()
		default:
			//unknown fields are skipped so newer leaders can add fields
			n = protowire.ConsumeFieldValue(num, wt, data)
		}
		if n < 0 {
			return nil, time.Time{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
		}
		data = data[n:]
	}

	cmd, err := decodeBody(typ, body)
	if err != nil {
		return nil, time.Time{}, err
	}
	return cmd, at, nil
}

func decodeBody(typ CommandType, body []byte) (Command, error) {
	switch typ {
	case CommandTypeList:
		return unmarshalCommand[ListCmd](body)
	case CommandTypeListMany:
		return unmarshalCommand[ListManyCmd](body)
	case CommandTypeRent:
		return unmarshalCommand[RentCmd](body)
	case CommandTypeRentMany:
		return unmarshalCommand[RentManyCmd](body)
	case CommandTypeReturn:
		return unmarshalCommand[ReturnCmd](body)
	case CommandTypeReturnMany:
		return unmarshalCommand[ReturnManyCmd](body)
	case CommandTypeClaim:
		return unmarshalCommand[ClaimCmd](body)
	case CommandTypeClaimMany:
		return unmarshalCommand[ClaimManyCmd](body)
	case CommandTypeDelist:
		return unmarshalCommand[DelistCmd](body)
	case CommandTypeDelistMany:
		return unmarshalCommand[DelistManyCmd](body)
	case CommandTypeMintAsset:
		return unmarshalCommand[MintAssetCmd](body)
	case CommandTypeSetApproval:
		return unmarshalCommand[SetApprovalCmd](body)
	case CommandTypeFaucet:
		return unmarshalCommand[FaucetCmd](body)
	case CommandTypeApprovePayment:
		return unmarshalCommand[ApprovePaymentCmd](body)
	default:
		return nil, fmt.Errorf("%w: unknown command type %d", ErrMalformedCommand, typ)
	}
}

func unmarshalCommand[T Command](body []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(body, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return cmd, nil
}
