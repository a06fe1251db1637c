//Package protocol implements the LLP wire format spoken between the miner
// and a coordinator node: packet framing, the opcode catalog and the
// per-message payload layouts.
package protocol

import "fmt"

// The opcode space is split in three disjoint classes. Data opcodes carry a
// 32-bit big-endian length followed by that many payload bytes. Request
// opcodes are a single byte on the wire. Response opcodes use the same
// length-prefixed form as data opcodes but may be empty.
const (
	dataOpcodeEnd    = 0x80
	requestOpcodeEnd = 0xC8
)

const (
	//OpBlockData carries a work template from the node
	OpBlockData byte = 0x00
	//OpSubmitBlock carries a legacy 72-byte block submission
	OpSubmitBlock byte = 0x01
	//OpBlockHeight broadcasts the node's best height
	OpBlockHeight byte = 0x02
	//OpSetChannel selects the mining channel; echoed by the node as an ack
	OpSetChannel byte = 0x03
	//OpSignedSubmit carries a block submission wrapped in a signature envelope
	OpSignedSubmit byte = 0x07
	//OpLogin is the reserved zero-length session marker, the only data
	// opcode valid with an empty payload
	OpLogin byte = 0x08

	//OpGetBlock requests a fresh work template
	OpGetBlock byte = 0x81
	//OpNewBlock notifies that the chain advanced and outstanding work is stale
	OpNewBlock byte = 0x82
	//OpGetHeight requests the node's best height
	OpGetHeight byte = 0x83
	//OpPing is a keepalive, echoed by the receiver
	OpPing byte = 0xBD
	//OpClose asks the peer to drop the connection
	OpClose byte = 0xBE

	//OpAccept acknowledges an accepted submission
	OpAccept byte = 0xC8
	//OpReject refuses a submission
	OpReject byte = 0xC9
	//OpBlock answers OpGetBlock with a work template; an empty payload
	// means the node had no work to hand out
	OpBlock byte = 0xCA
	//OpStale refuses a submission built on superseded work
	OpStale byte = 0xCB
	//OpAuth carries the operator credential towards the node
	OpAuth byte = 0xD2
	//OpAuthResult carries the node's authentication verdict
	OpAuthResult byte = 0xD3
)

//IsData reports whether op is a data-class opcode
func IsData(op byte) bool { return op < dataOpcodeEnd }

//IsRequest reports whether op is a request-class opcode
func IsRequest(op byte) bool { return op >= dataOpcodeEnd && op < requestOpcodeEnd }

//IsResponse reports whether op is a response-class opcode
func IsResponse(op byte) bool { return op >= requestOpcodeEnd }

//OpcodeNames maps opcodes to readable names for logging and diagnostics
var OpcodeNames = map[byte]string{
	OpBlockData:    "BLOCK_DATA",
	OpSubmitBlock:  "SUBMIT_BLOCK",
	OpBlockHeight:  "BLOCK_HEIGHT",
	OpSetChannel:   "SET_CHANNEL",
	OpSignedSubmit: "SIGNED_SUBMIT",
	OpLogin:        "LOGIN",
	OpGetBlock:     "GET_BLOCK",
	OpNewBlock:     "NEW_BLOCK",
	OpGetHeight:    "GET_HEIGHT",
	OpPing:         "PING",
	OpClose:        "CLOSE",
	OpAccept:       "ACCEPT",
	OpReject:       "REJECT",
	OpBlock:        "BLOCK",
	OpStale:        "STALE",
	OpAuth:         "AUTH",
	OpAuthResult:   "AUTH_RESULT",
}

//OpcodeName returns a readable name for op, or a hex form for unknown values
func OpcodeName(op byte) string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", op)
}
