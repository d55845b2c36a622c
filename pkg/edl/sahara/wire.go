// Package sahara implements the PBL-level handshake: hello, device
// identification, 32/64-bit loader upload, command-mode queries, and safe
// mode exits (§4.2).
package sahara

import "encoding/binary"

// Command ids (§4.2 / §6).
const (
	CmdHello         uint32 = 0x01
	CmdHelloResp     uint32 = 0x02
	CmdReadData32    uint32 = 0x03
	CmdEndImageTx    uint32 = 0x04
	CmdDone          uint32 = 0x05
	CmdDoneResp      uint32 = 0x06
	CmdReset         uint32 = 0x07
	CmdCmdReady      uint32 = 0x0B
	CmdSwitchMode    uint32 = 0x0C
	CmdExec          uint32 = 0x0D
	CmdExecResp      uint32 = 0x0E
	CmdExecData      uint32 = 0x0F
	CmdReadData64    uint32 = 0x12
)

// Mode values sent in HelloResp/CmdSwitchMode.
const (
	ModeImageTxPending uint32 = 0x0
	ModeImageTxComplete uint32 = 0x1
	ModeMemoryDebug    uint32 = 0x2
	ModeCommand        uint32 = 0x3
)

// Done/DoneResp status codes (§4.2 step 6).
const (
	StatusSuccess uint32 = 0x0
)

// Exec command ids used for SerialNumRead/MsmHwIdRead/OemPkHashRead.
const (
	ExecSerialNumRead  uint32 = 0x1
	ExecMsmHwIdRead    uint32 = 0x2
	ExecOemPkHashRead  uint32 = 0x3
)

// header is the fixed 8-byte little-endian {command, length} prefix every
// Sahara packet starts with (§4.2, §6).
type header struct {
	Command uint32
	Length  uint32
}

const headerSize = 8

func encodeHeader(cmd, length uint32) []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:4], cmd)
	binary.LittleEndian.PutUint32(b[4:8], length)
	return b
}

func decodeHeader(b []byte) (header, bool) {
	if len(b) < headerSize {
		return header{}, false
	}
	return header{
		Command: binary.LittleEndian.Uint32(b[0:4]),
		Length:  binary.LittleEndian.Uint32(b[4:8]),
	}, true
}

// Hello is the 48-byte packet the device sends first (§6).
type Hello struct {
	Version        uint32
	VersionSupported uint32
	MaxCmdPacketSize uint32
	Mode           uint32
}

const helloPacketSize = 48

func decodeHello(b []byte) (Hello, bool) {
	if len(b) < helloPacketSize {
		return Hello{}, false
	}
	return Hello{
		Version:          binary.LittleEndian.Uint32(b[8:12]),
		VersionSupported: binary.LittleEndian.Uint32(b[12:16]),
		MaxCmdPacketSize: binary.LittleEndian.Uint32(b[16:20]),
		Mode:             binary.LittleEndian.Uint32(b[20:24]),
	}, true
}

// encodeHelloResp builds the 48-byte HelloResp packet.
func encodeHelloResp(version, versionSupported, maxPacketSize, mode uint32) []byte {
	b := encodeHeader(CmdHelloResp, helloPacketSize)
	body := make([]byte, helloPacketSize-headerSize)
	binary.LittleEndian.PutUint32(body[0:4], version)
	binary.LittleEndian.PutUint32(body[4:8], versionSupported)
	binary.LittleEndian.PutUint32(body[8:12], 0) // status
	binary.LittleEndian.PutUint32(body[12:16], mode)
	// Remaining six reserved fields left zero.
	return append(b, body...)
}

// readData32 is the 20-byte ReadData32 request (§6).
type readData32 struct {
	Image  uint32
	Offset uint32
	Length uint32
}

func decodeReadData32(b []byte) (readData32, bool) {
	if len(b) < 20 {
		return readData32{}, false
	}
	return readData32{
		Image:  binary.LittleEndian.Uint32(b[8:12]),
		Offset: binary.LittleEndian.Uint32(b[12:16]),
		Length: binary.LittleEndian.Uint32(b[16:20]),
	}, true
}

// readData64 is the 32-byte ReadData64 request (§6).
type readData64 struct {
	Image  uint64
	Offset uint64
	Length uint64
}

func decodeReadData64(b []byte) (readData64, bool) {
	if len(b) < 32 {
		return readData64{}, false
	}
	return readData64{
		Image:  binary.LittleEndian.Uint64(b[8:16]),
		Offset: binary.LittleEndian.Uint64(b[16:24]),
		Length: binary.LittleEndian.Uint64(b[24:32]),
	}, true
}

// endImageTx is the 16-byte EndImageTx payload (§6).
type endImageTx struct {
	ImageID uint32
	Status  uint32
}

func decodeEndImageTx(b []byte) (endImageTx, bool) {
	if len(b) < 16 {
		return endImageTx{}, false
	}
	return endImageTx{
		ImageID: binary.LittleEndian.Uint32(b[8:12]),
		Status:  binary.LittleEndian.Uint32(b[12:16]),
	}, true
}

func encodeDone() []byte {
	return encodeHeader(CmdDone, 8)
}

// doneResp is the 12-byte DoneResp payload (§6).
type doneResp struct {
	Status uint32
}

func decodeDoneResp(b []byte) (doneResp, bool) {
	if len(b) < 12 {
		return doneResp{}, false
	}
	return doneResp{Status: binary.LittleEndian.Uint32(b[8:12])}, true
}

// encodeSwitchMode is the 12-byte CmdSwitchMode payload (§6).
func encodeSwitchMode(mode uint32) []byte {
	b := encodeHeader(CmdSwitchMode, 12)
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, mode)
	return append(b, body...)
}

func encodeExecCmd(cmdID uint32) []byte {
	b := encodeHeader(CmdExec, 12)
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, cmdID)
	return append(b, body...)
}

// execResp carries the offset/length of the response payload to fetch via
// CmdExecData.
type execResp struct {
	CmdID  uint32
	Offset uint32
	Length uint32
}

func decodeExecResp(b []byte) (execResp, bool) {
	if len(b) < 20 {
		return execResp{}, false
	}
	return execResp{
		CmdID:  binary.LittleEndian.Uint32(b[8:12]),
		Offset: binary.LittleEndian.Uint32(b[12:16]),
		Length: binary.LittleEndian.Uint32(b[16:20]),
	}, true
}

func encodeExecData(cmdID uint32) []byte {
	b := encodeHeader(CmdExecData, 12)
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, cmdID)
	return append(b, body...)
}

func encodeReset() []byte {
	return encodeHeader(CmdReset, 8)
}
