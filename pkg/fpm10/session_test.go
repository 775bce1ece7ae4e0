package fpm10

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/fpm10-driver/pkg/wire"
)

func TestOpenSucceedsOnValidHandshake(t *testing.T) {
	verifyAck := frame(wire.DefaultAddress, byte(wire.TypeAck), []byte{byte(CodeOK)})
	sysParamPayload := []byte{
		byte(CodeOK),
		0x00, 0x00,
		0x00, 0xFF,
		0x01, 0x90, // capacity 400
		0x00, 0x00,
		0xAA, 0xBB, 0xCC, 0xDD,
		0x00, 0x01, // pkt value 1 -> 64
		0x00, 0x06, // baud 57600
	}
	sysParamAck := frame(wire.DefaultAddress, byte(wire.TypeAck), sysParamPayload)

	port := newScriptedPort(verifyAck, sysParamAck)
	cfg := DefaultConfig()

	sess, err := Open(port, cfg)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, uint16(400), sess.Params.Capacity)
	assert.Equal(t, 64, sess.Params.DataPackageLength)
	assert.Equal(t, uint32(0xAABBCCDD), sess.Params.Address)
}

func TestOpenFailsOnWrongPassword(t *testing.T) {
	verifyAck := frame(wire.DefaultAddress, byte(wire.TypeAck), []byte{byte(CodeIncorrectPassword)})
	port := newScriptedPort(verifyAck)

	_, err := Open(port, DefaultConfig())
	require.Error(t, err)
	var se *SensorError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindHandshakeFailed, se.Kind)
}

func TestCloseIsIdempotent(t *testing.T) {
	verifyAck := frame(wire.DefaultAddress, byte(wire.TypeAck), []byte{byte(CodeOK)})
	sysParamPayload := make([]byte, 17)
	sysParamPayload[0] = byte(CodeOK)
	sysParamAck := frame(wire.DefaultAddress, byte(wire.TypeAck), sysParamPayload)

	port := newScriptedPort(verifyAck, sysParamAck)
	sess, err := Open(port, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}
