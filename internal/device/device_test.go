package device

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/jakintosh/cohost/internal/core"
)

// fakeDevice is a minimal, test-only Device whose Poll/Recv behavior is
// driven directly by the test, rather than wired to real I/O like Console.
type fakeDevice struct {
	pollQueue [][BufferLen]byte
	recvd     [][BufferLen]byte
}

func (f *fakeDevice) Poll() ([BufferLen]byte, bool) {
	if len(f.pollQueue) == 0 {
		var zero [BufferLen]byte
		return zero, false
	}
	next := f.pollQueue[0]
	f.pollQueue = f.pollQueue[1:]
	return next, true
}

func (f *fakeDevice) Recv(data [BufferLen]byte) {
	f.recvd = append(f.recvd, data)
}

func connectFake(t *testing.T, cpu *core.CPU, dev Device) ([core.DeviceIdentifierLen]byte, Registry) {
	var id [core.DeviceIdentifierLen]byte
	id[0] = 0x42
	idx, err := cpu.ConnectDevice(id)
	require.NoError(t, err)
	require.Zero(t, idx)
	return id, Registry{id: dev}
}

func TestTickDeliversSendAndClearsOnDone(t *testing.T) {
	cpu := core.New()
	fd := &fakeDevice{}
	_, registry := connectFake(t, cpu, fd)

	cpu.Devices[0].Status = core.DeviceSendFlag | core.DeviceDoneFlag
	cpu.Devices[0].OutBuffer[0] = 0x7A

	Tick(cpu, registry)

	require.Len(t, fd.recvd, 1)
	require.Equal(t, byte(0x7A), fd.recvd[0][0])
	require.Equal(t, byte(0), cpu.Devices[0].Status&core.DeviceSendFlag)
	require.Equal(t, byte(0), cpu.Devices[0].Status&core.DeviceDoneFlag)
}

func TestTickBlocksWhenSendPendingAndUndone(t *testing.T) {
	cpu := core.New()
	fd := &fakeDevice{pollQueue: [][BufferLen]byte{{1, 2, 3}}}
	_, registry := connectFake(t, cpu, fd)

	cpu.Devices[0].Status = core.DeviceSendFlag | core.DeviceBlockFlag
	cpu.Devices[0].Vector = 0x10

	Tick(cpu, registry)

	require.Len(t, fd.recvd, 1, "an undone send still delivers once")
	require.Zero(t, cpu.Ret.Len(), "no interrupt should fire while blocked on an unacknowledged send")
}

func TestTickDrainsInboundAndInterrupts(t *testing.T) {
	cpu := core.New()
	fd := &fakeDevice{pollQueue: [][BufferLen]byte{{9, 9}, {8, 8}}}
	_, registry := connectFake(t, cpu, fd)
	cpu.Devices[0].Vector = 0x20
	cpu.PC = 5

	Tick(cpu, registry)

	require.Equal(t, byte(8), cpu.Devices[0].InBuffer[0], "the slot should hold the last chunk polled")
	require.Equal(t, 4, cpu.Ret.Len(), "one interrupt per chunk polled")
	require.EqualValues(t, 0x20, cpu.PC)
}

func TestTickSkipsUnregisteredSlot(t *testing.T) {
	cpu := core.New()
	var id [core.DeviceIdentifierLen]byte
	id[0] = 0x99
	_, err := cpu.ConnectDevice(id)
	require.NoError(t, err)

	require.NotPanics(t, func() { Tick(cpu, Registry{}) })
}
