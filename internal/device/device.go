// Package device implements the host side of the Coalescent Core's device
// contract: the poll/recv capability each device exposes, and the driver
// loop that ticks device slots against connected devices.
package device

import "github.com/jakintosh/cohost/internal/core"

// BufferLen matches core.DeviceBufferLen: the fixed width of a device's
// inbound and outbound buffers.
const BufferLen = core.DeviceBufferLen

// Device is the capability every peripheral exposes to the driver loop.
// Poll returns the next chunk of outbound data when the device has one
// ready, or (zero, false) when it has nothing to offer this tick. Recv
// delivers one buffer's worth of data the CPU sent.
type Device interface {
	Poll() (data [BufferLen]byte, ok bool)
	Recv(data [BufferLen]byte)
}

// Registry maps a 32-byte device identifier to the Device instance
// handling it. The all-zero identifier is conventionally the console.
type Registry map[[core.DeviceIdentifierLen]byte]Device

// Tick drives every device slot on cpu whose identifier has a registered
// Device exactly once, following
// the two-step algorithm in the device interface design: first deliver
// any pending outbound send, then (unless the CPU is synchronously
// blocking on an unacknowledged send) drain the device's inbound queue
// into the slot and raise an interrupt for each chunk delivered.
//
// Slots with no registered device are skipped silently: an unregistered
// identifier is not a protocol error, just an inert slot. Slots are not
// checked for being connected: an unconnected slot has the all-zero
// identifier, so a Device registered under that identifier is also
// driven for every unconnected slot.
func Tick(cpu *core.CPU, registry Registry) {
	for i := range cpu.Devices {
		slot := &cpu.Devices[i]
		dev, ok := registry[slot.Identifier]
		if !ok {
			continue
		}

		send := slot.Status&core.DeviceSendFlag != 0
		done := slot.Status&core.DeviceDoneFlag != 0
		block := slot.Status&core.DeviceBlockFlag != 0

		if send {
			dev.Recv(slot.OutBuffer)
			if done {
				slot.Status &^= core.DeviceSendFlag
				slot.Status &^= core.DeviceDoneFlag
			}
		}

		if send && !done && block {
			continue
		}

		for {
			data, ok := dev.Poll()
			if !ok {
				break
			}
			slot.InBuffer = data
			cpu.Interrupt(slot.Vector)
		}
	}
}
