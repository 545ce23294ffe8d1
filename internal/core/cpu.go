package core

import "encoding/binary"

// MemorySize is the fixed width of main memory. Address 0 holds the
// initial program counter value.
const MemorySize = 65536

// CPU is the Coalescent Core execution state: program counter, the
// address register used by Address/Store/Load, the hold register, the
// three stacks, flat memory, and the DMA and device slot arrays.
//
// CPU exclusively owns memory, stacks, the hold register, and the DMA and
// device slot metadata. Devices themselves are owned externally (see
// package device) and referenced only by the slot's Identifier.
type CPU struct {
	PC   uint16
	Addr uint64

	Hold Register64
	Data Stack
	Swap Stack
	Ret  Stack

	Memory [MemorySize]byte

	DMA      [DMASlotCount]DMASlot
	slotMask uint16
	Devices  [DeviceSlotCount]DeviceSlot

	// Err is set by Execute when a fatal condition is raised; once non-nil
	// the CPU has halted and further Execute calls are a caller error.
	Err error
}

// New returns a CPU with PC at 0 and all other state zeroed.
func New() *CPU {
	return &CPU{}
}

// LoadROM copies bytes into memory starting at address 0.
// It returns errROMTooLarge if the ROM does not fit.
func (c *CPU) LoadROM(rom []byte) error {
	if len(rom) > MemorySize {
		return errROMTooLarge
	}
	copy(c.Memory[:], rom)
	return nil
}

// ConnectDevice reserves the lowest free device slot for identifier and
// returns its index. It returns errNoFreeDeviceSlot if all 16 are taken.
func (c *CPU) ConnectDevice(identifier [DeviceIdentifierLen]byte) (int, error) {
	for i := 0; i < DeviceSlotCount; i++ {
		if c.slotMask&(1<<uint(i)) == 0 {
			c.slotMask |= 1 << uint(i)
			c.Devices[i].Identifier = identifier
			c.Devices[i].connected = true
			return i, nil
		}
	}
	return 0, errNoFreeDeviceSlot
}

// Interrupt pushes the current PC onto the return stack and jumps to
// vector. It is the only cross-context transfer the cooperative execution
// model defines: the host driver calls it when a device has data waiting.
func (c *CPU) Interrupt(vector uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], c.PC)
	c.Ret.Push(buf[:])
	c.PC = vector
}

// Execute decodes and performs the single instruction at Memory[PC],
// advancing PC by one unless the instruction sets it directly (Jump,
// Call, Return) or advances it by more than one (Literal). Any fatal
// condition is recovered here and recorded in Err rather than propagated,
// matching the VM error regime in which execution halts rather than
// unwinds through the caller.
func (c *CPU) Execute() {
	if c.Err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				c.Err = err
			} else {
				c.Err = errSegmentationFault
			}
		}
	}()

	if int(c.PC) >= MemorySize {
		c.Err = errSegmentationFault
		return
	}

	opcode := c.Memory[c.PC]
	ins := Decode(opcode)
	c.dispatch(ins)
}

func (c *CPU) dispatch(ins Instruction) {
	switch ins.Op {
	case OpNop:
		c.PC++

	case OpLiteral:
		start := int(c.PC) + 1
		end := start + ins.Len
		c.checkBounds(start, end)
		c.Data.Push(c.Memory[start:end])
		c.PC += uint16(1 + ins.Len)

	case OpAddress:
		bytes := c.Data.Pop(ins.Len)
		c.Addr = leUint64(bytes)
		if c.Addr >= MemorySize {
			panic(errSegmentationFault)
		}
		c.PC++

	case OpStore:
		bytes := c.Data.Pop(ins.Len)
		start := int(c.Addr)
		end := start + ins.Len
		c.checkBounds(start, end)
		copy(c.Memory[start:end], bytes)
		c.PC++

	case OpLoad:
		start := int(c.Addr)
		end := start + ins.Len
		c.checkBounds(start, end)
		c.Data.Push(c.Memory[start:end])
		c.PC++

	case OpJump:
		c.execJump(ins)

	case OpCall:
		// The return address is the byte after this (always 1-byte-wide)
		// opcode: Call is one of the instructions property 4 exempts from
		// the default +1, because it supplies that advance itself here.
		var pcBuf [2]byte
		binary.LittleEndian.PutUint16(pcBuf[:], c.PC+1)
		c.Ret.Push(pcBuf[:])
		target := leUint16(c.Data.Pop(ins.Len))
		c.PC = target

	case OpReturn:
		target := leUint16(c.Ret.Pop(ins.Len))
		c.PC = target

	case OpIntAdd, OpIntSub, OpIntMul, OpIntDiv:
		c.execIntArith(ins)
	case OpIntGt, OpIntLt, OpIntEq, OpIntNe:
		c.execIntCompare(ins)

	case OpFloatAdd, OpFloatSub, OpFloatMul, OpFloatDiv:
		c.execFloatArith(ins)
	case OpFloatGt, OpFloatLt:
		c.execFloatCompare(ins)

	case OpBitAnd, OpBitOr, OpBitXor, OpShiftL, OpShiftR:
		c.execBitwiseBinary(ins)
	case OpBitNot:
		c.execBitwiseNot(ins)

	case OpDMARead:
		c.execDMARead()
	case OpDMAWrite:
		c.execDMAWrite(ins)
	case OpDMAPoll:
		c.execDMAPoll()

	case OpDeviceRead:
		c.execDeviceRead(ins)
	case OpDeviceWrite:
		c.execDeviceWrite(ins)
	case OpDevicePoll:
		c.execDevicePoll(ins)

	case OpCopy:
		bytes := c.popFrom(ins.From, ins.Len)
		c.pushTo(ins.To, bytes)
		c.PC++

	case OpDuplicate:
		// Decode never produces From==StackHold here: the Hold/Hold
		// diagonal bytes (0xFC-0xFF) are claimed by the drop/reserved
		// family before the general stack-move grid is consulted.
		c.stackFor(ins.From).Duplicate(ins.Len)
		c.PC++

	case OpDropData:
		c.Data.Drop(1)
		c.PC++
	case OpDropSwap:
		c.Swap.Drop(1)
		c.PC++
	case OpDropReturn:
		c.Ret.Drop(1)
		c.PC++

	default:
		c.Err = errUnknownInstruction
	}
}

// execJump implements the redesigned (fixed) jump-conditional semantics:
// the target is always popped off the data stack, regardless of whether
// the condition byte is zero. The original source left the target
// unconsumed on a false condition, which would misinterpret the target
// bytes as the next instruction; this implementation always consumes it.
func (c *CPU) execJump(ins Instruction) {
	taken := true
	if ins.Cond {
		cond := c.Data.Pop(1)
		taken = cond[0] != 0
	}
	target := leUint16(c.Data.Pop(ins.Len))
	if !taken {
		c.PC++
		return
	}
	if ins.Rel {
		c.PC = c.PC + target
	} else {
		c.PC = target
	}
}

func (c *CPU) stackFor(id StackID) *Stack {
	switch id {
	case StackData:
		return &c.Data
	case StackSwap:
		return &c.Swap
	case StackReturn:
		return &c.Ret
	default:
		panic(errIllegalInstruction)
	}
}

func (c *CPU) popFrom(id StackID, n int) []byte {
	if id == StackHold {
		return c.Hold.Pop(n)
	}
	return c.stackFor(id).Pop(n)
}

func (c *CPU) pushTo(id StackID, bytes []byte) {
	if id == StackHold {
		c.Hold.Push(bytes)
		return
	}
	c.stackFor(id).Push(bytes)
}

func (c *CPU) checkBounds(start, end int) {
	if start < 0 || end > MemorySize || start > end {
		panic(errSegmentationFault)
	}
}

func leUint16(b []byte) uint16 {
	var buf [2]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint16(buf[:])
}

func leUint32(b []byte) uint32 {
	var buf [4]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint32(buf[:])
}

func leUint64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}
