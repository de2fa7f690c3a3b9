// Package cpu is a minimal Sharp SM83 driver.
//
// The instruction set this core needs to decode and execute is explicitly
// out of scope for the machine: the rest of the system is built to be
// driven by whatever CPU produces cycle counts and issues bus reads,
// writes and interrupt requests. This package exists only so the frame
// loop has something concrete to call; it is not a cycle-accurate
// opcode table.
package cpu

import "github.com/wrenfield/dmgcore/dmg/addr"

// Flag is one of the 4 flag bits kept in the F register.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// Bus is the surface a CPU needs from the rest of the machine: byte
// access plus the ability to advance the other components by a cycle
// count (the MMU ticks its timer, serial port and APU; the PPU is ticked
// separately by the frame loop).
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	Tick(cycles int)

	// GetInterrupts returns the interrupts that are both enabled (IE)
	// and pending (IF), masked to the 5 valid bits.
	GetInterrupts() uint8
	// ClearInterruptFlag marks an interrupt serviced in IF.
	ClearInterruptFlag(interrupt addr.Interrupt)
}

const (
	vecVBlank  uint16 = 0x40
	vecLCDSTAT uint16 = 0x48
	vecTimer   uint16 = 0x50
	vecSerial  uint16 = 0x58
	vecJoypad  uint16 = 0x60
)

// CPU holds Sharp SM83 register state plus the minimal fetch/execute/
// interrupt machinery needed to drive the bus.
type CPU struct {
	memory Bus

	a, f          uint8
	b, c          uint8
	d, e          uint8
	h, l          uint8
	sp, pc        uint16
	currentOpcode uint16

	halted            bool
	stopped           bool
	interruptsEnabled bool
	eiPending         bool
}

// New creates a CPU positioned at the post-bootrom entry point (0x100),
// as if the DMG boot ROM has already run.
func New(bus Bus) *CPU {
	return &CPU{
		memory: bus,
		a:      0x01, f: 0xB0,
		b: 0x00, c: 0x13,
		d: 0x00, e: 0xD8,
		h: 0x01, l: 0x4D,
		sp: 0xFFFE,
		pc: 0x100,
	}
}

func (c *CPU) flagSet(flag Flag) bool    { return c.f&uint8(flag) != 0 }
func (c *CPU) setFlag(flag Flag)         { c.f |= uint8(flag) }
func (c *CPU) resetFlag(flag Flag)       { c.f &^= uint8(flag) }
func (c *CPU) flagToBit(flag Flag) uint8 { if c.flagSet(flag) { return 1 }; return 0 }

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

// PC returns the current program counter, for disassembly and logging.
func (c *CPU) PC() uint16 { return c.pc }

func (c *CPU) getBC() uint16 { return uint16(c.b)<<8 | uint16(c.c) }
func (c *CPU) getDE() uint16 { return uint16(c.d)<<8 | uint16(c.e) }
func (c *CPU) getHL() uint16 { return uint16(c.h)<<8 | uint16(c.l) }

func (c *CPU) setBC(v uint16) { c.b, c.c = uint8(v>>8), uint8(v) }
func (c *CPU) setDE(v uint16) { c.d, c.e = uint8(v>>8), uint8(v) }
func (c *CPU) setHL(v uint16) { c.h, c.l = uint8(v>>8), uint8(v) }

func (c *CPU) readImmediate() uint8 {
	v := c.memory.Read(c.pc)
	c.pc++
	return v
}

func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

func (c *CPU) pushStack(v uint16) {
	c.sp--
	c.memory.Write(c.sp, uint8(v>>8))
	c.sp--
	c.memory.Write(c.sp, uint8(v))
}

func (c *CPU) popStack() uint16 {
	low := c.memory.Read(c.sp)
	c.sp++
	high := c.memory.Read(c.sp)
	c.sp++
	return uint16(high)<<8 | uint16(low)
}

// Step fetches, decodes and executes one instruction (servicing a
// pending interrupt first, if any), returning the number of cycles it
// consumed. Called repeatedly from the frame loop.
func (c *CPU) Step() int {
	// handleInterrupts clears IME when it services an interrupt, so the
	// dispatch decision uses IME as it was before the call.
	ime := c.interruptsEnabled
	if c.handleInterrupts() {
		c.halted = false
		if ime {
			return 20
		}
	}

	if c.halted {
		return 4
	}

	opcode := uint16(c.readImmediate())
	if opcode == 0xCB {
		opcode = 0xCB00 | uint16(c.readImmediate())
	}
	c.currentOpcode = opcode

	cycles := c.execute(opcode)

	// EI's effect is delayed by one instruction: IME only becomes active
	// after the instruction following EI has itself executed, so a
	// pending interrupt can't preempt that instruction.
	if c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	return cycles
}

// handleInterrupts reports whether an interrupt is pending (IE & IF
// nonzero), and services the highest-priority one when IME is set.
func (c *CPU) handleInterrupts() bool {
	pending := c.memory.GetInterrupts()
	if pending == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	c.interruptsEnabled = false

	type source struct {
		interrupt addr.Interrupt
		vec       uint16
	}
	sources := []source{
		{addr.VBlankInterrupt, vecVBlank},
		{addr.LCDSTATInterrupt, vecLCDSTAT},
		{addr.TimerInterrupt, vecTimer},
		{addr.SerialInterrupt, vecSerial},
		{addr.JoypadInterrupt, vecJoypad},
	}

	for _, s := range sources {
		if pending&uint8(s.interrupt) == 0 {
			continue
		}
		c.memory.ClearInterruptFlag(s.interrupt)
		c.pushStack(c.pc)
		c.pc = s.vec
		return true
	}

	return true
}
