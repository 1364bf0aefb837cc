// Package irq implements the interrupt dispatch contract the vmm package
// relies on: CPU exception 14 (page fault) must reach vmm's fault handler,
// and the rest of the vector space (0-31 CPU exceptions, 32-47 remapped
// hardware IRQs) must be routed and acknowledged the same way, since a
// kernel that can field #PF but not the timer/keyboard IRQs sitting next
// to it in the IDT is not a believable target for this package.
//
// Handler registration mirrors hal/isr.c's register_interrupt_handler: a
// flat table indexed by vector number, populated by a plain function call
// rather than an assembly-linked gate table, since nothing above this
// package needs to touch the IDT directly.
package irq

import "github.com/kitan0516/matrix/kernel/cpu"

// ExceptionNum identifies a CPU exception or remapped IRQ vector.
type ExceptionNum uint8

const (
	// PageFault is raised when a page directory/table entry is not
	// present or a privilege/RW protection check fails.
	PageFault = ExceptionNum(14)
	// GeneralProtectionFault is raised on a general protection violation.
	GeneralProtectionFault = ExceptionNum(13)

	// firstException is the first CPU exception vector.
	firstException = ExceptionNum(0)
	// lastException is the last CPU exception vector.
	lastException = ExceptionNum(31)

	// FirstIRQ is the first remapped hardware IRQ vector (master PIC).
	FirstIRQ = ExceptionNum(32)
	// LastIRQ is the last remapped hardware IRQ vector (slave PIC).
	LastIRQ = ExceptionNum(47)
	// slaveIRQBoundary is the first vector routed through the slave PIC.
	slaveIRQBoundary = ExceptionNum(40)
)

// ExceptionHandler handles a vector that does not carry a CPU-pushed error
// code (most exceptions and all remapped hardware IRQs).
type ExceptionHandler func(*Frame, *Regs)

// ExceptionHandlerWithCode handles a vector that carries a CPU-pushed error
// code, e.g. the page fault (14) and general protection fault (13)
// exceptions.
type ExceptionHandlerWithCode func(errorCode uint32, frame *Frame, regs *Regs)

var (
	handlers         [int(lastException) + 1]ExceptionHandler
	handlersWithCode [int(lastException) + 1]ExceptionHandlerWithCode
	irqHandlers      [int(LastIRQ-FirstIRQ) + 1]ExceptionHandler
)

// HandleException registers handler for the given exception or IRQ vector.
// It replaces any handler previously registered for that vector via either
// HandleException or HandleExceptionWithCode.
func HandleException(vector ExceptionNum, handler ExceptionHandler) {
	if vector >= FirstIRQ {
		irqHandlers[vector-FirstIRQ] = handler
		return
	}
	handlers[vector] = handler
	handlersWithCode[vector] = nil
}

// HandleExceptionWithCode registers handler for the given exception vector.
// It is only meaningful for the subset of CPU exceptions that push an error
// code (notably PageFault and GeneralProtectionFault).
func HandleExceptionWithCode(vector ExceptionNum, handler ExceptionHandlerWithCode) {
	handlersWithCode[vector] = handler
	handlers[vector] = nil
}

// outBFn is overridden by tests; in a running kernel it is cpu.OutB.
var outBFn = cpu.OutB

// dispatch is invoked by the interrupt trampoline with the vector number,
// the CPU-pushed error code (0 if the vector does not carry one) and the
// register/frame snapshot. It acknowledges the 8259 PIC before invoking any
// registered handler for vectors in the hardware IRQ range, so the PIC
// keeps delivering further interrupts regardless of how long the handler
// takes.
func dispatch(vector ExceptionNum, errorCode uint32, frame *Frame, regs *Regs) {
	if vector >= FirstIRQ && vector <= LastIRQ {
		if vector >= slaveIRQBoundary {
			outBFn(0xA0, 0x20)
		}
		outBFn(0x20, 0x20)

		if h := irqHandlers[vector-FirstIRQ]; h != nil {
			h(frame, regs)
		}
		return
	}

	if h := handlersWithCode[vector]; h != nil {
		h(errorCode, frame, regs)
		return
	}
	if h := handlers[vector]; h != nil {
		h(frame, regs)
	}
}

// commonHandler is the Go-side landing point for the assembly interrupt
// trampoline in stub_386.s. Every vector's entry stub pushes its vector
// number and error code (0 for vectors that do not carry one) before
// jumping to the shared trampoline, which assembles this call.
func commonHandler(vector, errorCode, eip, cs, eflags, eax, ebx, ecx, edx, esi, edi, ebp uint32) {
	frame := Frame{EIP: eip, CS: cs, EFlags: eflags}
	regs := Regs{EAX: eax, EBX: ebx, ECX: ecx, EDX: edx, ESI: esi, EDI: edi, EBP: ebp}
	dispatch(ExceptionNum(vector), errorCode, &frame, &regs)
}
