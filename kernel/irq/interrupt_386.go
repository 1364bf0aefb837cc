package irq

import "github.com/kitan0516/matrix/kernel/kfmt"

// Regs contains a snapshot of the general-purpose register values at the
// time an interrupt occurred.
type Regs struct {
	EAX uint32
	EBX uint32
	ECX uint32
	EDX uint32
	ESI uint32
	EDI uint32
	EBP uint32
}

// Print outputs a dump of the register values to the active console.
func (r *Regs) Print() {
	kfmt.Printf("EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Printf("ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Printf("ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Printf("EBP = %8x\n", r.EBP)
}

// Frame describes the portion of the exception frame that the CPU itself
// pushes onto the stack when an exception or interrupt occurs.
type Frame struct {
	EIP    uint32
	CS     uint32
	EFlags uint32
}

// Print outputs a dump of the exception frame to the active console.
func (f *Frame) Print() {
	kfmt.Printf("EIP = %8x CS  = %8x\n", f.EIP, f.CS)
	kfmt.Printf("EFL = %8x\n", f.EFlags)
}
