package vmm

import (
	"github.com/kitan0516/matrix/kernel/cpu"
	"github.com/kitan0516/matrix/kernel/irq"
	"github.com/kitan0516/matrix/kernel/kfmt"
)

// page fault error code bits, as pushed by the CPU alongside vector 14.
const (
	faultPresent  = 1 << 0
	faultWrite    = 1 << 1
	faultUser     = 1 << 2
	faultReserved = 1 << 3
)

var readCR2Fn = cpu.ReadCR2

// faultHandler is installed against irq.PageFault by InitMMU. This kernel
// has no demand-paging or copy-on-write policy to recover a fault with, so
// every page fault is fatal: it decodes the error code and faulting
// address, dumps the register snapshot, and panics.
func faultHandler(errorCode uint32, frame *irq.Frame, regs *irq.Regs) {
	addr := readCR2Fn()

	kfmt.Printf("[vmm] page fault at 0x%x (present=%t write=%t user=%t reserved=%t)\n",
		addr,
		errorCode&faultPresent != 0,
		errorCode&faultWrite != 0,
		errorCode&faultUser != 0,
		errorCode&faultReserved != 0,
	)
	regs.Print()
	frame.Print()

	panic(errPageFault)
}
