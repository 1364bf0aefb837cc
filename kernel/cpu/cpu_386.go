// Package cpu exposes the narrow set of x86 protected-mode intrinsics the
// vmm package needs (CR0/CR2/CR3 access, TLB invalidation, IRQ masking).
// Every function declared without a body here is implemented in cpu_386.s.
// Apart from its own copyFrame routine (copyframe_386.s), the vmm package
// reaches the CPU only through this package.
package cpu

// ReadCR2 returns the value of the CR2 register, i.e. the virtual address
// that caused the most recent page fault.
func ReadCR2() uint32

// LoadPDBR writes the physical address of a page directory into CR3,
// making it the page directory the MMU walks for every subsequent
// translation.
func LoadPDBR(pdbr uint32)

// EnablePaging sets the paging-enable bit (bit 31) in CR0. It is idempotent:
// calling it when paging is already enabled has no effect.
func EnablePaging()

// InvalidateTLB flushes the TLB entry that caches the translation for
// virtAddr (the INVLPG instruction).
func InvalidateTLB(virtAddr uint32)

// DisableInterrupts masks maskable interrupts and returns the previous
// interrupt-flag state so it can be restored with RestoreInterrupts.
func DisableInterrupts() (prevState uint32)

// RestoreInterrupts restores the interrupt-flag state previously returned
// by DisableInterrupts.
func RestoreInterrupts(prevState uint32)

// Halt stops instruction execution on this core.
func Halt()

// OutB writes a byte to the given I/O port (used for the 8259 PIC EOI
// sequence in kernel/irq).
func OutB(port uint16, value uint8)

// StackPointer returns the current value of ESP. It exists so callers that
// must run with an identity-mapped stack (copy_frame's precondition) can
// assert that fact rather than trust it silently.
func StackPointer() uint32
