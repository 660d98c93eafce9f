// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import "sync"

// HostInterruptController serializes injectEvent calls with a mutex instead
// of masking a hardware interrupt line. It is meant for hosted builds and
// for i2csim-backed tests, where "interrupts" are ordinary goroutine calls;
// real targets should supply a controller backed by their architecture's
// global interrupt mask (e.g. disabling/restoring PRIMASK on Cortex-M).
//
// Disable/Restore must nest: injectEvent holds the mask across an entry
// action's execution, and the PRE_LAST entry actions (readPreLast) disable
// again inside that window for their own inner critical section, exactly
// as PIOS_IRQ_Disable nests via PRIMASK's hardware counter in the original
// driver. depth makes the plain mutex underneath behave the same way: only
// the outermost Disable actually locks, and only the matching outermost
// Restore unlocks. This relies on the single-execution-context assumption
// already documented on Adapter.state -- Disable/Restore are only ever
// nested by one logical caller at a time, never contended across callers.
type HostInterruptController struct {
	mu    sync.Mutex
	guard sync.Mutex
	depth int
}

func (h *HostInterruptController) Disable() IRQState {
	h.guard.Lock()
	outermost := h.depth == 0
	h.depth++
	h.guard.Unlock()

	if outermost {
		h.mu.Lock()
	}
	return nil
}

func (h *HostInterruptController) Restore(IRQState) {
	h.guard.Lock()
	h.depth--
	innermost := h.depth == 0
	h.guard.Unlock()

	if innermost {
		h.mu.Unlock()
	}
}

var _ InterruptController = (*HostInterruptController)(nil)
