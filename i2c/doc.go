// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2c implements an interrupt-driven I²C master-mode bus adapter.
//
// The adapter is a finite state machine driven entirely by peripheral event
// and error interrupts: Transfer stages a list of transactions, injects the
// START event and blocks a caller goroutine on a completion semaphore while
// the event/error IRQ handlers classify peripheral status and advance the
// FSM through repeated-START chaining, per-byte ACK/NACK, and the STM32
// two-byte/one-byte read erratum workarounds. On any bus error the adapter
// bit-bangs SCL to free a wedged slave and reinitializes the peripheral.
//
// Platforms provide the HAL types in hal.go (Peripheral, RecoveryPin, Clock,
// InterruptController, IRQInstaller); everything else in this package is
// platform independent.
package i2c
