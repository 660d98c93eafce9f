// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import "errors"

// Errors returned by CheckClear. The parenthetical numbers are the codes
// the original driver returned in place of these sentinels.
var (
	ErrBusLocked = errors.New("i2c: bus locked by another transfer")  // -1
	ErrNotStopped = errors.New("i2c: adapter not in stopped state")   // -2
	ErrLinesLow   = errors.New("i2c: SDA or SCL held low")            // -3
)

// Errors returned by Transfer.
var (
	ErrBusError       = errors.New("i2c: bus error")        // -1
	ErrTransferTimeout = errors.New("i2c: transfer timeout") // -2
)
