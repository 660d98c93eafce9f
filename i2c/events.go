// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

// event drives FSM transitions. AUTO is distinguished: processAuto chains
// through it with no external stimulus until a state has no AUTO mapping.
type event uint8

const (
	eventStart event = iota
	eventStartedMoreTxnRead
	eventStartedMoreTxnWrite
	eventStartedLastTxnRead
	eventStartedLastTxnWrite
	eventAddrSentLenEq0
	eventAddrSentLenEq1
	eventAddrSentLenEq2
	eventAddrSentLenGt2
	eventTransferDoneLenEq0
	eventTransferDoneLenEq1
	eventTransferDoneLenEq2
	eventTransferDoneLenGt2
	eventNack
	eventStopped
	eventBusError
	eventAuto

	numEvents
)
