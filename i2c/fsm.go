// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

// transition pairs a state's optional entry action with its sparse
// event->next-state map. An unmapped event defaults to stateFSMFault (the
// zero value of state); this is load-bearing, see states.go.
type transition struct {
	entry func(*Adapter)
	next  [numEvents]state
}

// transitions is the complete FSM table, transcribed from the reference
// driver's i2c_adapter_transitions. Entries are listed in the same grouping
// the original used: terminals/bootstrap, read-with-restart, read, write-
// with-restart, write, NACK.
var transitions = [numStates]transition{
	stateFSMFault: {
		entry: actionFSMFault,
		next: [numEvents]state{
			eventAuto: stateStopping,
		},
	},
	stateBusError: {
		entry: actionBusError,
		next: [numEvents]state{
			eventAuto: stateStopping,
		},
	},
	stateStopped: {
		entry: actionStopped,
		next: [numEvents]state{
			eventStart:     stateStarting,
			eventBusError:  stateBusError,
		},
	},
	stateStopping: {
		entry: actionStopping,
		next: [numEvents]state{
			eventStopped:  stateStopped,
			eventBusError: stateBusError,
		},
	},
	stateStarting: {
		entry: actionStarting,
		next: [numEvents]state{
			eventStartedMoreTxnRead:  stateRMoreTxnAddr,
			eventStartedMoreTxnWrite: stateWMoreTxnAddr,
			eventStartedLastTxnRead:  stateRLastTxnAddr,
			eventStartedLastTxnWrite: stateWLastTxnAddr,
			eventNack:                stateNack,
			eventBusError:            stateBusError,
		},
	},

	// Read with restart.
	stateRMoreTxnAddr: {
		entry: actionReadAddr,
		next: [numEvents]state{
			eventAddrSentLenEq1: stateRMoreTxnPreOne,
			eventAddrSentLenEq2: stateRMoreTxnPreFirst,
			eventAddrSentLenGt2: stateRMoreTxnPreFirst,
			eventNack:           stateNack,
			eventBusError:       stateBusError,
		},
	},
	stateRMoreTxnPreOne: {
		entry: actionReadMorePreOne,
		next: [numEvents]state{
			eventTransferDoneLenEq1: stateRMoreTxnPostLast,
			eventBusError:           stateBusError,
		},
	},
	stateRMoreTxnPreFirst: {
		entry: actionReadPreFirst,
		next: [numEvents]state{
			eventTransferDoneLenEq2: stateRMoreTxnPreLast,
			eventTransferDoneLenGt2: stateRMoreTxnPreMiddle,
			eventBusError:           stateBusError,
		},
	},
	stateRMoreTxnPreMiddle: {
		entry: actionReadPreMiddle,
		next: [numEvents]state{
			eventTransferDoneLenEq2: stateRMoreTxnPreLast,
			eventTransferDoneLenGt2: stateRMoreTxnPreMiddle,
			eventBusError:           stateBusError,
		},
	},
	stateRMoreTxnPreLast: {
		entry: actionReadMorePreLast,
		next: [numEvents]state{
			eventTransferDoneLenEq1: stateRMoreTxnPostLast,
			eventBusError:           stateBusError,
		},
	},
	stateRMoreTxnPostLast: {
		entry: actionReadPostLast,
		next: [numEvents]state{
			eventAuto: stateStarting,
		},
	},

	// Read (last transaction, terminates with STOP).
	stateRLastTxnAddr: {
		entry: actionReadAddr,
		next: [numEvents]state{
			eventAddrSentLenEq1: stateRLastTxnPreOne,
			eventAddrSentLenEq2: stateRLastTxnPreFirst,
			eventAddrSentLenGt2: stateRLastTxnPreFirst,
			eventNack:           stateNack,
			eventBusError:       stateBusError,
		},
	},
	stateRLastTxnPreOne: {
		entry: actionReadLastPreOne,
		next: [numEvents]state{
			eventTransferDoneLenEq1: stateRLastTxnPostLast,
			eventBusError:           stateBusError,
		},
	},
	stateRLastTxnPreFirst: {
		entry: actionReadPreFirst,
		next: [numEvents]state{
			eventTransferDoneLenEq2: stateRLastTxnPreLast,
			eventTransferDoneLenGt2: stateRLastTxnPreMiddle,
			eventBusError:           stateBusError,
		},
	},
	stateRLastTxnPreMiddle: {
		entry: actionReadPreMiddle,
		next: [numEvents]state{
			eventTransferDoneLenEq2: stateRLastTxnPreLast,
			eventTransferDoneLenGt2: stateRLastTxnPreMiddle,
			eventBusError:           stateBusError,
		},
	},
	stateRLastTxnPreLast: {
		entry: actionReadLastPreLast,
		next: [numEvents]state{
			eventTransferDoneLenEq1: stateRLastTxnPostLast,
			eventBusError:           stateBusError,
		},
	},
	stateRLastTxnPostLast: {
		entry: actionReadPostLast,
		next: [numEvents]state{
			eventAuto: stateStopping,
		},
	},

	// Write with restart.
	stateWMoreTxnAddr: {
		entry: actionWriteAddr,
		next: [numEvents]state{
			eventAddrSentLenEq1: stateWMoreTxnLast,
			eventAddrSentLenEq2: stateWMoreTxnMiddle,
			eventAddrSentLenGt2: stateWMoreTxnMiddle,
			eventNack:           stateNack,
			eventBusError:       stateBusError,
		},
	},
	stateWMoreTxnMiddle: {
		entry: actionWriteMiddle,
		next: [numEvents]state{
			eventTransferDoneLenEq1: stateWMoreTxnLast,
			eventTransferDoneLenEq2: stateWMoreTxnMiddle,
			eventTransferDoneLenGt2: stateWMoreTxnMiddle,
			eventNack:                stateNack,
			eventBusError:            stateBusError,
		},
	},
	stateWMoreTxnLast: {
		entry: actionWriteMoreLast,
		next: [numEvents]state{
			eventTransferDoneLenEq0: stateStarting,
			eventNack:                stateNack,
			eventBusError:            stateBusError,
		},
	},

	// Write (last transaction, terminates with STOP).
	stateWLastTxnAddr: {
		entry: actionWriteAddr,
		next: [numEvents]state{
			eventAddrSentLenEq1: stateWLastTxnLast,
			eventAddrSentLenEq2: stateWLastTxnMiddle,
			eventAddrSentLenGt2: stateWLastTxnMiddle,
			eventNack:           stateNack,
			eventBusError:       stateBusError,
		},
	},
	stateWLastTxnMiddle: {
		entry: actionWriteMiddle,
		next: [numEvents]state{
			eventTransferDoneLenEq1: stateWLastTxnLast,
			eventTransferDoneLenEq2: stateWLastTxnMiddle,
			eventTransferDoneLenGt2: stateWLastTxnMiddle,
			eventNack:                stateNack,
			eventBusError:            stateBusError,
		},
	},
	stateWLastTxnLast: {
		entry: actionWriteLastLast,
		next: [numEvents]state{
			eventTransferDoneLenEq0: stateStopping,
			eventNack:                stateNack,
			eventBusError:            stateBusError,
		},
	},

	stateNack: {
		entry: actionNack,
		next: [numEvents]state{
			eventAuto: stateStopping,
		},
	},
}

// injectEvent advances the FSM by one external event, runs the landing
// state's entry action, then chains any AUTO transitions. The whole
// operation runs with interrupts masked, both to keep it atomic with
// respect to ISR re-entry and because some entry actions (the PRE_LAST
// reads) themselves mask interrupts for a tighter inner critical section.
func (a *Adapter) injectEvent(ev event) {
	is := a.cfg.Interrupts.Disable()
	defer a.cfg.Interrupts.Restore(is)

	next := transitions[a.state].next[ev]
	a.diag.recordTransition(a.state, ev, next)
	a.setState(next)
	if fn := transitions[next].entry; fn != nil {
		fn(a)
	}
	a.processAuto()
}

// processAuto chains AUTO transitions until a state has no AUTO mapping.
// Because stateFSMFault is the table's zero value, an AUTO-absent state
// reads as next==stateFSMFault here -- but that is "stop chaining", not
// "jump to FSM_FAULT": FSM_FAULT is never a legitimate AUTO target (nothing
// in the table maps AUTO to it), matching the reference driver's
// `while (next_state[AUTO])` loop which relies on the same zero value to
// mean "done" rather than "fault".
func (a *Adapter) processAuto() {
	for {
		next := transitions[a.state].next[eventAuto]
		if next == stateFSMFault {
			return
		}
		a.setState(next)
		if fn := transitions[next].entry; fn != nil {
			fn(a)
		}
	}
}
