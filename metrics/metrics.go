/*
Copyright © 2021 the adios2nc authors.
This file is part of adios2nc.

adios2nc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

adios2nc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with adios2nc.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package metrics records conversion metrics.
package metrics

import "time"

// Recorder receives measurements from a conversion session.
type Recorder interface {
	// ObserveRead records a read of the given number of bytes from the
	// source.
	ObserveRead(bytes int, d time.Duration)

	// ObserveWrite records a write of the given number of bytes to the
	// destination.
	ObserveWrite(bytes int, d time.Duration)

	// VariableDone records that a variable has been transferred.
	VariableDone()

	// BarrierWait records the time spent at the named barrier.
	BarrierWait(barrier string, d time.Duration)

	// SessionDone records the end of a conversion session.
	SessionDone(ok bool, d time.Duration)
}

// Nop discards all measurements.
type Nop struct{}

var _ Recorder = Nop{}

// ObserveRead does nothing.
func (Nop) ObserveRead(int, time.Duration) {}

// ObserveWrite does nothing.
func (Nop) ObserveWrite(int, time.Duration) {}

// VariableDone does nothing.
func (Nop) VariableDone() {}

// BarrierWait does nothing.
func (Nop) BarrierWait(string, time.Duration) {}

// SessionDone does nothing.
func (Nop) SessionDone(bool, time.Duration) {}
