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

package adios2nc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/metrics"
	"github.com/sirupsen/logrus"
)

// Transfer copies the data of every variable in l from src to dst,
// restricted to the share of the work given by w. Stepped variables are
// copied one step at a time.
func Transfer(ctx context.Context, src Source, dst Destination, l *Layout, w Work, log logrus.FieldLogger, rec metrics.Recorder) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	t := &transfer{src: src, dst: dst, log: log, rec: rec}
	for i, v := range l.Variables {
		if err := ctx.Err(); err != nil {
			return &TransferError{Op: "start", Variable: v.Name, Step: -1, Err: err}
		}
		var err error
		if v.Stepped() {
			err = t.stepped(v, w)
		} else {
			err = t.fixed(v, w)
		}
		if err != nil {
			return err
		}
		rec.VariableDone()
		log.WithFields(logrus.Fields{
			"variable": v.Name,
			"done":     i + 1,
			"total":    len(l.Variables),
			"percent":  math.Round(1000*float64(i+1)/float64(len(l.Variables))) / 10,
		}).Info("variable converted")
	}
	return nil
}

type transfer struct {
	src Source
	dst Destination
	log logrus.FieldLogger
	rec metrics.Recorder
}

// stepped copies each step of v in w.Steps in which v is available.
func (t *transfer) stepped(v *DestinationVariable, w Work) error {
	sv := v.Source
	for _, step := range sv.Steps {
		if !w.Steps.Contains(step) {
			continue
		}
		shape := sv.StepShapes[step]
		start := make([]int, len(shape))
		data, err := t.read(v, step, start, shape)
		if err != nil {
			return err
		}
		dstStart := append([]int{step}, start...)
		dstCount := append([]int{1}, shape...)
		if err := t.write(v, step, dstStart, dstCount, data); err != nil {
			return err
		}
		t.log.WithFields(logrus.Fields{"variable": v.Name, "step": step}).Debug("step written")
	}
	return nil
}

// fixed copies the rows of v assigned to this worker. Scalars and small
// variables are copied whole by rank 0. The data comes from a single
// step, see fullStep.
func (t *transfer) fixed(v *DestinationVariable, w Work) error {
	sv := v.Source
	step := fullStep(sv)
	shape := sv.StepShapes[step]
	start := make([]int, len(shape))
	count := append([]int(nil), shape...)
	if len(shape) == 0 {
		if w.Rank != 0 {
			return nil
		}
	} else {
		rows, ok := w.Rows(shape[0])
		if !ok {
			return nil
		}
		start[0], count[0] = rows.Start, rows.Len()
	}
	data, err := t.read(v, step, start, count)
	if err != nil {
		return err
	}
	return t.write(v, -1, start, count, data)
}

// fullStep returns the last step in which v has its full shape, or its
// last step if no step covers the whole shape.
func fullStep(v *SourceVariable) int {
	for i := len(v.Steps) - 1; i >= 0; i-- {
		if equalShape(v.StepShapes[v.Steps[i]], v.Shape) {
			return v.Steps[i]
		}
	}
	return v.Steps[len(v.Steps)-1]
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *transfer) read(v *DestinationVariable, step int, start, count []int) (interface{}, error) {
	begin := time.Now()
	data, err := t.src.Read(v.SourceName, step, start, count)
	if err != nil {
		return nil, &TransferError{Op: "read", Variable: v.SourceName, Step: step, Err: err}
	}
	if n, want := Len(data), product(count); n != want {
		return nil, &TransferError{Op: "read", Variable: v.SourceName, Step: step,
			Err: fmt.Errorf("got %d elements, want %d", n, want)}
	}
	if !matchesType(v.Type, data) {
		return nil, &TransferError{Op: "read", Variable: v.SourceName, Step: step,
			Err: fmt.Errorf("got %T for a variable of type %v", data, v.Type)}
	}
	t.rec.ObserveRead(Len(data)*v.Type.Size(), time.Since(begin))
	return data, nil
}

func (t *transfer) write(v *DestinationVariable, step int, start, count []int, data interface{}) error {
	begin := time.Now()
	if err := t.dst.WriteRegion(v.Name, start, count, data); err != nil {
		return &TransferError{Op: "write", Variable: v.Name, Step: step, Err: err}
	}
	t.rec.ObserveWrite(Len(data)*v.Type.Size(), time.Since(begin))
	return nil
}
