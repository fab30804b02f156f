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

package adios2nc_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/internal/fixture"
)

// group coordinates workers running in goroutines of one process.
type group struct {
	size int

	mu       sync.Mutex
	arrived  map[string][][]byte
	released map[string]chan struct{}
	mismatch map[string]bool
	aborted  chan struct{}
	once     sync.Once
}

func newGroup(size int) *group {
	return &group{
		size:     size,
		arrived:  make(map[string][][]byte),
		released: make(map[string]chan struct{}),
		mismatch: make(map[string]bool),
		aborted:  make(chan struct{}),
	}
}

func (g *group) worker(rank int) *worker { return &worker{g: g, rank: rank} }

func (g *group) wait(ctx context.Context, name string, token []byte) error {
	g.mu.Lock()
	ch, ok := g.released[name]
	if !ok {
		ch = make(chan struct{})
		g.released[name] = ch
	}
	g.arrived[name] = append(g.arrived[name], token)
	if len(g.arrived[name]) == g.size {
		for _, tok := range g.arrived[name][1:] {
			if !bytes.Equal(tok, g.arrived[name][0]) {
				g.mismatch[name] = true
			}
		}
		close(ch)
	}
	g.mu.Unlock()

	select {
	case <-ch:
	case <-g.aborted:
		select {
		case <-ch:
		default:
			return adios2nc.ErrPeerAborted
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mismatch[name] {
		return adios2nc.ErrBarrierMismatch
	}
	return nil
}

type worker struct {
	g    *group
	rank int
}

func (w *worker) Rank() int { return w.rank }
func (w *worker) Size() int { return w.g.size }

func (w *worker) Barrier(ctx context.Context, name string) error { return w.g.wait(ctx, name, nil) }

func (w *worker) Agree(ctx context.Context, name string, token []byte) error {
	return w.g.wait(ctx, name, token)
}

func (w *worker) Abort(context.Context, error) error {
	w.g.once.Do(func() { close(w.g.aborted) })
	return nil
}

// write is one region written to a recorded container.
type write struct {
	rank         int
	variable     string
	start, count []int
	data         interface{}
}

// recorder is a container shared by the workers of a group that records
// what each of them does to it.
type recorder struct {
	access adios2nc.Access

	mu        sync.Mutex
	shapes    map[string][]int
	writes    []write
	creates   int
	attaches  int
	closes    int
	discards  int
	open      int
	maxOpen   int
	endDefs   int
	attachLog []int
}

func newRecorder(access adios2nc.Access) *recorder {
	return &recorder{access: access, shapes: make(map[string][]int)}
}

// store returns the Store used by the worker of the given rank.
func (r *recorder) store(rank int) adios2nc.Store { return &recordingStore{r: r, rank: rank} }

type recordingStore struct {
	r    *recorder
	rank int
}

func (s *recordingStore) Create(_ context.Context, path string) (adios2nc.Destination, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.creates++
	s.r.opened()
	return &recordingDest{r: s.r, rank: s.rank, creator: true}, nil
}

func (s *recordingStore) Attach(_ context.Context, path string) (adios2nc.Destination, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.endDefs == 0 {
		return nil, errors.New("attach before the schema is defined")
	}
	s.r.attaches++
	s.r.attachLog = append(s.r.attachLog, s.rank)
	s.r.opened()
	return &recordingDest{r: s.r, rank: s.rank}, nil
}

func (s *recordingStore) Access() adios2nc.Access { return s.r.access }

func (r *recorder) opened() {
	r.open++
	if r.open > r.maxOpen {
		r.maxOpen = r.open
	}
}

type recordingDest struct {
	r       *recorder
	rank    int
	creator bool
	done    bool
}

func (d *recordingDest) CreateDimension(*adios2nc.DimensionSpec) error { return d.define() }

func (d *recordingDest) CreateVariable(v *adios2nc.DestinationVariable) error {
	if err := d.define(); err != nil {
		return err
	}
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.shapes[v.Name] = append([]int(nil), v.Shape...)
	return nil
}

func (d *recordingDest) SetAttribute(string, adios2nc.Attribute) error { return d.define() }

func (d *recordingDest) define() error {
	if !d.creator {
		return adios2nc.ErrSchemaFrozen
	}
	return nil
}

func (d *recordingDest) EndDef() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.endDefs++
	return nil
}

func (d *recordingDest) WriteRegion(variable string, start, count []int, data interface{}) error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	if d.done {
		return adios2nc.ErrClosed
	}
	d.r.writes = append(d.r.writes, write{
		rank:     d.rank,
		variable: variable,
		start:    append([]int(nil), start...),
		count:    append([]int(nil), count...),
		data:     data,
	})
	return nil
}

func (d *recordingDest) Close() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.done = true
	d.r.closes++
	d.r.open--
	return nil
}

func (d *recordingDest) Discard() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.done = true
	d.r.discards++
	d.r.open--
	return nil
}

// coverage returns, for each variable, how often each element was
// written.
func (r *recorder) coverage() map[string][]int {
	out := make(map[string][]int)
	for name, shape := range r.shapes {
		out[name] = make([]int, product(shape))
	}
	for _, w := range r.writes {
		shape := r.shapes[w.variable]
		forEachIndex(shape, w.start, w.count, func(i int) { out[w.variable][i]++ })
	}
	return out
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// forEachIndex calls f with the row-major offset of each element of the
// region.
func forEachIndex(shape, start, count []int, f func(int)) {
	if product(count) == 0 {
		return
	}
	idx := make([]int, len(shape))
	for {
		off := 0
		for i := range shape {
			off = off*shape[i] + start[i] + idx[i]
		}
		f(off)
		i := len(shape) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// runGroup runs one conversion per worker and returns their errors.
func runGroup(t *testing.T, size int, r *recorder, srcs []*fixture.Source, opts ...adios2nc.Option) []error {
	t.Helper()
	g := newGroup(size)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			o := append([]adios2nc.Option{
				adios2nc.WithOpener(srcs[rank].Opener()),
				adios2nc.WithStore(r.store(rank)),
				adios2nc.WithCoordinator(g.worker(rank)),
				adios2nc.WithLogger(quietLogger()),
			}, opts...)
			_, errs[rank] = adios2nc.Convert(ctx, "wrfout.bp", "wrfout.nc", false, o...)
		}(rank)
	}
	wg.Wait()
	return errs
}

func sources(n int) []*fixture.Source {
	out := make([]*fixture.Source, n)
	for i := range out {
		out[i] = fixture.WRF()
	}
	return out
}

func TestDistributed(t *testing.T) {
	for _, access := range []adios2nc.Access{adios2nc.SharedRegions, adios2nc.Serialized} {
		for _, size := range []int{2, 3, 5} {
			t.Run(fmt.Sprintf("%v/%d", access, size), func(t *testing.T) {
				r := newRecorder(access)
				for rank, err := range runGroup(t, size, r, sources(size), adios2nc.WithMinPartition(2)) {
					if err != nil {
						t.Fatalf("rank %d: %v", rank, err)
					}
				}
				if r.creates != 1 || r.endDefs != 1 {
					t.Errorf("%d creates and %d schema definitions", r.creates, r.endDefs)
				}
				if r.attaches != size-1 || r.closes != size || r.discards != 0 {
					t.Errorf("%d attaches, %d closes, %d discards", r.attaches, r.closes, r.discards)
				}
				if access == adios2nc.Serialized {
					if r.maxOpen != 1 {
						t.Errorf("%d handles open at once", r.maxOpen)
					}
					want := make([]int, 0, size-1)
					for rank := 1; rank < size; rank++ {
						want = append(want, rank)
					}
					if !reflect.DeepEqual(r.attachLog, want) {
						t.Errorf("turn order %v != %v", r.attachLog, want)
					}
				}
				for name, counts := range r.coverage() {
					for i, c := range counts {
						if c != 1 {
							t.Fatalf("%s element %d written %d times", name, i, c)
						}
					}
				}
			})
		}
	}
}

func TestDistributedShares(t *testing.T) {
	r := newRecorder(adios2nc.SharedRegions)
	for _, err := range runGroup(t, 2, r, sources(2), adios2nc.WithMinPartition(2)) {
		if err != nil {
			t.Fatal(err)
		}
	}
	rows := map[string]map[int][]int{}
	for _, w := range r.writes {
		if len(w.start) == 0 {
			continue
		}
		if rows[w.variable] == nil {
			rows[w.variable] = map[int][]int{}
		}
		rows[w.variable][w.rank] = append(rows[w.variable][w.rank], w.start[0])
	}
	// Steps 0 and 1 go to rank 0 and step 2 to rank 1.
	if want := map[int][]int{0: {0, 1}, 1: {2}}; !reflect.DeepEqual(rows["T"], want) {
		t.Errorf("T steps %v != %v", rows["T"], want)
	}
	// HGT_M has 3 rows, split 2 and 1.
	if want := map[int][]int{0: {0}, 1: {2}}; !reflect.DeepEqual(rows["HGT_M"], want) {
		t.Errorf("HGT_M rows %v != %v", rows["HGT_M"], want)
	}
	for _, w := range r.writes {
		if w.variable == "P_TOP" && w.rank != 0 {
			t.Errorf("scalar written by rank %d", w.rank)
		}
		if w.variable == "T" && w.start[0] == 2 {
			want := fixture.Value(2, 5)
			if have := w.data.([]float32)[5]; have != want {
				t.Errorf("T step 2: %v != %v", have, want)
			}
		}
	}

	t.Run("small", func(t *testing.T) {
		r := newRecorder(adios2nc.SharedRegions)
		for _, err := range runGroup(t, 2, r, sources(2)) {
			if err != nil {
				t.Fatal(err)
			}
		}
		for _, w := range r.writes {
			if w.variable == "HGT_M" && (w.rank != 0 || w.count[0] != 3) {
				t.Errorf("small variable split: %+v", w)
			}
		}
	})
}

func TestDistributedAbort(t *testing.T) {
	srcs := sources(2)
	srcs[1].FailRead = "T"
	r := newRecorder(adios2nc.SharedRegions)
	errs := runGroup(t, 2, r, srcs)

	if !errors.Is(errs[1], fixture.ErrInjected) {
		t.Errorf("rank 1: %v", errs[1])
	}
	var ce *adios2nc.CoordinationError
	if !errors.As(errs[0], &ce) || !errors.Is(errs[0], adios2nc.ErrPeerAborted) {
		t.Errorf("rank 0: %v", errs[0])
	}
	if r.discards != 2 || r.closes != 0 {
		t.Errorf("%d discards, %d closes", r.discards, r.closes)
	}
	for _, s := range srcs {
		if !s.Closed {
			t.Error("source left open")
		}
	}
}

func TestDistributedMismatch(t *testing.T) {
	srcs := sources(2)
	srcs[1].Attrs = append(srcs[1].Attrs, adios2nc.Attribute{Name: "EXTRA", Value: []int32{1}})
	r := newRecorder(adios2nc.SharedRegions)
	for rank, err := range runGroup(t, 2, r, srcs) {
		if !errors.Is(err, adios2nc.ErrBarrierMismatch) {
			t.Errorf("rank %d: %v", rank, err)
		}
	}
	if len(r.writes) != 0 {
		t.Errorf("%d regions written after disagreement", len(r.writes))
	}
}

func TestDistributedDiskless(t *testing.T) {
	const size = 2
	g := newGroup(size)
	datasets := make([]*adios2nc.Dataset, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			datasets[rank], errs[rank] = adios2nc.Convert(context.Background(), "wrfout.bp", "wrfout.nc", true,
				adios2nc.WithOpener(fixture.WRF().Opener()),
				adios2nc.WithCoordinator(g.worker(rank)),
				adios2nc.WithLogger(quietLogger()))
		}(rank)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
	}
	// Each worker holds the full schema and the steps it transferred.
	for rank, ds := range datasets {
		v, ok := ds.Variable("U10")
		if !ok {
			t.Fatalf("rank %d: no U10", rank)
		}
		values := v.Values().([]float32)
		n := fixture.SouthNorth * fixture.WestEast
		for step := 0; step < fixture.Steps; step++ {
			mine := (rank == 0 && step < 2) || (rank == 1 && step == 2)
			got := values[step*n]
			if mine && got != fixture.Value(step, 0) {
				t.Errorf("rank %d step %d: %v", rank, step, got)
			}
			if !mine && got != 0 {
				t.Errorf("rank %d holds step %d", rank, step)
			}
		}
	}
}
