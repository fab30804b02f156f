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
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// abortTimeout bounds the time spent telling peers about a failure.
const abortTimeout = 10 * time.Second

// Convert converts the source dataset at input into a NetCDF container.
// If diskless is false the container is written to output and Convert
// returns a nil Dataset. If diskless is true nothing is written and the
// in-memory result is returned.
//
// In a distributed run every worker calls Convert with the same
// arguments and a coordinator set with WithCoordinator.
func Convert(ctx context.Context, input, output string, diskless bool, opts ...Option) (*Dataset, error) {
	s, err := NewSession(input, output, diskless, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// ConversionSession is one worker's conversion of one source dataset.
// It owns the source and destination handles and releases both when
// Run returns.
type ConversionSession struct {
	Input, Output string
	Mode          Mode

	opts *options
	log  logrus.FieldLogger

	src     Source
	dst     Destination
	created bool

	Schema *Schema
	Layout *Layout
}

// NewSession prepares a conversion of input to output.
func NewSession(input, output string, diskless bool, opts ...Option) (*ConversionSession, error) {
	o := newOptions(opts)
	store := o.store
	if store == nil && !diskless {
		var err error
		if store, err = LookupStore(o.formatName); err != nil {
			return nil, err
		}
	}
	if o.opener == nil {
		var err error
		if o.opener, err = LookupSource(o.sourceName); err != nil {
			return nil, err
		}
	}
	mode, err := SelectMode(diskless, store, o.coord)
	if err != nil {
		return nil, err
	}
	return &ConversionSession{
		Input:  input,
		Output: output,
		Mode:   mode,
		opts:   o,
		log: o.log.WithFields(logrus.Fields{
			"rank": mode.Coordinator.Rank(),
			"size": mode.Coordinator.Size(),
		}),
	}, nil
}

// Run carries out the conversion. When the output is in memory it
// returns the resulting Dataset.
func (s *ConversionSession) Run(ctx context.Context) (ds *Dataset, err error) {
	start := time.Now()
	defer func() {
		err = s.release(err)
		s.opts.rec.SessionDone(err == nil, time.Since(start))
		if err != nil {
			ds = nil
		}
	}()

	s.log.WithFields(logrus.Fields{"input": s.Input, "output": s.Output, "mode": s.Mode}).Info("starting conversion")
	if s.src, err = s.opts.opener(ctx, s.Input); err != nil {
		return nil, &DiscoveryError{Op: "open", Variable: s.Input, Err: err}
	}
	if s.Schema, err = Discover(s.src); err != nil {
		return nil, err
	}
	if s.Layout, err = Plan(s.Schema, s.opts.plan); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"variables":  len(s.Layout.Variables),
		"dimensions": len(s.Layout.Dimensions),
		"steps":      s.Layout.Steps,
	}).Info("schema planned")

	if s.Mode.creator() {
		if s.dst, err = s.Mode.Store.Create(ctx, s.Output); err != nil {
			return nil, &SchemaError{Op: "create container", Name: s.Output, Err: err}
		}
		s.created = true
		if err = Apply(s.dst, s.Layout); err != nil {
			return nil, err
		}
	}
	fp := make([]byte, 8)
	binary.BigEndian.PutUint64(fp, s.Layout.Fingerprint())
	if err = s.barrier(ctx, "schema", fp); err != nil {
		return nil, err
	}

	c := s.Mode.Coordinator
	work := NewWork(c.Rank(), c.Size(), s.Layout.Steps, s.opts.minPart)
	s.log.WithField("steps", work.Steps.String()).Info("transferring data")
	if s.Mode.Store.Access() == Serialized && c.Size() > 1 {
		err = s.transferInTurns(ctx, work)
	} else {
		err = s.transferShared(ctx, work)
	}
	if err != nil {
		return nil, err
	}

	if s.dst != nil {
		if err = s.dst.Close(); err != nil {
			s.dst = nil
			return nil, &TransferError{Op: "close", Variable: s.Output, Step: -1, Err: err}
		}
		if m, ok := s.dst.(*memoryDestination); ok {
			ds = m.ds
		}
		s.dst = nil
	}
	s.log.WithField("elapsed", time.Since(start).String()).Info("conversion finished")
	return ds, nil
}

// transferShared transfers this worker's share while peers do the same.
// Workers that attached close their handle before the final barrier;
// the creator finalizes the container after it.
func (s *ConversionSession) transferShared(ctx context.Context, work Work) error {
	if s.dst == nil {
		var err error
		if s.dst, err = s.Mode.Store.Attach(ctx, s.Output); err != nil {
			return &TransferError{Op: "attach", Variable: s.Output, Step: -1, Err: err}
		}
	}
	if err := Transfer(ctx, s.src, s.dst, s.Layout, work, s.log, s.opts.rec); err != nil {
		return err
	}
	if !s.created {
		err := s.dst.Close()
		s.dst = nil
		if err != nil {
			return &TransferError{Op: "close", Variable: s.Output, Step: -1, Err: err}
		}
	}
	return s.barrier(ctx, "transfer", nil)
}

// transferInTurns lets one worker at a time open the container, write
// its share and close it again.
func (s *ConversionSession) transferInTurns(ctx context.Context, work Work) error {
	c := s.Mode.Coordinator
	for turn := 0; turn < c.Size(); turn++ {
		if turn == c.Rank() {
			if err := s.transferTurn(ctx, work); err != nil {
				return err
			}
		}
		if err := s.barrier(ctx, fmt.Sprintf("turn-%d", turn), nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConversionSession) transferTurn(ctx context.Context, work Work) error {
	if s.dst == nil {
		var err error
		if s.dst, err = s.Mode.Store.Attach(ctx, s.Output); err != nil {
			return &TransferError{Op: "attach", Variable: s.Output, Step: -1, Err: err}
		}
	}
	if err := Transfer(ctx, s.src, s.dst, s.Layout, work, s.log, s.opts.rec); err != nil {
		return err
	}
	err := s.dst.Close()
	s.dst = nil
	if err != nil {
		return &TransferError{Op: "close", Variable: s.Output, Step: -1, Err: err}
	}
	return nil
}

// barrier waits for all workers at the named barrier. If token is not
// nil and the coordinator supports it, workers also check that they all
// hold the same token.
func (s *ConversionSession) barrier(ctx context.Context, name string, token []byte) error {
	c := s.Mode.Coordinator
	begin := time.Now()
	var err error
	if a, ok := c.(Agreer); ok && token != nil {
		err = a.Agree(ctx, name, token)
	} else {
		err = c.Barrier(ctx, name)
	}
	s.opts.rec.BarrierWait(name, time.Since(begin))
	if err != nil {
		return &CoordinationError{Barrier: name, Rank: c.Rank(), Err: err}
	}
	s.log.WithField("barrier", name).Debug("passed barrier")
	return nil
}

// release closes both handles. After a failure it discards the
// destination, applies the failure policy and tells peers to stop.
func (s *ConversionSession) release(err error) error {
	if err != nil {
		s.log.WithError(err).Error("conversion failed")
		if s.dst != nil {
			if derr := s.dst.Discard(); derr != nil {
				s.log.WithError(derr).Warn("discarding destination")
			}
			s.dst = nil
		}
		s.cleanup()
		s.abortPeers(err)
	}
	if s.src != nil {
		if cerr := s.src.Close(); cerr != nil && err == nil {
			err = &DiscoveryError{Op: "close", Variable: s.Input, Err: cerr}
		}
		s.src = nil
	}
	return err
}

func (s *ConversionSession) cleanup() {
	if s.Mode.Output != FileOutput || !s.created {
		return
	}
	log := s.log.WithField("output", s.Output)
	if s.opts.onFailure != RemovePartial {
		log.Warn("incomplete output left in place")
		return
	}
	if err := os.Remove(s.Output); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("removing incomplete output")
		return
	}
	log.Warn("incomplete output removed")
}

func (s *ConversionSession) abortPeers(cause error) {
	c := s.Mode.Coordinator
	a, ok := c.(Aborter)
	if !ok || c.Size() < 2 || errors.Is(cause, ErrPeerAborted) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	if err := a.Abort(ctx, cause); err != nil {
		s.log.WithError(err).Warn("notifying peers of failure")
	}
}
