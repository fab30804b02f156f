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
	"fmt"

	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultSource is the name of the default source backend.
	DefaultSource = "adios2"
	// DefaultFormat is the name of the default destination store.
	DefaultFormat = "netcdf4"
)

// OnFailure is the policy for a persistent output left behind by a
// failed conversion.
type OnFailure int

const (
	// KeepPartial leaves the incomplete output in place for inspection.
	KeepPartial OnFailure = iota
	// RemovePartial deletes the incomplete output.
	RemovePartial
)

// ParseOnFailure parses "keep" or "remove".
func ParseOnFailure(s string) (OnFailure, error) {
	switch s {
	case "keep", "":
		return KeepPartial, nil
	case "remove":
		return RemovePartial, nil
	}
	return KeepPartial, fmt.Errorf("adios2nc: invalid failure policy %q", s)
}

func (p OnFailure) String() string {
	if p == RemovePartial {
		return "remove"
	}
	return "keep"
}

type options struct {
	sourceName string
	opener     Opener
	formatName string
	store      Store
	coord      Coordinator
	log        logrus.FieldLogger
	rec        metrics.Recorder
	plan       PlanOptions
	minPart    int
	onFailure  OnFailure
}

func newOptions(opts []Option) *options {
	o := &options{
		sourceName: DefaultSource,
		formatName: DefaultFormat,
		coord:      SingleProcess{},
		log:        logrus.StandardLogger(),
		rec:        metrics.Nop{},
		plan:       PlanOptions{Naming: NameByExtent, Compression: DefaultCompression},
		minPart:    DefaultMinPartition,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a conversion.
type Option func(*options)

// WithSource selects the registered source backend with the given name.
func WithSource(name string) Option {
	return func(o *options) { o.sourceName = name }
}

// WithOpener sets the function that opens the source dataset, overriding
// WithSource.
func WithOpener(op Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithFormat selects the registered destination store with the given
// name for persistent output.
func WithFormat(name string) Option {
	return func(o *options) { o.formatName = name }
}

// WithStore sets the store used for persistent output, overriding
// WithFormat.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithCoordinator sets the coordinator of a distributed run.
func WithCoordinator(c Coordinator) Option {
	return func(o *options) { o.coord = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.rec = r }
}

// WithCompression sets the compression of non-scalar variables.
func WithCompression(c Compression) Option {
	return func(o *options) { o.plan.Compression = c }
}

// WithDimNaming sets how dimensions are named.
func WithDimNaming(n DimNaming) Option {
	return func(o *options) { o.plan.Naming = n }
}

// WithMinPartition sets the smallest leading extent at which fixed
// variables are split between workers.
func WithMinPartition(n int) Option {
	return func(o *options) { o.minPart = n }
}

// WithOnFailure sets the policy for incomplete persistent output.
func WithOnFailure(p OnFailure) Option {
	return func(o *options) { o.onFailure = p }
}
