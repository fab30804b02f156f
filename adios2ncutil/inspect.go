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

package adios2ncutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Summary describes the NetCDF layout of a converted dataset.
type Summary struct {
	Dimensions []DimensionSummary `yaml:"dimensions"`
	Variables  []VariableSummary  `yaml:"variables"`
	Attributes []AttributeSummary `yaml:"attributes,omitempty"`
}

// DimensionSummary describes a dimension.
type DimensionSummary struct {
	Name      string `yaml:"name"`
	Len       int    `yaml:"len"`
	Unlimited bool   `yaml:"unlimited,omitempty"`
}

// VariableSummary describes a variable and, for numeric variables, the
// range and mean of its values.
type VariableSummary struct {
	Name       string             `yaml:"name"`
	Type       string             `yaml:"type"`
	Dimensions []string           `yaml:"dimensions,flow"`
	Shape      []int              `yaml:"shape,flow"`
	Chunk      []int              `yaml:"chunk,flow,omitempty"`
	Deflate    int                `yaml:"deflate,omitempty"`
	Shuffle    bool               `yaml:"shuffle,omitempty"`
	Attributes []AttributeSummary `yaml:"attributes,omitempty"`
	Min        *float64           `yaml:"min,omitempty"`
	Max        *float64           `yaml:"max,omitempty"`
	Mean       *float64           `yaml:"mean,omitempty"`
}

// AttributeSummary is an attribute and its value.
type AttributeSummary struct {
	Name  string      `yaml:"name"`
	Type  string      `yaml:"type"`
	Value interface{} `yaml:"value"`
}

// RunInspect converts the input set in cfg in memory and writes a
// summary of the result to w.
func RunInspect(ctx context.Context, cfg *Cfg, w io.Writer) error {
	input := os.ExpandEnv(cfg.GetString("input"))
	if input == "" {
		return fmt.Errorf("adios2nc: you need to specify an input dataset (for example: --input=wrfout_d01.bp)")
	}
	format := cfg.GetString("inspect.format")
	if format != "text" && format != "yaml" {
		return fmt.Errorf("adios2nc: inspect.format must be text or yaml but is %q", format)
	}
	// Log messages go to standard error so they don't mix with the summary.
	log, closeLog, err := newLogger(cfg.GetString("log_level"), os.Stderr, "")
	if err != nil {
		return err
	}
	defer closeLog()
	if format == "yaml" {
		log.SetLevel(logrus.WarnLevel)
	}

	opts, err := conversionOptions(cfg, log)
	if err != nil {
		return err
	}
	localIn, cleanIn, err := maybeDownload(ctx, input, log)
	if err != nil {
		return err
	}
	defer cleanIn()

	ds, err := adios2nc.Convert(ctx, localIn, "", true, opts...)
	if err != nil {
		return err
	}
	s := Inspect(ds)
	if format == "yaml" {
		return s.WriteYAML(w)
	}
	return s.WriteText(w)
}

// Inspect summarizes ds.
func Inspect(ds *adios2nc.Dataset) *Summary {
	s := new(Summary)
	for _, d := range ds.Dimensions() {
		s.Dimensions = append(s.Dimensions, DimensionSummary{Name: d.Name, Len: d.Len, Unlimited: d.Unbounded})
	}
	for _, name := range ds.Variables() {
		v, _ := ds.Variable(name)
		vs := VariableSummary{
			Name:       name,
			Type:       v.Type().String(),
			Dimensions: v.Dimensions(),
			Shape:      v.Shape(),
			Chunk:      v.Chunk(),
			Deflate:    v.Compression().Level,
			Shuffle:    v.Compression().Shuffle,
			Attributes: attributeSummaries(v.Attributes()),
		}
		if x, ok := toFloat64(v.Values()); ok && v.Type().Numeric() && len(x) > 0 {
			lo, hi, mean := floats.Min(x), floats.Max(x), stat.Mean(x, nil)
			vs.Min, vs.Max, vs.Mean = &lo, &hi, &mean
		}
		s.Variables = append(s.Variables, vs)
	}
	s.Attributes = attributeSummaries(ds.Attributes())
	return s
}

func attributeSummaries(attrs []adios2nc.Attribute) []AttributeSummary {
	var out []AttributeSummary
	for _, a := range attrs {
		out = append(out, AttributeSummary{Name: a.Name, Type: a.Type().String(), Value: a.Value})
	}
	return out
}

// toFloat64 converts numeric values to float64.
func toFloat64(values interface{}) ([]float64, bool) {
	if f, ok := values.([]float64); ok {
		return f, true
	}
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]float64, v.Len())
	for i := range out {
		e := v.Index(i)
		switch e.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out[i] = float64(e.Int())
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out[i] = float64(e.Uint())
		case reflect.Float32:
			out[i] = e.Float()
		default:
			return nil, false
		}
	}
	return out, true
}

// WriteYAML writes s as YAML.
func (s *Summary) WriteYAML(w io.Writer) error {
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(s); err != nil {
		return fmt.Errorf("adios2nc: encoding summary: %v", err)
	}
	return e.Close()
}

// WriteText writes s in a layout similar to ncdump -h.
func (s *Summary) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("dimensions:\n")
	for _, d := range s.Dimensions {
		if d.Unlimited {
			fmt.Fprintf(&b, "\t%s = UNLIMITED ; // (%d currently)\n", d.Name, d.Len)
		} else {
			fmt.Fprintf(&b, "\t%s = %d ;\n", d.Name, d.Len)
		}
	}
	b.WriteString("variables:\n")
	for _, v := range s.Variables {
		fmt.Fprintf(&b, "\t%s %s(%s) ;\n", v.Type, v.Name, strings.Join(v.Dimensions, ", "))
		for _, a := range v.Attributes {
			fmt.Fprintf(&b, "\t\t%s:%s = %s ;\n", v.Name, a.Name, formatValue(a.Value))
		}
		if v.Chunk != nil {
			fmt.Fprintf(&b, "\t\t%s:_ChunkSizes = %v ;\n", v.Name, v.Chunk)
		}
		if v.Deflate > 0 {
			fmt.Fprintf(&b, "\t\t%s:_DeflateLevel = %d ;\n", v.Name, v.Deflate)
		}
		if v.Min != nil {
			fmt.Fprintf(&b, "\t\t// min %g, max %g, mean %g\n", *v.Min, *v.Max, *v.Mean)
		}
	}
	if len(s.Attributes) > 0 {
		b.WriteString("\n// global attributes:\n")
		for _, a := range s.Attributes {
			fmt.Fprintf(&b, "\t\t:%s = %s ;\n", a.Name, formatValue(a.Value))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []string:
		q := make([]string, len(x))
		for i, s := range x {
			q[i] = fmt.Sprintf("%q", s)
		}
		return strings.Join(q, ", ")
	}
	s := fmt.Sprint(v)
	return strings.Trim(s, "[]")
}
