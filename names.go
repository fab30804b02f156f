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
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zeebo/xxh3"
)

// MaxNameLen is the longest name, in bytes, that NetCDF accepts.
const MaxNameLen = 256

// reservedNames are the attribute and object names that the NetCDF-4
// library uses for its own bookkeeping.
var reservedNames = map[string]bool{
	"_NCProperties":       true,
	"_IsNetcdf4":          true,
	"_SuperblockVersion":  true,
	"_Netcdf4Dimid":       true,
	"_Netcdf4Coordinates": true,
	"_Format":             true,
	"_Endianness":         true,
	"_Storage":            true,
	"_ChunkSizes":         true,
	"_DeflateLevel":       true,
	"_Shuffle":            true,
	"_Fletcher32":         true,
	"_NoFill":             true,
	"_Filter":             true,
	"_Codecs":             true,
	"_NCZARR_ATTR":        true,
	"_QuantizeBitGroomNumberOfSignificantDigits":        true,
	"_QuantizeGranularBitRoundNumberOfSignificantDigits": true,
	"_QuantizeBitRoundNumberOfSignificantBits":          true,
}

// Reserved reports whether name is reserved by the NetCDF-4 library.
func Reserved(name string) bool { return reservedNames[name] }

// RewriteName returns a valid NetCDF name for name. Valid names are
// returned unchanged. Otherwise invalid characters are replaced with
// '_', reserved names get a '_' suffix, and names longer than MaxNameLen
// are cut and suffixed with '_' and a hash of the full name.
func RewriteName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			r = '_'
		case r == '/' || r < 0x20 || r == 0x7f:
			r = '_'
		case i == 0 && r < utf8.RuneSelf && !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'):
			r = '_'
		}
		b.WriteRune(r)
		i += size
	}
	s := b.String()
	if s == "" {
		s = "_"
	}
	if t := strings.TrimRight(s, " "); len(t) != len(s) {
		s = t + strings.Repeat("_", len(s)-len(t))
	}
	if reservedNames[s] {
		s += "_"
	}
	if len(s) > MaxNameLen {
		suffix := fmt.Sprintf("_%08x", uint32(xxh3.HashString(name)))
		cut := MaxNameLen - len(suffix)
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + suffix
	}
	return s
}

// nameTable maps the source names of one namespace to destination names
// and rejects two source names that end up the same.
type nameTable struct {
	namespace string
	byDest    map[string]string
}

func newNameTable(namespace string) *nameTable {
	return &nameTable{
		namespace: namespace,
		byDest:    make(map[string]string),
	}
}

func (t *nameTable) add(source string) (string, error) {
	dest := RewriteName(source)
	if prev, ok := t.byDest[dest]; ok {
		return "", &SchemaError{Op: "name " + t.namespace, Name: source,
			Err: fmt.Errorf("%w: %q and %q both become %q", ErrNameCollision, prev, source, dest)}
	}
	t.byDest[dest] = source
	return dest, nil
}
