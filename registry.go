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
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	sources    = make(map[string]Opener)
	stores     = make(map[string]Store)
)

// MemoryStoreName is the name under which the in-memory store is
// registered.
const MemoryStoreName = "memory"

func init() {
	RegisterStore(MemoryStoreName, MemoryStore{})
}

// RegisterSource makes a source backend available by name.
// It panics if the name is already registered.
func RegisterSource(name string, o Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if o == nil {
		panic("adios2nc: RegisterSource opener is nil")
	}
	if _, dup := sources[name]; dup {
		panic("adios2nc: RegisterSource called twice for " + name)
	}
	sources[name] = o
}

// RegisterStore makes a destination store available by name.
// It panics if the name is already registered.
func RegisterStore(name string, s Store) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if s == nil {
		panic("adios2nc: RegisterStore store is nil")
	}
	if _, dup := stores[name]; dup {
		panic("adios2nc: RegisterStore called twice for " + name)
	}
	stores[name] = s
}

// LookupSource returns the source backend registered under name.
func LookupSource(name string) (Opener, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	o, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("adios2nc: source %q: %w (have %v)", name, ErrUnknownBackend, sourceNames())
	}
	return o, nil
}

// LookupStore returns the destination store registered under name.
func LookupStore(name string) (Store, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := stores[name]
	if !ok {
		return nil, fmt.Errorf("adios2nc: store %q: %w (have %v)", name, ErrUnknownBackend, storeNames())
	}
	return s, nil
}

// sourceNames returns the sorted names of the registered sources. The
// caller holds registryMu.
func sourceNames() []string {
	var names []string
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// storeNames returns the sorted names of the registered stores. The
// caller holds registryMu.
func storeNames() []string {
	var names []string
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
