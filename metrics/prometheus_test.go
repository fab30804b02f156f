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

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "")
	require.NoError(t, err)

	p.ObserveRead(100, time.Millisecond)
	p.ObserveRead(28, time.Millisecond)
	p.ObserveWrite(64, 2*time.Millisecond)
	p.VariableDone()
	p.VariableDone()
	p.BarrierWait("schema", time.Second)
	p.SessionDone(true, time.Minute)
	p.SessionDone(false, time.Minute)

	require.Equal(t, 128.0, testutil.ToFloat64(p.bytesRead))
	require.Equal(t, 64.0, testutil.ToFloat64(p.bytesWritten))
	require.Equal(t, 2.0, testutil.ToFloat64(p.variables))
	require.Equal(t, 1.0, testutil.ToFloat64(p.sessions.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.sessions.WithLabelValues("failure")))
	require.Equal(t, 1, testutil.CollectAndCount(p.barrierWait))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, "x")
	require.NoError(t, err)
	_, err = NewPrometheus(reg, "x")
	require.Error(t, err)
}

func TestPush(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		body  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		body += string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "")
	require.NoError(t, err)
	p.VariableDone()

	require.NoError(t, Push(context.Background(), srv.URL, "adios2nc", reg, map[string]string{"rank": "3"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], "/metrics/job/adios2nc"), paths[0])
	require.Contains(t, paths[0], "rank/3")
	require.NotEmpty(t, body)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveRead(1, time.Second)
	r.ObserveWrite(1, time.Second)
	r.VariableDone()
	r.BarrierWait("b", time.Second)
	r.SessionDone(true, time.Second)
}
