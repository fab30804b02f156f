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

package coord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/cenkalti/backoff"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

const (
	// DefaultTTL is the default lifetime of a run's coordination bucket.
	DefaultTTL = 24 * time.Hour
	// DefaultTimeout is the default time a worker waits at a barrier.
	DefaultTimeout = 10 * time.Minute

	bucketPrefix  = "adios2nc_"
	bucketRetries = 5
)

var invalidBucketChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// BucketName returns the name of the key-value bucket used by the run
// with the given identifier.
func BucketName(runID string) string {
	return bucketPrefix + invalidBucketChars.ReplaceAllString(runID, "_")
}

// RunID returns a run identifier shared by every worker converting to
// output: the launcher job identifier if there is one, otherwise a hash
// of the output path.
func RunID(output string) string {
	if id := JobID(); id != "" {
		return id
	}
	return strconv.FormatUint(xxh3.HashString(output), 16)
}

// NATSConfig configures a NATS coordinator.
type NATSConfig struct {
	// RunID identifies the run. Every worker of a run must use the same
	// RunID, and RunIDs must not be reused while the bucket of an
	// earlier run is alive.
	RunID string

	// Rank is the index of this worker. If it is negative the worker
	// claims the lowest free rank.
	Rank int

	// Size is the number of workers.
	Size int

	// TTL is the lifetime of the coordination bucket.
	TTL time.Duration

	// Timeout bounds the wait at each barrier.
	Timeout time.Duration

	Log logrus.FieldLogger
}

// NATS is a coordinator that synchronizes the workers of a run through
// a NATS JetStream key-value bucket. Each worker records its arrival at
// a barrier under "barrier.<name>.<rank>" and watches the bucket until
// every rank has arrived. A failing worker writes "abort.<rank>", which
// releases its peers.
type NATS struct {
	kv      jetstream.KeyValue
	rank    int
	size    int
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewNATS creates a coordinator for the run described by cfg on the
// connection nc.
func NewNATS(ctx context.Context, nc *nats.Conn, cfg NATSConfig) (*NATS, error) {
	if cfg.RunID == "" {
		return nil, fmt.Errorf("adios2nc/coord: missing run id")
	}
	if cfg.Size < 1 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("adios2nc/coord: invalid rank %d of %d workers", cfg.Rank, cfg.Size)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("adios2nc/coord: %w", err)
	}
	kv, err := ensureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      BucketName(cfg.RunID),
		Description: "adios2nc run " + cfg.RunID,
		History:     1,
		TTL:         cfg.TTL,
	})
	if err != nil {
		return nil, err
	}
	n := &NATS{
		kv:      kv,
		rank:    cfg.Rank,
		size:    cfg.Size,
		timeout: cfg.Timeout,
	}
	if n.rank < 0 {
		if n.rank, err = n.claimRank(ctx); err != nil {
			return nil, err
		}
	}
	n.log = cfg.Log.WithFields(logrus.Fields{"run": cfg.RunID, "rank": n.rank})
	n.log.WithField("size", n.size).Debug("joined run")
	return n, nil
}

// ensureBucket creates the bucket or opens it if another worker already
// has. Creation races between workers are retried.
func ensureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	var kv jetstream.KeyValue
	op := func() error {
		var err error
		kv, err = js.CreateKeyValue(ctx, cfg)
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, cfg.Bucket)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), bucketRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("adios2nc/coord: opening bucket %s: %w", cfg.Bucket, err)
	}
	return kv, nil
}

// claimRank claims the lowest rank not yet claimed by another worker.
func (n *NATS) claimRank(ctx context.Context) (int, error) {
	host, _ := os.Hostname()
	owner := fmt.Sprintf("%s:%d", host, os.Getpid())
	for r := 0; r < n.size; r++ {
		_, err := n.kv.Create(ctx, "rank."+strconv.Itoa(r), []byte(owner))
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return -1, fmt.Errorf("adios2nc/coord: claiming rank %d: %w", r, err)
		}
	}
	return -1, fmt.Errorf("adios2nc/coord: all %d ranks are claimed", n.size)
}

// Rank returns the index of this worker.
func (n *NATS) Rank() int { return n.rank }

// Size returns the number of workers.
func (n *NATS) Size() int { return n.size }

// Barrier returns once every worker has arrived at the named barrier.
func (n *NATS) Barrier(ctx context.Context, name string) error {
	_, err := n.wait(ctx, name, nil)
	return err
}

// Agree is a barrier at which every worker must arrive with the same
// token.
func (n *NATS) Agree(ctx context.Context, name string, token []byte) error {
	tokens, err := n.wait(ctx, name, token)
	if err != nil {
		return err
	}
	var differ []int
	for r, t := range tokens {
		if !bytes.Equal(t, token) {
			differ = append(differ, r)
		}
	}
	if len(differ) > 0 {
		return fmt.Errorf("%w: ranks %v differ from rank %d", adios2nc.ErrBarrierMismatch, differ, n.rank)
	}
	return nil
}

// Abort tells the other workers that this one has failed. Workers
// waiting at a barrier, and any arriving later, return
// adios2nc.ErrPeerAborted.
func (n *NATS) Abort(ctx context.Context, cause error) error {
	msg := "aborted"
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := n.kv.PutString(ctx, "abort."+strconv.Itoa(n.rank), msg); err != nil {
		return fmt.Errorf("adios2nc/coord: %w", err)
	}
	return nil
}

// wait records this worker's arrival at the named barrier and returns
// the values left by every rank once all have arrived.
func (n *NATS) wait(ctx context.Context, name string, token []byte) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	w, err := n.kv.WatchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("adios2nc/coord: watching barrier %s: %w", name, err)
	}
	defer w.Stop()

	prefix := "barrier." + name + "."
	if token == nil {
		token = []byte{0}
	}
	if _, err = n.kv.Put(ctx, prefix+strconv.Itoa(n.rank), token); err != nil {
		return nil, fmt.Errorf("adios2nc/coord: arriving at barrier %s: %w", name, err)
	}

	tokens := make([][]byte, n.size)
	arrived := 0
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("adios2nc/coord: %d of %d workers at barrier %s: %w", arrived, n.size, name, ctx.Err())
		case e, ok := <-w.Updates():
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("adios2nc/coord: %d of %d workers at barrier %s: %w", arrived, n.size, name, err)
				}
				return nil, fmt.Errorf("adios2nc/coord: watcher for barrier %s stopped", name)
			}
			if e == nil || e.Operation() != jetstream.KeyValuePut {
				continue
			}
			key := e.Key()
			if strings.HasPrefix(key, "abort.") {
				return nil, fmt.Errorf("%w: worker %s: %s", adios2nc.ErrPeerAborted, strings.TrimPrefix(key, "abort."), e.Value())
			}
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			r, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
			if err != nil || r < 0 || r >= n.size {
				continue
			}
			if tokens[r] == nil {
				arrived++
			}
			tokens[r] = e.Value()
			if arrived == n.size {
				return tokens, nil
			}
		}
	}
}

// Dial connects to the NATS server at url, retrying with exponential
// backoff until ctx is done.
func Dial(ctx context.Context, url string, log logrus.FieldLogger) (*nats.Conn, error) {
	var nc *nats.Conn
	err := backoff.RetryNotify(
		func() error {
			var err error
			nc, err = nats.Connect(url, nats.Name("adios2nc"))
			return err
		},
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		func(err error, d time.Duration) {
			log.WithError(err).WithField("url", url).Warnf("connecting to NATS: retrying in %v", d)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("adios2nc/coord: connecting to %s: %w", url, err)
	}
	return nc, nil
}
