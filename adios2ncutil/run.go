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
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/cloud"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/coord"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/metrics"
)

// Run converts the input dataset set in cfg to the output file set in
// cfg. Log messages are written to stdout and to the log file.
func Run(ctx context.Context, cfg *Cfg, stdout io.Writer) error {
	input := os.ExpandEnv(cfg.GetString("input"))
	output := os.ExpandEnv(cfg.GetString("output"))
	if input == "" {
		return fmt.Errorf("adios2nc: you need to specify an input dataset (for example: --input=wrfout_d01.bp)")
	}
	if output == "" {
		return fmt.Errorf("adios2nc: you need to specify an output file (for example: --output=wrfout_d01.nc)")
	}

	logFile := cfg.GetString("log_file")
	if logFile == "" && !cloud.IsBlob(output) {
		logFile = checkLogFile(output)
	}
	log, closeLog, err := newLogger(cfg.GetString("log_level"), stdout, os.ExpandEnv(logFile))
	if err != nil {
		return err
	}
	defer closeLog()

	opts, err := conversionOptions(cfg, log)
	if err != nil {
		return err
	}
	format := cfg.GetString("format")
	opts = append(opts, adios2nc.WithFormat(format))
	onFailure, err := adios2nc.ParseOnFailure(cfg.GetString("on_failure"))
	if err != nil {
		return err
	}
	opts = append(opts, adios2nc.WithOnFailure(onFailure))
	minPart, err := cast.ToIntE(cfg.Get("min_partition"))
	if err != nil {
		return fmt.Errorf("adios2nc: min_partition: %v", err)
	}
	opts = append(opts, adios2nc.WithMinPartition(minPart))

	c, closeCoord, err := coordinator(ctx, cfg, output, log)
	if err != nil {
		return err
	}
	defer closeCoord()
	opts = append(opts, adios2nc.WithCoordinator(c))
	if c.Size() > 1 && cloud.IsBlob(output) {
		return fmt.Errorf("adios2nc: a distributed conversion needs an output on a shared filesystem, not %s", output)
	}
	if c.Size() > 1 && !cloud.IsBlob(output) {
		if _, err := os.Stat(filepath.Dir(output)); err != nil {
			return fmt.Errorf("adios2nc: the output directory doesn't exist: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	if cfg.GetString("metrics.pushgateway") != "" {
		rec, err := metrics.NewPrometheus(reg, "")
		if err != nil {
			return err
		}
		opts = append(opts, adios2nc.WithMetrics(rec))
	}

	localIn, cleanIn, err := maybeDownload(ctx, input, log)
	if err != nil {
		return err
	}
	defer cleanIn()
	up := new(uploader)
	localOut := up.maybeUpload(output)
	defer up.cleanup()
	if up.err != nil {
		return up.err
	}

	_, err = adios2nc.Convert(ctx, localIn, localOut, false, opts...)
	if err == nil && c.Rank() == 0 {
		err = up.uploadOutput(ctx, log)
	}
	pushMetrics(ctx, cfg, reg, c.Rank(), log)
	return err
}

// conversionOptions returns the conversion options shared by every
// command.
func conversionOptions(cfg *Cfg, log logrus.FieldLogger) ([]adios2nc.Option, error) {
	naming, err := adios2nc.ParseDimNaming(cfg.GetString("dim_names"))
	if err != nil {
		return nil, err
	}
	level, err := cast.ToIntE(cfg.Get("compression.level"))
	if err != nil {
		return nil, fmt.Errorf("adios2nc: compression.level: %v", err)
	}
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("adios2nc: compression.level must be between 0 and 9 but is %d", level)
	}
	shuffle, err := cast.ToBoolE(cfg.Get("compression.shuffle"))
	if err != nil {
		return nil, fmt.Errorf("adios2nc: compression.shuffle: %v", err)
	}
	return []adios2nc.Option{
		adios2nc.WithSource(cfg.GetString("source")),
		adios2nc.WithDimNaming(naming),
		adios2nc.WithCompression(adios2nc.Compression{Level: level, Shuffle: shuffle}),
		adios2nc.WithLogger(log),
	}, nil
}

// checkLogFile returns the default log file path for outputFile.
func checkLogFile(outputFile string) string {
	return strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
}

// newLogger returns a logger writing to stdout and, if logFile is not
// empty, appending to logFile. Workers of a distributed run share the
// log file.
func newLogger(level string, stdout io.Writer, logFile string) (*logrus.Logger, func(), error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("adios2nc: log_level: %v", err)
	}
	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	log.SetOutput(stdout)
	if logFile == "" {
		return log, func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("adios2nc: problem creating log file: %v", err)
	}
	log.SetOutput(io.MultiWriter(stdout, f))
	return log, func() { f.Close() }, nil
}

// coordinator returns the coordinator selected by cfg: a NATS
// coordinator if coord.nats_url is set, otherwise a single process.
func coordinator(ctx context.Context, cfg *Cfg, output string, log logrus.FieldLogger) (adios2nc.Coordinator, func(), error) {
	url := cfg.GetString("coord.nats_url")
	if url == "" {
		return adios2nc.SingleProcess{}, func() {}, nil
	}
	rank, size, ok, err := coord.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		rank = -1
	}
	if n := cfg.GetInt("coord.size"); n > 0 {
		size = n
	}
	runID := cfg.GetString("coord.run_id")
	if runID == "" {
		runID = coord.RunID(output)
	}
	nc, err := coord.Dial(ctx, url, log)
	if err != nil {
		return nil, nil, err
	}
	c, err := coord.NewNATS(ctx, nc, coord.NATSConfig{
		RunID:   runID,
		Rank:    rank,
		Size:    size,
		TTL:     cfg.GetDuration("coord.ttl"),
		Timeout: cfg.GetDuration("coord.timeout"),
		Log:     log,
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return c, nc.Close, nil
}

// pushMetrics sends the metrics of this worker to the Pushgateway, if
// one is configured. Failures are logged.
func pushMetrics(ctx context.Context, cfg *Cfg, g prometheus.Gatherer, rank int, log logrus.FieldLogger) {
	url := cfg.GetString("metrics.pushgateway")
	if url == "" {
		return
	}
	err := metrics.Push(ctx, url, cfg.GetString("metrics.job"), g, map[string]string{"rank": strconv.Itoa(rank)})
	if err != nil {
		log.WithError(err).Warn("pushing metrics")
	}
}
