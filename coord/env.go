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

// Package coord provides the coordinators used by distributed
// conversions: discovery of a worker's rank from the process launcher,
// and a coordinator that synchronizes workers through a NATS JetStream
// key-value bucket.
package coord

import (
	"fmt"
	"os"
	"strconv"
)

// launcherVars lists the rank and size variables set by common process
// launchers, in order of preference.
var launcherVars = [][2]string{
	{"OMPI_COMM_WORLD_RANK", "OMPI_COMM_WORLD_SIZE"}, // Open MPI
	{"PMI_RANK", "PMI_SIZE"},                         // MPICH, Intel MPI
	{"SLURM_PROCID", "SLURM_NTASKS"},                 // srun
}

// jobVars lists the variables holding a job identifier shared by every
// worker of a launch.
var jobVars = []string{"SLURM_JOB_ID", "PBS_JOBID", "OMPI_MCA_ess_base_jobid"}

// FromEnv returns the rank and size of this worker as set by the
// process launcher. ok is false if no launcher variables are set.
func FromEnv() (rank, size int, ok bool, err error) {
	for _, v := range launcherVars {
		r, s := os.Getenv(v[0]), os.Getenv(v[1])
		if r == "" || s == "" {
			continue
		}
		if rank, err = strconv.Atoi(r); err != nil {
			return 0, 0, false, fmt.Errorf("adios2nc/coord: parsing %s: %v", v[0], err)
		}
		if size, err = strconv.Atoi(s); err != nil {
			return 0, 0, false, fmt.Errorf("adios2nc/coord: parsing %s: %v", v[1], err)
		}
		if size < 1 || rank < 0 || rank >= size {
			return 0, 0, false, fmt.Errorf("adios2nc/coord: %s=%d and %s=%d are not a valid rank and size", v[0], rank, v[1], size)
		}
		return rank, size, true, nil
	}
	return 0, 1, false, nil
}

// JobID returns the identifier of the launcher job this worker belongs
// to, or "" if there is none.
func JobID() string {
	for _, v := range jobVars {
		if id := os.Getenv(v); id != "" {
			return id
		}
	}
	return ""
}
