package main

import (
	"fmt"

	"github.com/vbluemer/Homogenization-for-Damask/internal/format"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
)

func tableMode() format.Mode {
	if rootFlags.markdown {
		return format.Markdown
	}
	return format.ASCII
}

// selectJobs keeps the job named name, or all jobs when name is empty.
func selectJobs(jobs []*job.Job, name string) ([]*job.Job, error) {
	if name == "" {
		return jobs, nil
	}
	for _, j := range jobs {
		if j.Name == name {
			return []*job.Job{j}, nil
		}
	}
	return nil, fmt.Errorf("no job named %q in batch", name)
}
