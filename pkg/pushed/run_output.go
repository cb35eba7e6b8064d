package pushed

import (
	"encoding/json"
	"os"
)

// RunOutput is the machine-readable description of one pipeline run,
// written by --file-output
type RunOutput struct {
	// Published is absent when the trigger gate skipped the push
	Published *Artifact `json:"published,omitempty"`
	// Trace is internal metadata such as start/end and env; optional
	Trace *BuildTrace `json:"trace,omitempty"`
}

func (o *RunOutput) WriteJSON(f *os.File) error {
	j, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = f.Write(j)
	return err
}
