package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/jobs"
	"reelsmith/internal/services"
	"reelsmith/internal/services/scriptllm"
	"reelsmith/internal/steps"
)

// scriptSteps drafts a script for the job's project and writes it to the
// asset directory as a JSON document. The draft file is the job's result;
// importing it into the sentence store is the CRUD layer's move.
func (p *Pipeline) scriptSteps(job *jobs.Job, long bool) []steps.Step {
	var script scriptllm.Script

	draft := steps.Step{
		Name: "draft-script",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			topic, guidance, err := p.scriptInputs(ctx, job)
			if err != nil {
				return err
			}
			exec.ReportProgress(ctx, 10, "drafting script")
			if long {
				script, err = p.deps.Script.DraftLong(ctx, topic, guidance)
			} else {
				script, err = p.deps.Script.Draft(ctx, topic, guidance)
			}
			return err
		},
	}

	persist := steps.Step{
		Name: "persist-script",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			path := p.scriptPath(job)
			encoded, err := json.MarshalIndent(script, "", "  ")
			if err != nil {
				return services.Wrap(services.ErrExecution, "pipeline", "persist-script", "encode script", err)
			}
			// Overwrite-in-place keeps re-execution idempotent.
			if err := fileutil.WriteFileAtomic(path, encoded, 0o644); err != nil {
				return services.Wrap(services.ErrExecution, "pipeline", "persist-script", "write script file", err)
			}
			exec.SetResult(path)
			return nil
		},
	}

	return []steps.Step{draft, persist}
}

// scriptInputs derives the drafting prompt from the job subject. The topic
// rides in the outline reference; project-level guidance is optional.
func (p *Pipeline) scriptInputs(_ context.Context, job *jobs.Job) (string, string, error) {
	topic := job.Subject.OutlineID
	if topic == "" {
		topic = job.Subject.ProjectID
	}
	if topic == "" {
		return "", "", services.Wrap(services.ErrValidation, "pipeline", "draft-script",
			"script job needs a project or outline subject", nil)
	}
	return topic, "", nil
}

func (p *Pipeline) scriptPath(job *jobs.Job) string {
	name := fmt.Sprintf("script-%d.json", job.ID)
	return filepath.Join(p.deps.Config.Paths.AssetDir, "scripts", name)
}
