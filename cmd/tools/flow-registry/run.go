// cmd/tools/flow-registry/run.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/facility"
	"application-wizard/internal/models"
	"application-wizard/internal/phone"
	"application-wizard/internal/rules"
	"application-wizard/internal/session"
	"application-wizard/internal/statesync"
	"application-wizard/internal/wizard"

	"github.com/redis/go-redis/v9"
)

// sessionScript is the input of the run command: how to open the session
// and the output of every step after the first.
type sessionScript struct {
	SessionID     string              `json:"session_id"`
	Intent        string              `json:"intent"`
	Language      string              `json:"language"`
	Employer      string              `json:"employer"`
	Resume        bool                `json:"resume"`
	ReferenceCode string              `json:"reference_code"`
	Steps         []wizard.StepOutput `json:"steps"`
}

func loadScript(path string) (*sessionScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var script sessionScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	if script.Intent == "" && !script.Resume {
		return nil, fmt.Errorf("script %s needs an intent or resume", path)
	}
	return &script, nil
}

// sessionRuntime is one applicant's wizard with its stores.
type sessionRuntime struct {
	orchestrator *wizard.Orchestrator
	store        *session.Store
	syncer       *statesync.Synchronizer
}

// newSessionRuntime wires the wizard from cfg. A nil durable client keeps
// snapshots in memory only.
func newSessionRuntime(cfg *config.Config, durable *redis.Client, log logger.Logger) (*sessionRuntime, error) {
	flows, err := wizard.LoadFlows(cfg.Wizard.FlowRegistryPath)
	if err != nil {
		return nil, err
	}

	var durableTier session.Tier
	if durable != nil {
		durableTier = session.NewRedisTier(durable, config.GetDuration(cfg.Session.TTL))
	}
	store := session.NewStore(cfg.Session, session.NewMemoryTier(), durableTier, nil, log)
	syncer := statesync.NewSynchronizer(cfg.Sync, nil, nil, nil, log)

	calc := facility.NewCalculator(cfg.Facility, nil)
	ruleset := rules.NewRuleset(phone.NewCanonicalizer(cfg.Sync.CountryCode), log)
	assembler := wizard.NewAssembler(calc, ruleset, nil)

	return &sessionRuntime{
		orchestrator: wizard.NewOrchestrator(flows, assembler, ruleset, store, syncer, nil, nil, log),
		store:        store,
		syncer:       syncer,
	}, nil
}

// seedFromRemote copies the state saved under the reference code into the
// local store so Resume can pick it up on this channel.
func (r *sessionRuntime) seedFromRemote(ctx context.Context, referenceCode string) (bool, error) {
	if !r.syncer.Enabled() {
		return false, nil
	}
	remote, err := r.syncer.Resume(ctx, referenceCode)
	if err != nil || remote == nil {
		return false, err
	}
	r.store.Save(ctx, remote.SessionID, statesync.SanitizeStep(remote.CurrentStep), remote.FormData)
	return true, nil
}

// run opens or resumes the session, feeds every scripted step output and
// prints each move. It stops at the first blocked step.
func (r *sessionRuntime) run(ctx context.Context, script *sessionScript, w io.Writer) error {
	o := r.orchestrator

	resumed := false
	if script.Resume {
		if script.ReferenceCode != "" {
			seeded, err := r.seedFromRemote(ctx, script.ReferenceCode)
			if err != nil {
				return fmt.Errorf("remote resume: %w", err)
			}
			if seeded {
				fmt.Fprintf(w, "Fetched saved state for %s\n", script.ReferenceCode)
			}
		}
		resumed = o.Resume(ctx)
	}

	if resumed {
		d := o.Draft()
		fmt.Fprintf(w, "Resumed %s at %s\n", d.SessionID, d.CurrentStep)
	} else {
		if script.Intent == "" {
			return fmt.Errorf("nothing to resume and no intent to start")
		}
		tr, err := o.Start(ctx, wizard.StartRequest{
			SessionID: script.SessionID,
			Intent:    script.Intent,
			Language:  script.Language,
			Employer:  script.Employer,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Started %s at %s\n", o.Draft().SessionID, tr.To)
		fmt.Fprintf(w, "  steps: %s\n", joinSteps(tr.Steps))
	}

	for i, out := range script.Steps {
		if o.Draft().CurrentStep == models.StepCompleted {
			fmt.Fprintf(w, "Ignoring %d remaining step(s), application completed\n", len(script.Steps)-i)
			break
		}
		tr, err := o.Next(ctx, out)
		if err != nil {
			return err
		}
		if tr.Blocked() {
			fmt.Fprintf(w, "Blocked at %s: %s (%s)\n", tr.From, tr.Violation.Message, tr.Violation.Rule)
			return nil
		}
		synced := ""
		if tr.Synced {
			synced = " [synced]"
		}
		fmt.Fprintf(w, "%s -> %s%s\n", tr.From, tr.To, synced)
		if tr.Facility != nil {
			fmt.Fprintf(w, "  facility: %s, %s %s x %d\n",
				tr.Facility.Type, tr.Facility.Currency, tr.Facility.MonthlyPayment.StringFixed(2), tr.Facility.TermMonths)
		}
	}

	if o.Draft().CurrentStep != models.StepCompleted {
		return nil
	}
	sub, err := o.Submission()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}
	fmt.Fprintf(w, "Submission:\n%s\n", data)
	return nil
}

func joinSteps(steps []models.StepName) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return strings.Join(names, " > ")
}
