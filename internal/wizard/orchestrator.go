// internal/wizard/orchestrator.go

// Package wizard sequences the steps of one applicant's application and
// keeps the draft, the derived facility and the saved snapshots in step.
package wizard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/metrics"
	"application-wizard/internal/common/observability"
	"application-wizard/internal/models"
	"application-wizard/internal/rules"
	"application-wizard/pkg/registry"

	"go.opentelemetry.io/otel/attribute"
)

const (
	directionForward  = "forward"
	directionBackward = "backward"
)

// SessionStore is the local recovery store.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, step models.StepName, formData map[string]interface{})
	Load(ctx context.Context) (*models.SessionSnapshot, bool)
	Clear(ctx context.Context)
}

// StatePusher mirrors snapshots to the remote state API. A disabled pusher
// is skipped.
type StatePusher interface {
	Enabled() bool
	Push(ctx context.Context, sessionID string, step models.StepName, formData map[string]interface{}) error
}

// StepOutput is what a step hands back when the applicant moves on. Keys
// that are not draft fields are kept under the draft's answers.
type StepOutput map[string]interface{}

// StartRequest opens a new application.
type StartRequest struct {
	SessionID string
	Intent    string
	Language  string
	Employer  string
	Selection *models.ProductSelection
}

// Transition reports where the wizard moved. A blocked move keeps To equal
// to From and carries the Violation.
type Transition struct {
	From      models.StepName   `json:"from"`
	To        models.StepName   `json:"to"`
	Steps     []models.StepName `json:"steps"`
	Completed bool              `json:"completed"`
	Synced    bool              `json:"synced"`
	Violation *rules.Violation  `json:"violation,omitempty"`
	Facility  *models.Facility  `json:"facility,omitempty"`
}

// Blocked reports whether validation kept the applicant on the same step.
func (t *Transition) Blocked() bool {
	return t.Violation != nil
}

// Orchestrator drives a single applicant's session. It is safe for
// concurrent use but holds one draft at a time.
type Orchestrator struct {
	flows     *registry.FlowRegistry
	assembler *Assembler
	rules     *rules.Ruleset
	store     SessionStore
	pusher    StatePusher
	obs       *observability.Observability
	now       func() time.Time
	log       logger.Logger

	mu          sync.Mutex
	draft       *models.ApplicationDraft
	flow        *registry.Flow
	history     []models.StepName
	fingerprint string
}

// NewOrchestrator wires the wizard. pusher may be nil to run local-only.
func NewOrchestrator(
	flows *registry.FlowRegistry,
	assembler *Assembler,
	rs *rules.Ruleset,
	store SessionStore,
	pusher StatePusher,
	obs *observability.Observability,
	clock func() time.Time,
	log logger.Logger,
) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		flows:     flows,
		assembler: assembler,
		rules:     rs,
		store:     store,
		pusher:    pusher,
		obs:       obs,
		now:       clock,
		log:       log.WithFields(map[string]interface{}{"component": "wizard"}),
	}
}

// Start discards any saved snapshot and opens a new draft on the first
// step of the intent's flow.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*Transition, error) {
	flow, ok := o.flows.FlowForIntent(req.Intent)
	if !ok {
		return nil, errors.NewFlowNotFoundError(req.Intent)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.store.Clear(ctx)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = models.NewSessionID("web", o.now())
	}
	d := models.NewDraft(sessionID)
	d.Flow = flow.ID
	d.Intent = req.Intent
	d.Language = req.Language
	d.Employer = req.Employer
	if req.Selection != nil {
		d.Selection = *req.Selection
	}

	o.draft = d
	o.flow = flow
	o.fingerprint = ""
	o.resolveVariant()
	o.refreshFacility()

	seq := o.sequence()
	if len(seq) == 0 {
		return nil, errors.NewStepTransitionFailedError("", "flow "+flow.ID+" has no active steps")
	}
	first := seq[0]
	d.CurrentStep = first
	o.history = []models.StepName{first}

	o.saveLocal(ctx)
	o.log.Info("Application started", map[string]interface{}{
		"sessionId": sessionID,
		"flow":      flow.ID,
		"step":      first,
	})

	return &Transition{From: first, To: first, Steps: seq, Facility: d.Facility}, nil
}

// Resume restores the saved snapshot. It reports false when there is
// nothing usable to resume.
func (o *Orchestrator) Resume(ctx context.Context) bool {
	snap, ok := o.store.Load(ctx)
	if !ok {
		return false
	}
	d, err := models.DraftFromFormData(snap.FormData)
	if err != nil {
		o.log.WithError(err).Warn("Saved draft could not be decoded", map[string]interface{}{"sessionId": snap.SessionID})
		return false
	}
	d.SessionID = snap.SessionID

	flow, ok := o.flows.Flow(d.Flow)
	if !ok {
		flow, ok = o.flows.FlowForIntent(d.Intent)
		if !ok {
			return false
		}
		d.Flow = flow.ID
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.draft = d
	o.flow = flow
	o.fingerprint = ""
	o.resolveVariant()
	o.refreshFacility()

	// history is every active step up to the saved one
	seq := o.sequence()
	if len(seq) == 0 {
		o.draft = nil
		return false
	}
	history := make([]models.StepName, 0, len(seq))
	for _, s := range seq {
		history = append(history, s)
		if s == snap.CurrentStep {
			break
		}
	}
	switch {
	case snap.CurrentStep == models.StepCompleted:
		d.CurrentStep = models.StepCompleted
	case history[len(history)-1] != snap.CurrentStep:
		history = history[:1]
		d.CurrentStep = history[0]
	default:
		d.CurrentStep = snap.CurrentStep
	}
	o.history = history

	o.log.Info("Application resumed", map[string]interface{}{
		"sessionId": d.SessionID,
		"step":      d.CurrentStep,
	})
	return true
}

// Next validates the current step's output, merges it and moves to the
// next active step. Validation failures come back in the Transition, not
// as errors. A completed draft stays completed.
func (o *Orchestrator) Next(ctx context.Context, out StepOutput) (*Transition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.draft == nil {
		return nil, errors.NewStepTransitionFailedError("", "no application in progress")
	}
	current := o.draft.CurrentStep
	if current == models.StepCompleted {
		return &Transition{From: current, To: current, Steps: o.sequence(), Completed: true, Facility: o.draft.Facility}, nil
	}

	ctx, span := o.obs.StartSpan(ctx, "wizard.next",
		attribute.String("flow", o.flow.ID),
		attribute.String("step", string(current)),
	)
	defer span.End()

	candidate, err := cloneDraft(o.draft)
	if err != nil {
		return nil, errors.NewStepTransitionFailedError(string(current), err.Error())
	}
	if err := candidate.Merge(normalizeOutput(out)); err != nil {
		return nil, errors.NewStepTransitionFailedError(string(current), err.Error())
	}
	if o.flow.Variant == "" {
		candidate.Variant = models.Variant(o.flows.ResolveVariant(candidate.Employer, candidate.HasAccount))
	}

	if v := o.checkStep(current, candidate, out); v != nil {
		return &Transition{From: current, To: current, Steps: o.sequenceFor(candidate), Violation: v, Facility: o.draft.Facility}, nil
	}

	o.draft = candidate
	o.refreshFacility()

	next, ok := o.nextStep(current)
	t := &Transition{From: current, Steps: o.sequence()}
	if !ok {
		o.draft.CurrentStep = models.StepCompleted
		t.Completed = true
	} else {
		o.draft.CurrentStep = next
		o.history = append(o.history, next)
	}
	t.To = o.draft.CurrentStep
	t.Facility = o.draft.Facility

	o.saveLocal(ctx)
	t.Synced = o.pushRemote(ctx)
	o.recordTransition(ctx, current, t.To, directionForward)

	return t, nil
}

// Back returns to the previously shown step. On the first step it is a no-op.
func (o *Orchestrator) Back(ctx context.Context) (*Transition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.draft == nil {
		return nil, errors.NewStepTransitionFailedError("", "no application in progress")
	}
	current := o.draft.CurrentStep
	if len(o.history) <= 1 {
		return &Transition{From: current, To: current, Steps: o.sequence(), Facility: o.draft.Facility}, nil
	}

	if current != models.StepCompleted {
		o.history = o.history[:len(o.history)-1]
	}
	prev := o.history[len(o.history)-1]
	o.draft.CurrentStep = prev

	o.fingerprint = ""
	o.refreshFacility()
	o.saveLocal(ctx)
	o.recordTransition(ctx, current, prev, directionBackward)

	return &Transition{From: current, To: prev, Steps: o.sequence(), Facility: o.draft.Facility}, nil
}

// Submission assembles the terminal payload for the current draft.
func (o *Orchestrator) Submission() (*models.Submission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.draft == nil {
		return nil, errors.NewStepTransitionFailedError("", "no application in progress")
	}
	d, err := cloneDraft(o.draft)
	if err != nil {
		return nil, errors.NewStepTransitionFailedError(string(o.draft.CurrentStep), err.Error())
	}
	return o.assembler.Assemble(d)
}

// Finish clears the local snapshot once the submission has been accepted.
func (o *Orchestrator) Finish(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.Clear(ctx)
	o.draft = nil
	o.flow = nil
	o.history = nil
}

// Draft returns a copy of the working draft, or nil before Start/Resume.
func (o *Orchestrator) Draft() *models.ApplicationDraft {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draft == nil {
		return nil
	}
	d, err := cloneDraft(o.draft)
	if err != nil {
		o.log.WithError(err).Error("Failed to copy draft", nil)
		return nil
	}
	return d
}

// Steps is the active step sequence for the current draft.
func (o *Orchestrator) Steps() []models.StepName {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draft == nil {
		return nil
	}
	return o.sequence()
}

func (o *Orchestrator) checkStep(step models.StepName, candidate *models.ApplicationDraft, out StepOutput) *rules.Violation {
	if check, ok := stepChecks[step]; ok {
		if v := check(candidate, out); v != nil {
			return v
		}
	}
	for _, s := range o.flow.Steps {
		if s.Name == string(step) && s.Validate {
			if res := o.rules.Validate(candidate); !res.Valid {
				return res.FirstViolation
			}
		}
	}
	return nil
}

// nextStep finds the first active step after current in flow order. The
// current step itself may have dropped out of the sequence after the merge.
func (o *Orchestrator) nextStep(current models.StepName) (models.StepName, bool) {
	attrs := o.draft.Attributes()
	pos := -1
	for i, s := range o.flow.Steps {
		if s.Name == string(current) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return "", false
	}
	for _, s := range o.flow.Steps[pos+1:] {
		if s.Active(attrs) {
			return models.StepName(s.Name), true
		}
	}
	return "", false
}

func (o *Orchestrator) sequence() []models.StepName {
	return o.sequenceFor(o.draft)
}

func (o *Orchestrator) sequenceFor(d *models.ApplicationDraft) []models.StepName {
	steps := o.flow.Sequence(d.Attributes())
	out := make([]models.StepName, 0, len(steps))
	for _, s := range steps {
		out = append(out, models.StepName(s.Name))
	}
	return out
}

func (o *Orchestrator) resolveVariant() {
	if o.flow.Variant != "" {
		o.draft.Variant = models.Variant(o.flow.Variant)
		return
	}
	o.draft.Variant = models.Variant(o.flows.ResolveVariant(o.draft.Employer, o.draft.HasAccount))
}

// refreshFacility recomputes the facility when its inputs changed.
func (o *Orchestrator) refreshFacility() {
	d := o.draft
	if d.Selection.IsZero() {
		d.Facility = nil
		o.fingerprint = ""
		return
	}
	fp := facilityFingerprint(d)
	if fp == o.fingerprint && d.Facility != nil {
		return
	}
	f := o.assembler.Facility(d)
	d.Facility = &f
	o.fingerprint = fp
}

func facilityFingerprint(d *models.ApplicationDraft) string {
	raw, _ := json.Marshal(struct {
		Selection models.ProductSelection
		Variant   models.Variant
		Term      interface{}
		Payment   interface{}
	}{d.Selection, d.Variant, d.Answers[AnswerCreditTermMonths], d.Answers[AnswerMonthlyPayment]})
	return string(raw)
}

func (o *Orchestrator) saveLocal(ctx context.Context) {
	form, err := o.draft.FormData()
	if err != nil {
		o.log.WithError(err).Error("Failed to encode draft for saving", map[string]interface{}{"sessionId": o.draft.SessionID})
		return
	}
	o.store.Save(ctx, o.draft.SessionID, o.draft.CurrentStep, form)
}

// pushRemote mirrors the draft remotely. Failure is logged and swallowed;
// the local snapshot is the recovery path.
func (o *Orchestrator) pushRemote(ctx context.Context) bool {
	if o.pusher == nil || !o.pusher.Enabled() {
		return false
	}
	form, err := o.draft.FormData()
	if err != nil {
		return false
	}
	if err := o.pusher.Push(ctx, o.draft.SessionID, o.draft.CurrentStep, form); err != nil {
		o.log.WithError(err).Warn("Continuing without remote copy", map[string]interface{}{
			"sessionId": o.draft.SessionID,
			"step":      o.draft.CurrentStep,
		})
		return false
	}
	return true
}

func (o *Orchestrator) recordTransition(ctx context.Context, from, to models.StepName, direction string) {
	metrics.StepTransitions.WithLabelValues(o.flow.ID, direction).Inc()
	o.obs.RecordTransition(ctx, o.flow.ID, string(from), string(to), direction)
	o.log.Debug("Step transition", map[string]interface{}{
		"sessionId": o.draft.SessionID,
		"from":      from,
		"to":        to,
		"direction": direction,
	})
}

func cloneDraft(d *models.ApplicationDraft) (*models.ApplicationDraft, error) {
	form, err := d.FormData()
	if err != nil {
		return nil, err
	}
	c, err := models.DraftFromFormData(form)
	if err != nil {
		return nil, err
	}
	c.SessionID = d.SessionID
	return c, nil
}

// draftKeys are the top-level keys the draft decodes itself.
var draftKeys = map[string]struct{}{
	"currentStep": {}, "flow": {}, "variant": {}, "language": {}, "intent": {},
	"employer": {}, "hasAccount": {}, "creditType": {}, "productSelection": {},
	"personal": {}, "employment": {}, "nextOfKin": {}, "banking": {},
	"otherLoans": {}, "business": {}, "documents": {}, "answers": {},
}

// normalizeOutput moves unknown keys under answers so Merge keeps them.
func normalizeOutput(out StepOutput) map[string]interface{} {
	norm := make(map[string]interface{}, len(out))
	answers := map[string]interface{}{}
	for k, v := range out {
		if k == "currentStep" {
			continue
		}
		if _, ok := draftKeys[k]; ok {
			norm[k] = v
			continue
		}
		answers[k] = v
	}
	if len(answers) > 0 {
		if existing, ok := norm["answers"].(map[string]interface{}); ok {
			for k, v := range answers {
				existing[k] = v
			}
		} else {
			norm["answers"] = answers
		}
	}
	return norm
}
