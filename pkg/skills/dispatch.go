package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/services"
	"github.com/agentskills/skillkit/pkg/telemetry"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// DefaultTimeout bounds a whole dispatch, including polling of slow jobs.
const DefaultTimeout = 10 * time.Minute

type options struct {
	timeout      time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// Option tunes a single dispatch.
type Option func(*options)

// WithTimeout bounds the external call. Zero or negative values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPollInterval sets how often unfinished jobs are fetched.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		timeout:      DefaultTimeout,
		pollInterval: services.DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// dispatch describes one skill call: the job to run and how to turn the
// provider output into the typed result O.
type dispatch[O any] struct {
	skill      string
	capability skilltypes.Capability
	identity   skilltypes.Identity
	arguments  map[string]any
	// required output keys that must be present and non-empty.
	required []string
	finalize func(*O) error
}

// identitySetter is satisfied by every output through its embedded Identity.
type identitySetter interface {
	SetIdentity(skilltypes.Identity)
}

func errNilInput(skill string) error {
	return skilltypes.NewValidationError(skill, skilltypes.FieldError{Field: "input", Rule: "required", Message: "is required"})
}

func errMissingOutput(field string) error {
	return errors.Errorf("output is missing %s", field)
}

// execute runs the common dispatch sequence for every skill. The output is
// returned with a *PersistenceError when only the final write failed.
func execute[O any](ctx context.Context, d dispatch[O], svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (*O, error) {
	if svc == nil {
		return nil, errors.Errorf("%s: service client is required", d.skill)
	}
	if store == nil {
		return nil, errors.Errorf("%s: persistence client is required", d.skill)
	}
	if err := d.identity.Check(); err != nil {
		return nil, skilltypes.NewValidationError(d.skill, identityFieldErrors(d.identity)...)
	}

	o := newOptions(opts)
	ctx = logger.WithIdentity(ctx, d.identity)
	log := logger.G(ctx).WithField("skill", d.skill)

	var out *O
	var persistErr error
	attrs := append(telemetry.IdentityAttributes(d.identity), telemetry.CapabilityAttribute(d.capability))
	err := telemetry.WithSpan(ctx, "skill."+d.skill, func(ctx context.Context) error {
		release, err := claimTask(d.skill, d.identity.TaskID, store)
		if err != nil {
			return err
		}
		defer release()

		if err := checkUnique(ctx, d.skill, d.identity.TaskID, store); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		job := skilltypes.Job{
			Capability: d.capability,
			AgentID:    d.identity.AgentID,
			TaskID:     d.identity.TaskID,
			Arguments:  d.arguments,
		}
		started := o.now()
		result, err := services.Await(callCtx, svc, job, o.pollInterval)
		if err != nil {
			return err
		}

		out, err = decodeOutput(d, result.Output)
		if err != nil {
			return err
		}
		log.WithField("job_id", result.JobID).
			WithField("elapsed", o.now().Sub(started)).
			Debug("external job finished")

		persistErr = persist(ctx, d, out, store, o.now())
		return nil
	}, attrs...)
	if err != nil {
		log.WithError(err).WithField("kind", skilltypes.KindOf(err)).Warn("skill dispatch failed")
		return nil, err
	}

	if persistErr != nil {
		log.WithError(persistErr).Error("skill succeeded but its outcome was not recorded")
		return out, persistErr
	}
	log.Info("skill dispatch completed")
	return out, nil
}

func identityFieldErrors(id skilltypes.Identity) []skilltypes.FieldError {
	var fields []skilltypes.FieldError
	if id.AgentID == "" {
		fields = append(fields, skilltypes.FieldError{Field: "agent_id", Rule: "required", Message: "is required"})
	}
	if id.TaskID == "" {
		fields = append(fields, skilltypes.FieldError{Field: "task_id", Rule: "required", Message: "is required"})
	}
	return fields
}

// claims holds the task ids with an invocation in flight, keyed per store.
var claims sync.Map

type claimKey struct {
	store  any
	taskID string
}

// claimTask reserves taskID until release is called, so that concurrent
// invocations sharing a task id cannot both reach the service.
func claimTask(skill, taskID string, store skilltypes.Store) (release func(), err error) {
	key := claimKey{taskID: taskID}
	if reflect.TypeOf(store).Comparable() {
		key.store = store
	}
	if _, loaded := claims.LoadOrStore(key, skill); loaded {
		return nil, skilltypes.NewValidationError(skill, skilltypes.FieldError{
			Field:   "task_id",
			Rule:    "unique",
			Message: "is already being processed",
		})
	}
	return func() { claims.Delete(key) }, nil
}

func checkUnique(ctx context.Context, skill, taskID string, store skilltypes.Store) error {
	existing, err := store.Get(ctx, taskID)
	switch {
	case errors.Is(err, skilltypes.ErrOutcomeNotFound):
		return nil
	case err != nil:
		return &skilltypes.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	case existing != nil:
		return skilltypes.NewValidationError(skill, skilltypes.FieldError{
			Field:   "task_id",
			Rule:    "unique",
			Message: fmt.Sprintf("already has a recorded %s outcome", existing.Skill),
		})
	}
	return nil
}

func decodeOutput[O any](d dispatch[O], raw map[string]any) (*O, error) {
	for _, key := range d.required {
		if isBlank(raw[key]) {
			return nil, skilltypes.NewExternalServiceError(d.capability, skilltypes.CodeMalformedResponse,
				"output is missing "+key, nil)
		}
	}

	var out O
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, skilltypes.NewExternalServiceError(d.capability, skilltypes.CodeMalformedResponse, "output has unexpected shape", err)
	}

	if d.finalize != nil {
		if err := d.finalize(&out); err != nil {
			return nil, skilltypes.NewExternalServiceError(d.capability, skilltypes.CodeMalformedResponse, err.Error(), nil)
		}
	}
	if s, ok := any(&out).(identitySetter); ok {
		s.SetIdentity(d.identity)
	}
	return &out, nil
}

func isBlank(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}

// persist writes the full outcome once. A failure is returned as a
// *PersistenceError and never undoes the successful result.
func persist[O any](ctx context.Context, d dispatch[O], out *O, store skilltypes.Store, now time.Time) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return &skilltypes.PersistenceError{Op: "put", TaskID: d.identity.TaskID, Err: errors.Wrap(err, "failed to encode outcome")}
	}
	outcome := skilltypes.Outcome{
		TaskID:     d.identity.TaskID,
		AgentID:    d.identity.AgentID,
		CampaignID: d.identity.Campaign(),
		Skill:      d.skill,
		Payload:    payload,
		CreatedAt:  now.UTC(),
	}
	if err := store.Put(ctx, outcome); err != nil {
		return &skilltypes.PersistenceError{Op: "put", TaskID: d.identity.TaskID, Err: err}
	}
	return nil
}
