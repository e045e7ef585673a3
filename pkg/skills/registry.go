package skills

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// ErrUnknownSkill is returned by Registry.Invoke for unregistered names.
var ErrUnknownSkill = errors.New("unknown skill")

// Status is the overall state reported in an Envelope.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrorBody is the wire form of a taxonomy error.
type ErrorBody struct {
	Kind      skilltypes.Kind         `json:"kind"`
	Code      skilltypes.ErrorCode    `json:"code,omitempty"`
	Message   string                  `json:"message"`
	Retryable bool                    `json:"retryable"`
	Fields    []skilltypes.FieldError `json:"fields,omitempty"`
}

// NewErrorBody converts err into its wire form. Provider details wrapped inside
// an ExternalServiceError are left out of the message.
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	body := &ErrorBody{Kind: skilltypes.KindOf(err), Message: err.Error()}

	var verr *skilltypes.ValidationError
	var svcErr *skilltypes.ExternalServiceError
	switch {
	case errors.As(err, &verr):
		body.Fields = verr.Fields
	case errors.As(err, &svcErr):
		body.Code = svcErr.Code
		body.Retryable = svcErr.Retryable
		body.Message = svcErr.Message
	}
	return body
}

// Envelope is the uniform result of invoking a skill by name.
type Envelope struct {
	Skill      string     `json:"skill"`
	AgentID    string     `json:"agent_id"`
	TaskID     string     `json:"task_id"`
	CampaignID string     `json:"campaign_id,omitempty"`
	Status     Status     `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
	Persisted  bool       `json:"persisted"`

	// Err is the typed error behind Error.
	Err error `json:"-"`
}

// Definition describes one registered skill.
type Definition struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Capability  skilltypes.Capability `json:"capability"`
	Schema      *jsonschema.Schema    `json:"input_schema"`
	Invoke      InvokeFunc            `json:"-"`
}

// InvokeFunc parses raw input and executes the skill.
type InvokeFunc func(ctx context.Context, raw map[string]any, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) Envelope

// define binds a skill's parse and execute entry points into a Definition.
func define[I skilltypes.Identified, O any](
	name, description string,
	capability skilltypes.Capability,
	schema *jsonschema.Schema,
	parse func(map[string]any) (I, error),
	exec func(context.Context, I, skilltypes.ServiceClient, skilltypes.Store, ...Option) (*O, error),
) Definition {
	invoke := func(ctx context.Context, raw map[string]any, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) Envelope {
		env := Envelope{Skill: name, Status: StatusFailed}
		in, err := parse(raw)
		if err != nil {
			env.setIdentity(rawIdentity(raw))
			env.fail(err)
			return env
		}
		env.setIdentity(in.SkillIdentity())

		out, err := exec(ctx, in, svc, store, opts...)
		if out != nil {
			env.Status = StatusSucceeded
			env.Result = out
			env.Persisted = err == nil
		}
		if err != nil {
			env.fail(err)
		}
		return env
	}
	return Definition{
		Name:        name,
		Description: description,
		Capability:  capability,
		Schema:      schema,
		Invoke:      invoke,
	}
}

func (e *Envelope) setIdentity(id skilltypes.Identity) {
	e.AgentID = id.AgentID
	e.TaskID = id.TaskID
	e.CampaignID = id.Campaign()
}

func (e *Envelope) fail(err error) {
	e.Err = err
	e.Error = NewErrorBody(err)
}

// rawIdentity echoes whatever identity strings a rejected input carried.
func rawIdentity(raw map[string]any) skilltypes.Identity {
	str := func(key string) string {
		s, _ := raw[key].(string)
		return s
	}
	id := skilltypes.Identity{AgentID: str("agent_id"), TaskID: str("task_id")}
	if c := str("campaign_id"); c != "" {
		id.CampaignID = &c
	}
	return id
}

// Registry maps skill names to their definitions.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns a registry holding every built-in skill.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for _, d := range []Definition{
		define(SkillTranscribeAudio,
			"Transcribe spoken audio into text, subtitles or captions.",
			skilltypes.CapabilityTranscribeAudio,
			GenerateSchema[TranscribeAudioInput](),
			ParseTranscribeAudioInput, ExecuteTranscribeAudio),
		define(SkillDownloadYouTube,
			"Download a YouTube video, its audio track, or both.",
			skilltypes.CapabilityDownloadMedia,
			GenerateSchema[DownloadYouTubeInput](),
			ParseDownloadYouTubeInput, ExecuteDownloadYouTube),
		define(SkillGenerateContent,
			"Generate a post, reply, caption, article or thread for a platform.",
			skilltypes.CapabilityGenerateContent,
			GenerateSchema[GenerateContentInput](),
			ParseGenerateContentInput, ExecuteGenerateContent),
		define(SkillGenerateImage,
			"Generate an image that keeps a reference character consistent.",
			skilltypes.CapabilityGenerateImage,
			GenerateSchema[GenerateImageInput](),
			ParseGenerateImageInput, ExecuteGenerateImage),
		define(SkillRenderVideo,
			"Render a short video from a script at the requested tier.",
			skilltypes.CapabilityRenderVideo,
			GenerateSchema[RenderVideoInput](),
			ParseRenderVideoInput, ExecuteRenderVideo),
	} {
		r.defs[d.Name] = d
	}
	return r
}

// Get returns the named definition.
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names lists registered skills alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions lists registered skills alphabetically.
func (r *Registry) Definitions() []Definition {
	names := r.Names()
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.defs[name])
	}
	return defs
}

// Invoke parses and executes the named skill.
func (r *Registry) Invoke(ctx context.Context, name string, raw map[string]any, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (Envelope, error) {
	d, ok := r.defs[name]
	if !ok {
		return Envelope{}, errors.Wrapf(ErrUnknownSkill, "%q", name)
	}
	return d.Invoke(ctx, raw, svc, store, opts...), nil
}

// Request is one entry of a batch dispatch.
type Request struct {
	Skill  string         `json:"skill"`
	Params map[string]any `json:"params"`
}

// Dispatch runs independent requests concurrently and returns their envelopes
// in request order. An unknown skill yields a failed envelope, as does any
// request repeating the task_id of an earlier one in the batch.
func (r *Registry) Dispatch(ctx context.Context, reqs []Request, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) []Envelope {
	envs := make([]Envelope, len(reqs))
	first := make(map[string]int, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		id := rawIdentity(req.Params)
		if id.TaskID != "" {
			if j, dup := first[id.TaskID]; dup {
				envs[i] = Envelope{Skill: req.Skill, Status: StatusFailed}
				envs[i].setIdentity(id)
				envs[i].fail(skilltypes.NewValidationError(req.Skill, skilltypes.FieldError{
					Field:   "task_id",
					Rule:    "unique",
					Message: fmt.Sprintf("duplicates request %d of this batch", j),
				}))
				continue
			}
			first[id.TaskID] = i
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			env, err := r.Invoke(ctx, req.Skill, req.Params, svc, store, opts...)
			if err != nil {
				env = Envelope{Skill: req.Skill, Status: StatusFailed}
				env.setIdentity(rawIdentity(req.Params))
				env.fail(skilltypes.NewValidationError(req.Skill, skilltypes.FieldError{
					Field:   "skill",
					Rule:    "registered",
					Message: "is not a registered skill",
				}))
			}
			envs[i] = env
		}()
	}
	wg.Wait()
	return envs
}
