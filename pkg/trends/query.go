// Package trends implements trend detection: a validated query over a closed
// set of platforms and time windows, answered by the detect_trends capability
// of the service client and normalized into scored observations.
package trends

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// Platform is a social platform trends can be detected on.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms lists every supported platform.
var Platforms = []Platform{PlatformTwitter, PlatformInstagram, PlatformTikTok}

// TimeWindow is how far back a trend query looks.
type TimeWindow string

const (
	Window1h  TimeWindow = "1h"
	Window24h TimeWindow = "24h"
	Window7d  TimeWindow = "7d"
	Window30d TimeWindow = "30d"
)

// DefaultTimeWindow applies when a query omits time_window.
const DefaultTimeWindow = Window24h

// TrendQuery is a validated trend detection request.
type TrendQuery struct {
	AgentID    string     `json:"agent_id" mapstructure:"agent_id" validate:"required"`
	Platform   Platform   `json:"platform" mapstructure:"platform" validate:"required,oneof=twitter instagram tiktok"`
	Query      *string    `json:"query,omitempty" mapstructure:"query"`
	TimeWindow TimeWindow `json:"time_window" mapstructure:"time_window" validate:"required,oneof=1h 24h 7d 30d"`
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

// nonNullParams may be omitted but never set to null. mapstructure skips nil
// values, which would silently keep the default time window.
var nonNullParams = []string{"agent_id", "platform", "time_window"}

// ParseTrendQuery validates raw request parameters. Every failure is a
// *skilltypes.ParameterError naming the offending parameter.
func ParseTrendQuery(raw map[string]any) (*TrendQuery, error) {
	for _, param := range nonNullParams {
		if v, ok := raw[param]; ok && v == nil {
			return nil, &skilltypes.ParameterError{Param: param, Value: "null"}
		}
	}
	q := TrendQuery{TimeWindow: DefaultTimeWindow}
	if err := mapstructure.Decode(raw, &q); err != nil {
		return nil, decodeParameterError(err, raw)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// Validate checks the query parameters, reporting the first invalid one.
func (q TrendQuery) Validate() error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &skilltypes.ParameterError{Param: "query", Value: err.Error()}
	}
	fe := verrs[0]
	perr := &skilltypes.ParameterError{Param: fe.Field(), Value: fmt.Sprint(fe.Value())}
	if fe.Tag() == "oneof" {
		perr.Allowed = strings.Fields(fe.Param())
	}
	return perr
}

var quotedParam = regexp.MustCompile(`'([^']*)'`)

func decodeParameterError(err error, raw map[string]any) error {
	msg := err.Error()
	if merr, ok := err.(*mapstructure.Error); ok && len(merr.Errors) > 0 {
		msg = merr.Errors[0]
	}
	param := "query"
	if m := quotedParam.FindStringSubmatch(msg); m != nil && m[1] != "" {
		param = m[1]
	}
	return &skilltypes.ParameterError{Param: param, Value: fmt.Sprint(raw[param])}
}

// QueryOption sets an optional trend query parameter.
type QueryOption func(map[string]any)

// WithQuery narrows detection to a free-text query.
func WithQuery(query string) QueryOption {
	return func(raw map[string]any) { raw["query"] = query }
}

// WithTimeWindow overrides the default 24h window.
func WithTimeWindow(window string) QueryOption {
	return func(raw map[string]any) { raw["time_window"] = window }
}
