package cmd

import (
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gotest.tools/gotestfail/internal/junitxml"
	"gotest.tools/gotestfail/testjson"
)

var junitFieldFormatValues = "full, relative, short"

type junitFieldFormatValue struct {
	value junitxml.FormatFunc
}

func (f *junitFieldFormatValue) Set(val string) error {
	switch val {
	case "full":
		return nil
	case "relative":
		f.value = testjson.RelativePackagePath
		return nil
	case "short":
		f.value = path.Base
		return nil
	}
	return errors.Errorf("invalid value: %v, must be one of: "+junitFieldFormatValues, val)
}

func (f *junitFieldFormatValue) Type() string {
	return "field-format"
}

func (f *junitFieldFormatValue) String() string {
	return "full"
}

func (f *junitFieldFormatValue) Value() junitxml.FormatFunc {
	if f == nil {
		return nil
	}
	return f.value
}

// envValue is a repeatable KEY=VALUE flag.
type envValue struct {
	values map[string]string
}

func (e *envValue) Set(val string) error {
	key, value, ok := strings.Cut(val, "=")
	if !ok || key == "" {
		return errors.Errorf("invalid value: %v, must be KEY=VALUE", val)
	}
	if e.values == nil {
		e.values = make(map[string]string)
	}
	e.values[key] = value
	return nil
}

func (e *envValue) Type() string {
	return "KEY=VALUE"
}

func (e *envValue) String() string {
	if e == nil {
		return ""
	}
	pairs := make([]string, 0, len(e.values))
	for key, value := range e.values {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (e *envValue) Value() map[string]string {
	if e == nil {
		return nil
	}
	return e.values
}

// repoValue is a GitHub repository in the owner/name form.
type repoValue struct {
	owner string
	name  string
}

func (r *repoValue) Set(val string) error {
	owner, name, ok := strings.Cut(val, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return errors.Errorf("invalid value: %v, must be owner/name", val)
	}
	r.owner, r.name = owner, name
	return nil
}

func (r *repoValue) Type() string {
	return "owner/name"
}

func (r *repoValue) String() string {
	if r == nil || r.owner == "" {
		return ""
	}
	return r.owner + "/" + r.name
}
