// Package jobfile reads job definitions from JSON, JSONC, YAML or TOML files.
package jobfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/livinlefevreloca/cronexec/internal/job"
)

// DefaultPath is read from the working directory when no path is given
const DefaultPath = "jobconfig.json"

// ErrFormat marks a file whose extension is not supported
var ErrFormat = errors.New("jobfile: unsupported format")

// document is the wrapped form accepted by every format:
//
//	{"jobs": [...]}   jobs: [...]   [[job]]
type document struct {
	Jobs []job.Spec `json:"jobs" yaml:"jobs" toml:"job"`
}

// Load reads and decodes the job definitions in path. The format is chosen
// by extension: .json and .jsonc accept comments and trailing commas, .yaml
// and .yml, .toml uses [[job]] tables. JSON and YAML files may hold either a
// top-level list or a "jobs" key. Definitions are not validated here.
func Load(path string) ([]job.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read job file %s", path)
	}

	specs, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return specs, nil
}

// Parse decodes job definitions from data in the format named by ext
func Parse(ext string, data []byte) ([]job.Spec, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	case ".toml":
		return parseTOML(data)
	default:
		return nil, errors.WithHint(
			errors.Wrapf(ErrFormat, "extension %q", ext),
			"use .json, .jsonc, .yaml, .yml or .toml")
	}
}

func parseJSON(data []byte) ([]job.Spec, error) {
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(stripped) == 0 {
		return []job.Spec{}, nil
	}

	if stripped[0] == '[' {
		var specs []job.Spec
		if err := json.Unmarshal(stripped, &specs); err != nil {
			return nil, errors.Wrap(err, "parse JSON job list")
		}
		return nonNil(specs), nil
	}

	var doc document
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, errors.Wrap(err, "parse JSON job document")
	}
	return nonNil(doc.Jobs), nil
}

func parseYAML(data []byte) ([]job.Spec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "parse YAML")
	}
	if len(root.Content) == 0 {
		return []job.Spec{}, nil
	}

	if root.Content[0].Kind == yaml.SequenceNode {
		var specs []job.Spec
		if err := root.Content[0].Decode(&specs); err != nil {
			return nil, errors.Wrap(err, "parse YAML job list")
		}
		return nonNil(specs), nil
	}

	var doc document
	if err := root.Content[0].Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "parse YAML job document")
	}
	return nonNil(doc.Jobs), nil
}

func parseTOML(data []byte) ([]job.Spec, error) {
	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, errors.Wrap(err, "parse TOML")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Newf("parse TOML: unknown keys %v", undecoded)
	}
	return nonNil(doc.Jobs), nil
}

func nonNil(specs []job.Spec) []job.Spec {
	if specs == nil {
		return []job.Spec{}
	}
	return specs
}
