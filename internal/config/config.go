// Package config holds the options of the checker, loaded from YAML.
package config

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options tune the limits of the checker. The zero value is not usable, start from Default
type Options struct {
	// SubtypeDepth bounds how deep a single subtype query may recurse.
	// Deeper queries are answered negatively
	SubtypeDepth int `yaml:"subtype_depth"`

	// UnifyFuel bounds the number of steps of a single unification
	UnifyFuel int `yaml:"unify_fuel"`

	// ConstEvalFuel bounds the number of calls the constant evaluator makes for one expression
	ConstEvalFuel int `yaml:"const_eval_fuel"`

	// Workers is how many modules are checked in parallel
	Workers int `yaml:"workers"`

	// WarnUnannotatedRecursion reports recursive declarations without a type annotation
	WarnUnannotatedRecursion bool `yaml:"warn_unannotated_recursion"`

	Log LogOptions `yaml:"log"`
}

type LogOptions struct {
	Level    string   `yaml:"level"`
	Sections []string `yaml:"sections"`
	JSON     bool     `yaml:"json"`
}

const (
	defaultSubtypeDepth  = 250
	defaultUnifyFuel     = 10000
	defaultConstEvalFuel = 1000
	defaultWorkers       = 4
)

func Default() Options {
	return Options{
		SubtypeDepth:             defaultSubtypeDepth,
		UnifyFuel:                defaultUnifyFuel,
		ConstEvalFuel:            defaultConstEvalFuel,
		Workers:                  defaultWorkers,
		WarnUnannotatedRecursion: true,
		Log: LogOptions{
			Level:    "warn",
			Sections: []string{"driver"},
		},
	}
}

// Load parses YAML over the defaults, so a document only needs the options it changes
func Load(data []byte) (Options, error) {
	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, errors.Wrap(err, "could not parse options")
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func LoadFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "could not read options from %s", path)
	}
	opts, err := Load(data)
	return opts, errors.Wrapf(err, "in %s", path)
}

// Validate reports the first option out of its range
func (o Options) Validate() error {
	switch {
	case o.SubtypeDepth <= 0:
		return errors.Errorf("subtype_depth must be positive, got %d", o.SubtypeDepth)
	case o.UnifyFuel <= 0:
		return errors.Errorf("unify_fuel must be positive, got %d", o.UnifyFuel)
	case o.ConstEvalFuel <= 0:
		return errors.Errorf("const_eval_fuel must be positive, got %d", o.ConstEvalFuel)
	case o.Workers <= 0:
		return errors.Errorf("workers must be positive, got %d", o.Workers)
	}
	if _, err := o.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level, as in "debug" or "warn"
func (l LogOptions) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, errors.Wrapf(err, "invalid log level %q", l.Level)
	}
	return level, nil
}
