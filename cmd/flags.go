package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/rostr/internal/domain/model"
)

// usageError is a malformed command line. Nothing was attempted.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// flags returns a flag set that reports parse errors instead of exiting.
func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// parse takes up to want leading positional arguments, then the flags, then
// any positional arguments left after them. With want < 0 any number is accepted.
func parse(fs *flag.FlagSet, args []string, want int) ([]string, error) {
	var pos []string
	for len(args) > 0 && (want < 0 || len(pos) < want) && !strings.HasPrefix(args[0], "-") {
		pos = append(pos, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &usageError{err: err}
	}
	pos = append(pos, fs.Args()...)
	if want >= 0 && len(pos) != want {
		return nil, usageErrorf("%s: expected %d argument(s), got %d", fs.Name(), want, len(pos))
	}
	return pos, nil
}

// visited returns the names of the flags given on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// dateValue is a flag holding a date in the configured layout.
type dateValue struct {
	layout string
	date   model.Date
	set    bool
}

func (v *dateValue) String() string {
	if v == nil || !v.set {
		return ""
	}
	return v.date.Format(v.layout)
}

func (v *dateValue) Set(s string) error {
	d, err := model.ParseDateLayout(v.layout, s)
	if err != nil {
		return fmt.Errorf("expected a date like %s", v.layout)
	}
	v.date = d
	v.set = true
	return nil
}

// ptr returns the date, or nil when the flag was not given.
func (v *dateValue) ptr() *model.Date {
	if !v.set {
		return nil
	}
	d := v.date
	return &d
}

func (c *cli) dateFlag(fs *flag.FlagSet, name, help string) *dateValue {
	v := &dateValue{layout: c.cfg.DateFormat}
	fs.Var(v, name, help+" ("+c.cfg.DateFormat+")")
	return v
}

// require fails when a mandatory date flag is missing.
func require(fs *flag.FlagSet, name string, v *dateValue) error {
	if !v.set {
		return usageErrorf("%s: --%s is required", fs.Name(), name)
	}
	return nil
}

// parseSkills reads "go:4,sql,docker:2". A skill without a level has level 0.
func parseSkills(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, level, found := strings.Cut(item, ":")
		n := 0
		if found {
			parsed, err := strconv.Atoi(strings.TrimSpace(level))
			if err != nil {
				return nil, usageErrorf("skill %q: level must be a whole number", name)
			}
			n = parsed
		}
		out[strings.TrimSpace(name)] = n
	}
	return out, nil
}

// splitList reads "a,b , c" into its non-empty parts.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
