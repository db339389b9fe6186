// Package tt runs table-driven tests of plain functions with little
// boilerplate.
//
//	tt.Test(t, tt.Fn("Unquote", Unquote),
//		tt.Args(`"a b"`).Rets("a b"),
//		tt.Args("x").Rets("x"),
//	)
package tt

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Case is one call of the function under test. It is created by Args and
// augmented by chained setters.
type Case struct {
	args []any
	rets [][]any
}

// Args returns a new Case that calls the function with args.
func Args(args ...any) *Case {
	return &Case{args: args}
}

// Rets adds a requirement on the return values and returns the receiver.
// Each value may be a Matcher; other values are compared with cmp.Equal.
func (c *Case) Rets(matchers ...any) *Case {
	c.rets = append(c.rets, matchers)
	return c
}

// FnToTest is a function under test.
type FnToTest struct {
	name    string
	body    any
	argsFmt string
}

// Fn returns a FnToTest with the given name, used in failure messages.
func Fn(name string, body any) *FnToTest {
	return &FnToTest{name: name, body: body}
}

// ArgsFmt sets the format of the arguments in failure messages and returns
// the receiver. The default prints each argument with %q if it is a string
// and %v otherwise.
func (fn *FnToTest) ArgsFmt(s string) *FnToTest {
	fn.argsFmt = s
	return fn
}

// T is the subset of *testing.T used by Test.
type T interface {
	Helper()
	Errorf(format string, args ...any)
}

// Test calls fn with the arguments of each case and checks the results.
func Test(t T, fn *FnToTest, cases ...*Case) {
	t.Helper()
	for _, c := range cases {
		rets := call(fn.body, c.args)
		for _, want := range c.rets {
			if len(want) != len(rets) {
				t.Errorf("%s(%s) returns %d values, test wants %d",
					fn.name, fn.formatArgs(c.args), len(rets), len(want))
				continue
			}
			if diff, ok := match(want, rets); !ok {
				t.Errorf("%s(%s) -> %s, want %s\n%s",
					fn.name, fn.formatArgs(c.args), sprint(rets), sprint(want), diff)
			}
		}
	}
}

// Matcher decides whether a return value is acceptable.
type Matcher interface {
	Match(RetValue) bool
}

// RetValue is a return value passed to a Matcher. It is a distinct type so
// that Matcher is not implemented by accident.
type RetValue any

// Any matches any value.
var Any Matcher = anyMatcher{}

type anyMatcher struct{}

func (anyMatcher) Match(RetValue) bool { return true }
func (anyMatcher) String() string      { return "<any>" }

// AnyError matches any non-nil error.
var AnyError Matcher = anyError{}

type anyError struct{}

func (anyError) Match(v RetValue) bool {
	err, ok := v.(error)
	return ok && err != nil
}
func (anyError) String() string { return "<any error>" }

// ErrorIs returns a Matcher accepting errors that wrap target.
func ErrorIs(target error) Matcher { return errorIs{target} }

type errorIs struct{ target error }

func (m errorIs) Match(v RetValue) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, m.target)
}
func (m errorIs) String() string { return fmt.Sprintf("<error wrapping %v>", m.target) }

func match(matchers, actual []any) (string, bool) {
	var diffs []string
	for i, m := range matchers {
		if m, ok := m.(Matcher); ok {
			if !m.Match(actual[i]) {
				diffs = append(diffs, fmt.Sprintf("return value %d: %v does not match %v", i, actual[i], m))
			}
			continue
		}
		if !cmp.Equal(m, actual[i]) {
			diffs = append(diffs, fmt.Sprintf("return value %d (-want +got):\n%s", i, cmp.Diff(m, actual[i])))
		}
	}
	return strings.Join(diffs, "\n"), len(diffs) == 0
}

func (fn *FnToTest) formatArgs(args []any) string {
	if fn.argsFmt != "" {
		return fmt.Sprintf(fn.argsFmt, args...)
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = fmt.Sprint(arg)
		}
	}
	return strings.Join(parts, ", ")
}

func sprint(values []any) string {
	if len(values) == 1 {
		return fmt.Sprint(values[0])
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func call(fn any, args []any) []any {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			// A nil argument takes the zero value of the parameter type.
			var typ reflect.Type
			if fnType.IsVariadic() && i >= fnType.NumIn()-1 {
				typ = fnType.In(fnType.NumIn() - 1).Elem()
			} else {
				typ = fnType.In(i)
			}
			in[i] = reflect.Zero(typ)
		} else {
			in[i] = reflect.ValueOf(arg)
		}
	}
	out := fnValue.Call(in)
	rets := make([]any, len(out))
	for i, v := range out {
		rets[i] = v.Interface()
	}
	return rets
}
