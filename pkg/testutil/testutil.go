// Package testutil contains helpers shared by the tests of picosh packages.
// Every change a helper makes is undone when the test finishes.
package testutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Cleanuper is the subset of [testing.TB] the helpers need.
type Cleanuper interface {
	Cleanup(func())
}

// Set sets *p to v, and restores the old value after the test finishes.
func Set[T any](c Cleanuper, p *T, v T) {
	old := *p
	*p = v
	c.Cleanup(func() { *p = old })
}

// Setenv sets an environment variable for the duration of a test and
// returns value.
func Setenv(c Cleanuper, name, value string) string {
	restoreEnv(c, name)
	os.Setenv(name, value)
	return value
}

// ClearEnv unsets every environment variable whose name starts with
// prefix followed by an underscore, such as the PICOSH_* overrides of the
// process configuration.
func ClearEnv(c Cleanuper, prefix string) {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, prefix+"_") {
			restoreEnv(c, name)
			os.Unsetenv(name)
		}
	}
}

func restoreEnv(c Cleanuper, name string) {
	if old, ok := os.LookupEnv(name); ok {
		c.Cleanup(func() { os.Setenv(name, old) })
	} else {
		c.Cleanup(func() { os.Unsetenv(name) })
	}
}

// TimeScaleEnv names the environment variable that stretches test timeouts
// on slow boards and CI machines.
const TimeScaleEnv = "PICOSH_TEST_TIME_SCALE"

// Scaled returns d multiplied by $PICOSH_TEST_TIME_SCALE, or d itself when
// the variable is unset or not a positive number.
func Scaled(d time.Duration) time.Duration {
	scale, err := strconv.ParseFloat(os.Getenv(TimeScaleEnv), 64)
	if err != nil || scale <= 0 {
		return d
	}
	return time.Duration(float64(d) * scale)
}
