package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeRunner scripts subprocess behavior for engine and locator tests.
type fakeRunner struct {
	calls [][]string
	fn    func(name string, args []string) (stdout, stderr []byte, err error)
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, []byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	if f.fn == nil {
		return nil, nil, nil
	}
	return f.fn(name, args)
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if strings.Contains(a, want) {
			return true
		}
	}
	return false
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail([]byte("abc"), 10))
	assert.Equal(t, "cde", tail([]byte("abcde"), 3))
	assert.Equal(t, "", tail(nil, 3))
}
