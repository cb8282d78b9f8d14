package toolinvoke

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickypin/capmaster/util"
)

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		paths     map[string]string
		lookupEnv func(string) (string, bool)
		lookPath  func(string) (string, error)
		want      string
		wantErr   bool
	}{
		{
			name:  "explicit path wins",
			paths: map[string]string{"tshark": "/opt/explicit/tshark"},
			lookupEnv: func(string) (string, bool) {
				return "/opt/env/tshark", true
			},
			lookPath: func(string) (string, error) { return "/usr/bin/tshark", nil },
			want:     "/opt/explicit/tshark",
		},
		{
			name:      "env var wins over PATH",
			lookupEnv: func(string) (string, bool) { return "/opt/env/tshark", true },
			lookPath:  func(string) (string, error) { return "/usr/bin/tshark", nil },
			want:      "/opt/env/tshark",
		},
		{
			name:      "falls back to PATH",
			lookupEnv: func(string) (string, bool) { return "", false },
			lookPath:  func(string) (string, error) { return "/usr/bin/tshark", nil },
			want:      "/usr/bin/tshark",
		},
		{
			name:      "typed not-found error when nothing resolves",
			lookupEnv: func(string) (string, bool) { return "", false },
			lookPath:  func(string) (string, error) { return "", assertErr },
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := New(tt.paths)
			inv.LookupEnv = tt.lookupEnv
			inv.LookPath = tt.lookPath

			got, err := inv.Resolve("tshark")
			if tt.wantErr {
				require.Error(t, err)
				var cmErr *util.CapMasterError
				require.ErrorAs(t, err, &cmErr)
				assert.Equal(t, util.KindToolNotFound, cmErr.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvokeSuccess(t *testing.T) {
	inv := New(map[string]string{"echo": "/bin/echo"})
	res, err := inv.Invoke(context.Background(), "echo", []string{"hello"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
}

func TestInvokeNonZeroExit(t *testing.T) {
	inv := New(map[string]string{"false": "/bin/false"})
	_, err := inv.Invoke(context.Background(), "false", nil, "", 0)
	require.Error(t, err)
	var cmErr *util.CapMasterError
	require.ErrorAs(t, err, &cmErr)
	assert.Equal(t, util.KindToolExecution, cmErr.Kind)
}

func TestInvokeTimeout(t *testing.T) {
	inv := New(map[string]string{"sleep": "/bin/sleep"})
	_, err := inv.Invoke(context.Background(), "sleep", []string{"2"}, "", 10*time.Millisecond)
	require.Error(t, err)
	var cmErr *util.CapMasterError
	require.ErrorAs(t, err, &cmErr)
	assert.Equal(t, util.KindToolTimeout, cmErr.Kind)
}

var assertErr = util.NewToolNotFoundError("tshark")
