package zkinv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUserAgent makes sure the initiator is sanitized and truncated.
func TestUserAgent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		initiator string
		suffix    string
	}{{
		name:   "no initiator",
		suffix: "commit=" + Commit,
	}, {
		name:      "unsafe characters dropped",
		initiator: " cli/$0.1 ",
		suffix:    ",initiator=cli0.1",
	}, {
		name:      "truncated",
		initiator: strings.Repeat("a", 200),
		suffix:    ",initiator=" + strings.Repeat("a", 139),
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			agent := UserAgent(tc.initiator)
			require.True(t, strings.HasPrefix(
				agent, "zkinv/v"+semanticVersion()+"/",
			))
			require.True(t, strings.HasSuffix(agent, tc.suffix))
		})
	}

	require.Equal(t, "0.1.0-alpha", semanticVersion())
}

// TestVersion checks the version string carries the build commit.
func TestVersion(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0.1.0-alpha commit="+Commit, Version())
	require.Equal(t, "ac-1.2", keepRunes("aBc_-1.2!", semverAlphabet+"-."))
}
