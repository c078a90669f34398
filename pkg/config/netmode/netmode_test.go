package netmode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCluster(t *testing.T) {
	for _, c := range []Cluster{LocalNet, DevNet, TestNet, MainNet} {
		parsed, err := Parse(c.String())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
		require.NotEmpty(t, c.Endpoint())
	}
	require.Equal(t, "http://127.0.0.1:8899", LocalNet.Endpoint())
	require.Empty(t, Cluster("moonnet").Endpoint())

	_, err := Parse("moonnet")
	require.Error(t, err)
}
