package play

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiograph/internal/conf"
)

func TestPlayWithNullDriver(t *testing.T) {
	settings, err := conf.LoadWith(viper.New(), "")
	require.NoError(t, err)
	settings.Engine.Driver = conf.DriverNull
	settings.Metrics.Enabled = false

	graphPath := filepath.Join(t.TempDir(), "graph.hcl")
	require.NoError(t, os.WriteFile(graphPath, []byte(`
node "osc" {
  kind = "tone"
}
node "mic" {
  kind = "input"
}
connect {
  from = "osc"
  to   = "main"
}
`), 0o600))

	start := time.Now()
	err = run(context.Background(), settings, options{graph: graphPath, duration: 150 * time.Millisecond})
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestPlayRejectsUnknownDriver(t *testing.T) {
	settings, err := conf.LoadWith(viper.New(), "")
	require.NoError(t, err)
	settings.Engine.Driver = "oss"

	err = run(context.Background(), settings, options{graph: "unused.hcl"})
	require.Error(t, err)
}
