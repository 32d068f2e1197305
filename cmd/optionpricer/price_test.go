package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPriceCommands(t *testing.T) {
	t.Run("bs prints both sides and the valuation", func(t *testing.T) {
		out, err := execute(t, "price", "bs",
			"--spot", "100", "--strike", "100", "--rate", "5", "--vol", "20", "--dte", "1", "--market", "10")
		require.NoError(t, err)
		assert.Contains(t, out, "10.4506")
		assert.Contains(t, out, "5.5735")
		assert.Contains(t, out, "undervalued by 4.51%")
	})

	t.Run("fdm writes the surface", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "surface.csv")
		out, err := execute(t, "price", "fdm",
			"--strike", "100", "--vol", "20", "--rate", "5", "--dte", "1", "--side", "put", "--surface", path)
		require.NoError(t, err)
		assert.Contains(t, out, "10.2600")
		assert.Contains(t, out, "5.3700")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Len(t, lines, 21*19+1)
	})

	t.Run("mc reports the seed", func(t *testing.T) {
		out, err := execute(t, "price", "mc", "asian",
			"--spot", "100", "--strike", "100", "--mu", "5", "--sigma", "20", "--horizon", "1",
			"--timesteps", "52", "--sims", "1000", "--seed", "7")
		require.NoError(t, err)
		assert.Contains(t, out, "asian")
		assert.Contains(t, out, "7")
	})

	t.Run("compare", func(t *testing.T) {
		out, err := execute(t, "price", "compare", "--theoretical", "90", "--market", "100")
		require.NoError(t, err)
		assert.Equal(t, "overvalued by 10.00%\n", out)
	})

	t.Run("iv requires a market price", func(t *testing.T) {
		_, err := execute(t, "price", "iv", "--spot", "100", "--strike", "100", "--rate", "5", "--vol", "20", "--dte", "1")
		assert.Error(t, err)
	})
}
