package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResolveEmbedsChain(t *testing.T) {
	loc := Query(`xpath=//tr[contains(., "$")]`).Nth(1).Find("css=.name").First()

	expr, err := buildResolve(loc, "text", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(expr, resolveScript+"("))
	assert.Contains(t, expr, `[{"q":"xpath=//tr[contains(., \"$\")]","n":1},{"q":"css=.name","n":0}], "text", "")`)
}

func TestBuildResolveEmptyLocator(t *testing.T) {
	expr, err := buildResolve(Locator{}, "count", "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(expr, `([], "count", "")`))
}

func TestRestoreScriptQuotesValues(t *testing.T) {
	script, err := restoreScript("https://console.example", map[string]string{"token": `a"b</script>`})
	require.NoError(t, err)

	assert.Contains(t, script, `location.origin !== "https://console.example"`)
	assert.NotContains(t, script, `</script>`)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, Sleep(context.Background(), 0))
}
