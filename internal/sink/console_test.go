package sink

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_FlushesEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.Write(context.Background(), `{"a":1}`))
	assert.Equal(t, "{\"a\":1}\n", buf.String())

	require.NoError(t, c.Write(context.Background(), `{"a":2}`))
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())

	assert.NoError(t, c.Close())
}
