package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyNamespacing(t *testing.T) {
	c := &Client{ns: "surebot"}

	require.Equal(t, "surebot:lock:market:ev1:mk1", c.key("lock", "market:ev1:mk1"))
	require.Equal(t, "surebot:position:bet365", c.key("position", "bet365"))
	require.Equal(t, "surebot:quotes", c.key("quotes"))
}
