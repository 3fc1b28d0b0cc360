package classify

import "testing"

func TestClassOfUnregisteredKeyIsUnknown(t *testing.T) {
	c := New(-1)
	if got := c.ClassOf("user:42"); got != -1 {
		panic("unregistered prefix must map to unknown")
	}
}

func TestClassOfLongestPrefixWins(t *testing.T) {
	c := New(-1)
	c.Register("user:", 1)
	c.Register("user:admin:", 2)

	if got := c.ClassOf("user:42"); got != 1 {
		panic("plain user: prefix should classify as 1")
	}
	if got := c.ClassOf("user:admin:7"); got != 2 {
		panic("longer user:admin: prefix should win over user:")
	}
}

func TestUnregisterRemovesRoute(t *testing.T) {
	c := New(-1)
	c.Register("sess:", 5)
	if got := c.ClassOf("sess:1"); got != 5 {
		panic("expected class 5 before unregister")
	}
	c.Unregister("sess:")
	if got := c.ClassOf("sess:1"); got != -1 {
		panic("expected unknown after unregister")
	}
}
