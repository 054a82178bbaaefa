package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFprintVersion(t *testing.T) {
	var buf bytes.Buffer
	FprintVersion(&buf)

	fields := strings.Fields(buf.String())
	assert.GreaterOrEqual(t, len(fields), 3)
	assert.Equal(t, "github.com/rdfkit/graphstore", fields[1])
	assert.Equal(t, Version(), fields[2])
}

func TestVersionSetAtLinkTime(t *testing.T) {
	defer func(v string) { version = v }(version)

	version = "v1.2.3"
	assert.Equal(t, "v1.2.3", Version())
}
