package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, ISAAMD64, c.TargetISA)
	assert.Equal(t, "", c.EmitDir)
	assert.False(t, c.DotFiles)
}

func TestNewConfig_Options(t *testing.T) {
	c := NewConfig(WithEmitDir("out"), WithDotFiles(true), WithTargetISA(ISAARM64))
	assert.Equal(t, "out", c.EmitDir)
	assert.True(t, c.DotFiles)
	assert.Equal(t, ISAARM64, c.TargetISA)
}

func TestISA_String(t *testing.T) {
	assert.Equal(t, "amd64", ISAAMD64.String())
	assert.Equal(t, "arm64", ISAARM64.String())
	assert.Equal(t, "unknown", ISA(99).String())
}
