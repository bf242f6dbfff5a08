package logging_test

import (
	"bytes"
	"testing"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, false)
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	log = logging.New(&buf, true)
	log.Debug().Msg("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logging.Component(logging.New(&buf, false), "explorer")
	log.Info().Msg("fetch")
	assert.Contains(t, buf.String(), "component=")
	assert.Contains(t, buf.String(), "explorer")
}
