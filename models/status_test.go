package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkflowPages(t *testing.T) {
	pages, err := ParseWorkflowPages("now=today, next = up-next,waiting=waiting,someday=later,done=archive")
	require.NoError(t, err)

	status, ok := pages.StatusForPage("up-next")
	assert.True(t, ok)
	assert.Equal(t, StatusNext, status)

	_, ok = pages.StatusForPage("inbox")
	assert.False(t, ok)

	status, ok = pages.StatusForPage("archive")
	assert.True(t, ok)
	assert.Equal(t, StatusDone, status)
}

func TestParseWorkflowPagesErrors(t *testing.T) {
	for _, raw := range []string{
		"now",
		"soon=later",
		"now=",
		"now=a,now=b",
		"now=a,next=a",
	} {
		_, err := ParseWorkflowPages(raw)
		assert.Error(t, err, raw)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDone.Terminal())
	assert.False(t, StatusNow.Terminal())
	assert.True(t, DefaultStatus.Valid())
	assert.False(t, GTDStatus("later").Valid())
}
