package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/budgenudge/internal/domain"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "sms:sent:+15551234567:bills:2026-10-16", Key("+15551234567", domain.TemplateBills, "2026-10-16"))
}

func TestParseKeyword(t *testing.T) {
	assert.Equal(t, ActionOptOut, ParseKeyword("  Unsubscribe "))
	assert.Equal(t, ActionOptOut, ParseKeyword("QUIT."))
	assert.Equal(t, ActionOptIn, ParseKeyword("yes"))
	assert.Equal(t, ActionHelp, ParseKeyword("Help me"))
	assert.Equal(t, ActionNone, ParseKeyword("stopping by later"))
	assert.Equal(t, ActionNone, ParseKeyword(""))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***4567", MaskPhone("+15551234567"))
	assert.Equal(t, "123", MaskPhone("123"))
}
