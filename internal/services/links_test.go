package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkBuilder(t *testing.T) {
	links, err := NewLinkBuilder("https://crm.example.com/")
	require.NoError(t, err)

	require.Equal(t, "https://crm.example.com/accept-invite?token=abc123", links.AcceptInvite("abc123"))
	require.Equal(t, "https://crm.example.com/reset-password?token=abc123", links.ResetPassword("abc123"))
	require.Equal(t, "https://crm.example.com/reset-password?token=a+b%26c", links.ResetPassword("a b&c"))
}

func TestLinkBuilderRejectsRelativeBase(t *testing.T) {
	_, err := NewLinkBuilder("")
	require.Error(t, err)

	_, err = NewLinkBuilder("/relative")
	require.Error(t, err)
}
