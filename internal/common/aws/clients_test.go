package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClients(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	clients, err := NewClients(context.Background(), "ca-central-1")
	require.NoError(t, err)
	assert.NotNil(t, clients.SES)
	assert.NotNil(t, clients.SNS)
	assert.Equal(t, "ca-central-1", clients.SES.Options().Region)
}

func TestNewClients_RequiresRegion(t *testing.T) {
	_, err := NewClients(context.Background(), "")
	assert.Error(t, err)
}
