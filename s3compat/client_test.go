package s3compat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionFromEndpoint(t *testing.T) {
	region, err := RegionFromEndpoint("https://s3.us-west-004.backblazeb2.com")
	require.NoError(t, err)
	assert.Equal(t, "us-west-004", region)

	region, err = RegionFromEndpoint("https://s3.eu-central-003.backblazeb2.com")
	require.NoError(t, err)
	assert.Equal(t, "eu-central-003", region)

	_, err = RegionFromEndpoint("https://api.backblazeb2.com")
	assert.Error(t, err)

	_, err = RegionFromEndpoint("not a url ::")
	assert.Error(t, err)
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{KeyID: "k", ApplicationKey: "s"})
	assert.ErrorContains(t, err, "endpoint")
}
