package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"residence-portal/internal/models"
)

func TestStatusFilter(t *testing.T) {
	for _, status := range []string{"ACTIVE", "SUSPENDED", "INACTIVE"} {
		filter, err := statusFilter(status)
		require.NoError(t, err, "status %s", status)
		assert.Equal(t, "status = '"+status+"'", filter)
	}

	filter, err := statusFilter("")
	require.NoError(t, err)
	assert.Empty(t, filter)
}

func TestStatusFilter_RejectsUnknownValues(t *testing.T) {
	for _, status := range []string{
		"active",
		"DELETED",
		"ACTIVE' OR status != '",
		"x' AND tower_id = 't1",
	} {
		_, err := statusFilter(status)
		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr, "status %q", status)
		assert.Equal(t, "status", vErr.Field)
	}
}

func TestSearch_RejectsUnknownStatusBeforeQuerying(t *testing.T) {
	client := NewSearchClient("http://127.0.0.1:1", "key")
	_, err := client.Search("ana", "ACTIVE' OR status != '", 10)
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
