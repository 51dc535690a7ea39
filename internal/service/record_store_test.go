package service

import (
	"context"
	"testing"

	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRelated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.missingPerson(t, "mp-1", "Alice", strPtr("u1"))
	f.sighting(t, "s-1", "Harbour Road", nil)
	f.user(t, "u1")

	tests := []struct {
		entityType model.RelatedEntityType
		id         string
		name       string
		reporter   string
	}{
		{model.RelatedMissingPerson, "mp-1", "Alice", "u1"},
		{model.RelatedSighting, "s-1", "Harbour Road", ""},
		{model.RelatedUser, "u1", "nick-u1", "u1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.entityType), func(t *testing.T) {
			record, err := ResolveRelated(ctx, f.records, tt.entityType, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.entityType, record.Type)
			assert.Equal(t, tt.name, record.Name)
			assert.Equal(t, tt.reporter, record.ReporterID)
		})
	}

	_, err := ResolveRelated(ctx, f.records, model.RelatedSighting, "mp-1")
	assert.ErrorIs(t, err, ErrRecordNotFound, "ids are resolved against the tagged table only")

	_, err = ResolveRelated(ctx, f.records, "Article", "mp-1")
	assert.Error(t, err)
}

func TestRecordFirstPhoto(t *testing.T) {
	assert.Empty(t, (&Record{}).FirstPhoto())
	assert.Equal(t, "a.jpg", (&Record{Photos: []string{"a.jpg", "b.jpg"}}).FirstPhoto())
}
