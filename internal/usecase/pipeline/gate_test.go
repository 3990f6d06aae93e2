package pipeline

import (
	"testing"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()

	g, err := NewGate(GateConfig{
		AllowedExtensions: []string{".jpg", "JPEG", "png"},
		MetadataFields:    []string{"caption", "reviewDate", "photographerName", "photographerEmail"},
		StatusValues:      []string{"Pass", "Reject"},
	})
	require.NoError(t, err)

	return g
}

func TestNewGateRejectsUnknownNames(t *testing.T) {
	_, err := NewGate(GateConfig{MetadataFields: []string{"owner"}})
	assert.Error(t, err)

	_, err = NewGate(GateConfig{StatusValues: []string{"Maybe"}})
	assert.Error(t, err)
}

func TestGateBlob(t *testing.T) {
	g := newTestGate(t)

	tests := []struct {
		name string
		blob *entity.BlobCreated
		want Verdict
	}{
		{"allowed", &entity.BlobCreated{Bucket: "photos", Key: "a.jpg"}, Accept},
		{"case insensitive", &entity.BlobCreated{Bucket: "photos", Key: "dir/A.JPEG"}, Accept},
		{"no dot in config", &entity.BlobCreated{Bucket: "photos", Key: "a.png"}, Accept},
		{"disallowed", &entity.BlobCreated{Bucket: "photos", Key: "a.gif"}, Escalate},
		{"no extension", &entity.BlobCreated{Bucket: "photos", Key: "README"}, Escalate},
		{"no bucket", &entity.BlobCreated{Key: "a.jpg"}, Drop},
		{"no key", &entity.BlobCreated{Bucket: "photos"}, Drop},
		{"no payload", nil, Drop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, v, reason := g.Check(entity.Event{Kind: entity.KindBlobCreated, Blob: tt.blob})
			assert.Equal(t, tt.want, v)
			if tt.want != Accept {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestGateMetadata(t *testing.T) {
	g := newTestGate(t)

	ev := entity.Event{
		Kind:     entity.KindMetadataUpdate,
		Metadata: &entity.MetadataUpdate{ID: "a.jpg", Name: "Caption", Value: "sunset"},
	}

	got, v, _ := g.Check(ev)
	require.Equal(t, Accept, v)
	assert.Equal(t, entity.FieldCaption, got.Metadata.Field)
	assert.Empty(t, ev.Metadata.Field, "input event must not be modified")

	for name, m := range map[string]*entity.MetadataUpdate{
		"no id":       {Name: "Caption", Value: "x"},
		"no name":     {ID: "a.jpg", Value: "x"},
		"no value":    {ID: "a.jpg", Name: "Caption"},
		"unknown":     {ID: "a.jpg", Name: "owner", Value: "x"},
		"not allowed": {ID: "a.jpg", Name: "Location", Value: "x"},
	} {
		_, v, _ := g.Check(entity.Event{Kind: entity.KindMetadataUpdate, Metadata: m})
		assert.Equal(t, Drop, v, name)
	}
}

func TestGateStatus(t *testing.T) {
	g := newTestGate(t)

	got, v, _ := g.Check(entity.Event{
		Kind:   entity.KindStatusUpdate,
		Status: &entity.StatusUpdate{ID: "a.jpg", Value: "Reject"},
	})
	require.Equal(t, Accept, v)
	assert.Equal(t, entity.StatusReject, got.Status.Status)

	for name, s := range map[string]*entity.StatusUpdate{
		"no id":     {Value: "Pass"},
		"no status": {ID: "a.jpg"},
		"unknown":   {ID: "a.jpg", Value: "Maybe"},
		"lowercase": {ID: "a.jpg", Value: "pass"},
	} {
		_, v, _ := g.Check(entity.Event{Kind: entity.KindStatusUpdate, Status: s})
		assert.Equal(t, Drop, v, name)
	}
}

func TestGateStatusSubset(t *testing.T) {
	g, err := NewGate(GateConfig{StatusValues: []string{"Pass"}})
	require.NoError(t, err)

	_, v, _ := g.Check(entity.Event{
		Kind:   entity.KindStatusUpdate,
		Status: &entity.StatusUpdate{ID: "a.jpg", Value: "Reject"},
	})
	assert.Equal(t, Drop, v)
}

func TestGateCleanup(t *testing.T) {
	g := newTestGate(t)

	_, v, _ := g.Check(entity.Event{Kind: entity.KindCleanup, Cleanup: &entity.CleanupRequest{Body: []byte("x")}})
	assert.Equal(t, Accept, v)

	_, v, _ = g.Check(entity.Event{Kind: entity.KindCleanup, Cleanup: &entity.CleanupRequest{Body: []byte("  ")}})
	assert.Equal(t, Drop, v)

	_, v, _ = g.Check(entity.Event{Kind: "Other"})
	assert.Equal(t, Drop, v)
}
