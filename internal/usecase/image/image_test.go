package image

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/testutil"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/classify"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/record"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "photo-events"

func newUseCase() (*ImageUseCase, *testutil.BlobStore, *testutil.Publisher) {
	blobs := testutil.NewBlobStore()
	pub := testutil.NewPublisher()
	records := record.New(testutil.NewRecordStore(), testutil.NewOutbox(), testutil.Transactor{}, time.Hour, logger.NewNop())

	return New(blobs, records, pub, "photos", topic, logger.NewNop()), blobs, pub
}

func TestUploadNewImage(t *testing.T) {
	uc, blobs, pub := newUseCase()

	ref, err := uc.UploadNewImage(context.Background(), bytes.NewReader([]byte("png")), "Beach.PNG", "image/png", 3)
	require.NoError(t, err)

	assert.Equal(t, "photos", ref.Bucket)
	assert.True(t, strings.HasSuffix(ref.Key, ".png"))
	assert.True(t, blobs.Has(ref))

	msgs := pub.Messages(topic)
	require.Len(t, msgs, 1)

	res := classify.New().Classify(msgs[0])
	require.False(t, res.Malformed, res.Reason)
	assert.Equal(t, entity.KindBlobCreated, res.Kind)
	assert.Equal(t, ref.Key, res.Events[0].Blob.Key)
	assert.Equal(t, int64(3), res.Events[0].Blob.Size)
}

func TestUploadNewImagePublishFailureRemovesBlob(t *testing.T) {
	uc, blobs, pub := newUseCase()
	pub.Err = errors.New("broker down")

	_, err := uc.UploadNewImage(context.Background(), bytes.NewReader([]byte("png")), "a.png", "image/png", 3)

	require.Error(t, err)
	require.Len(t, blobs.Deleted(), 1)
	assert.False(t, blobs.Has(blobs.Deleted()[0]))
}

func TestRequestsClassifyBack(t *testing.T) {
	uc, _, pub := newUseCase()
	ctx := context.Background()

	require.NoError(t, uc.RequestMetadataUpdate(ctx, "a.jpg", "Caption", "sunset"))
	require.NoError(t, uc.RequestStatusUpdate(ctx, "a.jpg", dto.StatusUpdateBody{Status: "Pass", Reason: "ok"}, "2026-05-01"))

	msgs := pub.Messages(topic)
	require.Len(t, msgs, 2)

	c := classify.New()

	meta := c.Classify(msgs[0])
	require.False(t, meta.Malformed, meta.Reason)
	assert.Equal(t, entity.MetadataUpdate{ID: "a.jpg", Name: "Caption", Value: "sunset"}, *meta.Events[0].Metadata)

	st := c.Classify(msgs[1])
	require.False(t, st.Malformed, st.Reason)
	assert.Equal(t, entity.StatusUpdate{ID: "a.jpg", Value: "Pass", Reason: "ok", ReviewDate: "2026-05-01"}, *st.Events[0].Status)
}

func TestGetRecord(t *testing.T) {
	uc, _, _ := newUseCase()

	_, err := uc.GetRecord(context.Background(), "nope")
	assert.Error(t, err)
}
