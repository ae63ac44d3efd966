package ingest_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileCleanStores(t *testing.T) {
	e := newEnv(t, fakeExtractor{})
	e.mustUpload(t, "a.mp3")
	e.mustUpload(t, "b.mp3")

	report, err := e.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.RecordsChecked)
	assert.Equal(t, 2, report.BlobsChecked)
}

func TestReconcileFindsDanglingRecord(t *testing.T) {
	e := newEnv(t, fakeExtractor{})
	tok := e.mustUpload(t, "a.mp3")

	rec, err := e.svc.FetchMetadata(context.Background(), tok)
	require.NoError(t, err)
	require.NoError(t, e.blobs.Delete(rec.BlobKey()))

	report, err := e.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{rec.BlobKey()}, report.DanglingRecords)
	assert.Empty(t, report.OrphanBlobs)
}

func TestReconcileFindsOrphanBlob(t *testing.T) {
	e := newEnv(t, fakeExtractor{})
	e.mustUpload(t, "a.mp3")

	// A blob nobody owns, as left behind by a crash mid-compensation.
	_, err := e.blobs.Put("999.mp3", bytes.NewReader([]byte{0xFF, 0xFB}))
	require.NoError(t, err)

	report, err := e.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"999.mp3"}, report.OrphanBlobs)
	assert.Empty(t, report.DanglingRecords)
}

func TestReconcileIgnoresThumbnails(t *testing.T) {
	e := newEnv(t, fakeExtractor{})
	tok := e.mustUpload(t, "a.mp3")

	rec, err := e.svc.FetchMetadata(context.Background(), tok)
	require.NoError(t, err)

	// Derived artifacts produced by the artwork worker are not owned
	// by a metadata row and must not be flagged.
	_, err = e.blobs.Put(rec.BlobKey()+"-cover-small.jpg", bytes.NewReader([]byte("jpeg")))
	require.NoError(t, err)

	report, err := e.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.BlobsChecked)
}
