package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiokeep/audiokeep/internal/blob"
	"github.com/audiokeep/audiokeep/internal/ingest"
	"github.com/audiokeep/audiokeep/internal/metadata"
	"github.com/audiokeep/audiokeep/internal/server"
	"github.com/audiokeep/audiokeep/internal/signature"
	"github.com/audiokeep/audiokeep/internal/tags"
	"github.com/audiokeep/audiokeep/internal/token"
)

var mp3Payload = []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02, 0x03, 0x04}

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, path string) (*metadata.TechnicalMetadata, error) {
	return &metadata.TechnicalMetadata{
		Bitrate:        192,
		DurationMillis: 1000,
		Title:          metadata.UnknownTag,
		Album:          metadata.UnknownTag,
		Performers:     metadata.UnknownTag,
		MimeType:       "audio/mpeg",
	}, nil
}

func (stubExtractor) CoverArt(ctx context.Context, path string) ([]byte, string, error) {
	return nil, "", tags.ErrNoArtwork
}

type testAPI struct {
	srv   *httptest.Server
	blobs *blob.FilesystemStore
}

func newTestAPI(t *testing.T, maxUploadBytes int64) *testAPI {
	t.Helper()

	blobs, err := blob.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	meta := metadata.NewMemoryStore()
	codec, err := token.NewCodec("server-test-salt", 8)
	require.NoError(t, err)

	svc := ingest.NewService(
		signature.NewValidator(signature.DefaultSignatures()...),
		codec,
		blobs,
		meta,
		stubExtractor{},
		zap.NewNop(),
		ingest.Options{SpoolDir: t.TempDir()},
	)

	h := server.NewHandler(svc, zap.NewNop(), maxUploadBytes)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, blobs: blobs}
}

// multipartBody builds an upload form with a single audioFile part.
func multipartBody(t *testing.T, fileName, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="audioFile"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) upload(t *testing.T, fileName, contentType string, payload []byte) *http.Response {
	t.Helper()
	body, formType := multipartBody(t, fileName, contentType, payload)
	resp, err := http.Post(a.srv.URL+"/api/audio", formType, body)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeJSON(t, resp, &body)
	return body.Error.Code
}

func TestUploadAndFetchRoundTrip(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := api.upload(t, "song.mp3", "audio/mpeg", mp3Payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var uploaded struct {
		AudioID           string `json:"audioId"`
		SuggestedMetadata *struct {
			AudioBitrate int    `json:"audioBitrate"`
			MimeType     string `json:"mimeType"`
		} `json:"suggestedMetadata"`
	}
	decodeJSON(t, resp, &uploaded)
	require.NotEmpty(t, uploaded.AudioID)
	require.NotNil(t, uploaded.SuggestedMetadata)
	assert.Equal(t, 192, uploaded.SuggestedMetadata.AudioBitrate)

	metaResp, err := http.Get(api.srv.URL + "/api/audio/" + uploaded.AudioID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, metaResp.StatusCode)

	var got struct {
		AudioID string `json:"audioId"`
		Name    string `json:"name"`
	}
	decodeJSON(t, metaResp, &got)
	assert.Equal(t, uploaded.AudioID, got.AudioID)
	assert.Equal(t, "song.mp3", got.Name)

	streamResp, err := http.Get(api.srv.URL + "/api/audio/stream/" + uploaded.AudioID)
	require.NoError(t, err)
	defer streamResp.Body.Close()
	require.Equal(t, http.StatusOK, streamResp.StatusCode)
	assert.Equal(t, "audio/mpeg", streamResp.Header.Get("Content-Type"))

	data, err := io.ReadAll(streamResp.Body)
	require.NoError(t, err)
	assert.Equal(t, mp3Payload, data)
}

func TestUploadWrongContentType(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := api.upload(t, "song.mp3", "video/mp4", mp3Payload)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", errorCode(t, resp))
}

func TestUploadBadSignature(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := api.upload(t, "song.mp3", "audio/mpeg", []byte("GIF89a not audio"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
}

func TestUploadMissingField(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("comment", "no file here"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(api.srv.URL+"/api/audio", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
}

func TestUploadNotMultipart(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp, err := http.Post(api.srv.URL+"/api/audio", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
}

func TestUploadTooLarge(t *testing.T) {
	api := newTestAPI(t, 64)

	big := append(append([]byte{}, mp3Payload...), make([]byte, 4096)...)
	resp := api.upload(t, "song.mp3", "audio/mpeg", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "FILE_TOO_LARGE", errorCode(t, resp))
}

func TestFetchUnknownToken(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp, err := http.Get(api.srv.URL + "/api/audio/doesnotexist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))
}

func TestUpdateMetadata(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := api.upload(t, "song.mp3", "audio/mpeg", mp3Payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uploaded struct {
		AudioID string `json:"audioId"`
	}
	decodeJSON(t, resp, &uploaded)

	body := bytes.NewReader([]byte(`{"name":"renamed.mp3","creator":"alice"}`))
	req, err := http.NewRequest(http.MethodPut, api.srv.URL+"/api/audio/"+uploaded.AudioID, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	metaResp, err := http.Get(api.srv.URL + "/api/audio/" + uploaded.AudioID)
	require.NoError(t, err)
	var got struct {
		Name    string `json:"name"`
		Creator string `json:"creator"`
	}
	decodeJSON(t, metaResp, &got)
	assert.Equal(t, "renamed.mp3", got.Name)
	assert.Equal(t, "alice", got.Creator)
}

func TestUpdateMetadataMissingCreator(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := api.upload(t, "song.mp3", "audio/mpeg", mp3Payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uploaded struct {
		AudioID string `json:"audioId"`
	}
	decodeJSON(t, resp, &uploaded)

	body := bytes.NewReader([]byte(`{"name":"renamed.mp3","creator":"  "}`))
	req, err := http.NewRequest(http.MethodPut, api.srv.URL+"/api/audio/"+uploaded.AudioID, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, putResp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, putResp))
}

func TestListReturnsTokens(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	first := api.upload(t, "one.mp3", "audio/mpeg", mp3Payload)
	require.Equal(t, http.StatusOK, first.StatusCode)
	first.Body.Close()
	second := api.upload(t, "two.mp3", "audio/mpeg", mp3Payload)
	require.Equal(t, http.StatusOK, second.StatusCode)
	second.Body.Close()

	resp, err := http.Get(api.srv.URL + "/api/audio")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []struct {
		AudioID string `json:"audioId"`
		Name    string `json:"name"`
	}
	decodeJSON(t, resp, &entries)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.AudioID)
		// Tokens are opaque, never the raw numeric id.
		assert.NotEqual(t, "1", e.AudioID)
		assert.NotEqual(t, "2", e.AudioID)
	}
}

func TestStreamMissingBlobReportsInconsistency(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := api.upload(t, "song.mp3", "audio/mpeg", mp3Payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uploaded struct {
		AudioID string `json:"audioId"`
	}
	decodeJSON(t, resp, &uploaded)

	keys, err := api.blobs.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NoError(t, api.blobs.Delete(keys[0]))

	streamResp, err := http.Get(api.srv.URL + "/api/audio/stream/" + uploaded.AudioID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, streamResp.StatusCode)
	assert.Equal(t, "INCONSISTENT_STATE", errorCode(t, streamResp))
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp, err := http.Get(api.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
