package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kartikgopal01/coedit/internal/auth"
	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/document/repository"
	"github.com/kartikgopal01/coedit/internal/document/service"
	"github.com/kartikgopal01/coedit/internal/live"
	"github.com/kartikgopal01/coedit/internal/storage"
	"github.com/kartikgopal01/coedit/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type testServer struct {
	g    *gin.Engine
	live *live.MemoryChannel
	mem  *storage.MemoryStorage
	blob *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storage.NewMemoryStorage("blob-secret")
	blob := httptest.NewServer(mem)
	t.Cleanup(blob.Close)
	mem.SetBaseURL(blob.URL)

	repo := repository.NewMemoryRepo()
	opts := []service.Option{service.WithHTTPClient(blob.Client())}
	snapshots := service.NewSnapshots(repo, mem, opts...)
	ch := live.NewMemoryChannel()

	ver, err := auth.NewHMACVerifier(testSecret)
	require.NoError(t, err)

	g := gin.New()
	RegisterDocumentRoutes(g, Deps{
		Documents: service.NewDocuments(repo, mem, opts...),
		Snapshots: snapshots,
		Rollbacks: service.NewRollbacks(snapshots, ch),
		Live:      ch,
	}, middleware.AuthMiddleware(ver), nil)
	RegisterOps(g, map[string]Check{"metadata": repo.Ping}, prometheus.NewRegistry())
	RegisterSwagger(g)
	return &testServer{g: g, live: ch, mem: mem, blob: blob}
}

// do sends body as user. An empty user sends no token.
func (s *testServer) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		tok, err := auth.IssueToken(testSecret, user, user, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.g.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) createDoc(t *testing.T, owner string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/documents", owner, `{"title":"notes"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func (s *testServer) commit(t *testing.T, user, docID, body string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/documents/"+docID+"/snapshot", user, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["versionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestDocumentHandler_CRUD(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")

	w := s.do(t, http.MethodGet, "/api/documents/"+id, "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "notes", decode(t, w)["title"])

	w = s.do(t, http.MethodGet, "/api/documents", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, id, list[0]["id"])

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/collaborators", "owner", `{"userId":"collab"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/documents/"+id, "collab", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/documents/"+id, "collab", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodDelete, "/api/documents/"+id, "owner", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/documents/"+id, "owner", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "document_not_found", decode(t, w)["code"])
}

func TestDocumentHandler_ShareAndJoin(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")

	w := s.do(t, http.MethodPost, "/api/documents/"+id+"/share", "friend", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/share", "owner", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	key, _ := decode(t, w)["shareKey"].(string)
	require.NotEmpty(t, key)
	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/share", "owner", "")
	require.Equal(t, key, decode(t, w)["shareKey"])

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/join-with-key", "friend", `{"shareKey":"nope"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "forbidden", decode(t, w)["code"])
	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/join-with-key", "friend", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/join-with-key", "friend", `{"shareKey":"`+key+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, []interface{}{"friend"}, decode(t, w)["collaborators"])

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/join-with-key", "other", `{"key":"`+key+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/documents/"+id, "friend", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDocumentHandler_ErrorShapes(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")

	w := s.do(t, http.MethodGet, "/api/documents", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "unauthenticated", decode(t, w)["code"])

	w = s.do(t, http.MethodGet, "/api/documents/"+id, "stranger", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	require.Equal(t, "forbidden", body["code"])
	require.NotEmpty(t, body["error"])

	w = s.do(t, http.MethodPost, "/api/documents", "owner", `{"title":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_failed", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/snapshot", "owner", `{"content":{"ops":"nope"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "malformed_content", decode(t, w)["code"])
}

func TestDocumentHandler_SnapshotAndVersions(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")

	v1 := s.commit(t, "owner", id, `{"content":{"ops":[{"insert":"hello\n"}]},"commitMessage":"first"}`)
	// older clients send the body under "delta"
	v2 := s.commit(t, "owner", id, `{"delta":[{"insert":"hello world\n"}]}`)

	w := s.do(t, http.MethodGet, "/api/documents/"+id+"/versions", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	var versions []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	require.Len(t, versions, 2)
	ids := []interface{}{versions[0]["versionId"], versions[1]["versionId"]}
	require.ElementsMatch(t, []interface{}{v1, v2}, ids)

	w = s.do(t, http.MethodGet, "/api/documents/"+id+"/versions/"+v1, "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, v1, body["versionId"])
	raw, err := json.Marshal(body["content"])
	require.NoError(t, err)
	got, err := delta.Decode(raw)
	require.NoError(t, err)
	require.True(t, delta.Equal(delta.Text("hello\n"), got))

	w = s.do(t, http.MethodGet, "/api/documents/"+id+"/versions/"+v2+"/text", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hello world\n", w.Body.String())

	w = s.do(t, http.MethodGet, "/api/versions/"+v2, "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, id, decode(t, w)["documentId"])

	w = s.do(t, http.MethodGet, "/api/versions/"+v2, "stranger", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/documents/"+id+"/versions/missing", "owner", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "version_not_found", decode(t, w)["code"])
}

func TestDocumentHandler_SnapshotFallsBackToLiveContent(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")
	s.live.Seed(id, delta.Text("typed live\n"))

	v := s.commit(t, "owner", id, `{}`)

	w := s.do(t, http.MethodGet, "/api/documents/"+id+"/versions/"+v+"/text", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "typed live\n", w.Body.String())
}

func TestDocumentHandler_Compare(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")
	a := s.commit(t, "owner", id, `{"content":{"ops":[{"insert":"a\n"}]}}`)
	b := s.commit(t, "owner", id, `{"content":{"ops":[{"insert":"b\n"}]}}`)

	w := s.do(t, http.MethodGet, "/api/documents/"+id+"/compare?from="+a+"&to="+b, "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "a\n", body["fromText"])
	require.Equal(t, "b\n", body["toText"])

	w = s.do(t, http.MethodGet, "/api/documents/"+id+"/compare?from="+a, "owner", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Rollback(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")
	v1 := s.commit(t, "owner", id, `{"content":{"ops":[{"insert":"one\n"}]}}`)
	s.commit(t, "owner", id, `{"content":{"ops":[{"insert":"two\n"}]}}`)

	// no body uses the default commit message
	w := s.do(t, http.MethodPost, "/api/documents/"+id+"/versions/"+v1+"/rollback", "owner", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, "Revert to "+v1[:8], body["commitMessage"])

	cur, err := s.live.GetCurrentContent(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "one\n", cur.PlainText())
	updates := s.live.Updates()
	require.Len(t, updates, 1)
	require.Equal(t, live.OriginRollback, updates[0].Origin)

	w = s.do(t, http.MethodPost, "/api/documents/"+id+"/versions/"+v1+"/rollback", "owner", `{"commitMessage":"back again"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "back again", decode(t, w)["commitMessage"])

	w = s.do(t, http.MethodGet, "/api/documents/"+id+"/versions", "owner", "")
	var versions []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	require.Len(t, versions, 4)
}

func TestDocumentHandler_RollbackLiveUnavailable(t *testing.T) {
	s := newTestServer(t)
	id := s.createDoc(t, "owner")
	v1 := s.commit(t, "owner", id, `{"content":{"ops":[{"insert":"one\n"}]}}`)
	s.live.FailWith(io.ErrClosedPipe)

	w := s.do(t, http.MethodPost, "/api/documents/"+id+"/versions/"+v1+"/rollback", "owner", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	require.Equal(t, "live_channel_unavailable", body["code"])
	// server-side failures do not leak causes
	require.Equal(t, "live channel unavailable", body["error"])
}

func TestDocumentHandler_UploadAndDownload(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/uploads", "owner", `{"fileName":"a.png","fileType":"image/png","fileSize":4}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	uploadURL, _ := body["uploadUrl"].(string)
	key, _ := body["fileKey"].(string)
	require.NotEmpty(t, uploadURL)
	require.NotEmpty(t, key)

	req, err := http.NewRequest(http.MethodPut, uploadURL, strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/png")
	resp, err := s.blob.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Less(t, resp.StatusCode, 300)

	w = s.do(t, http.MethodPost, "/api/download", "owner", `{"fileKey":"`+key+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	downloadURL, _ := decode(t, w)["downloadUrl"].(string)
	resp, err = s.blob.Client().Get(downloadURL)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "\x89PNG", string(data))

	w = s.do(t, http.MethodPost, "/api/download", "stranger", `{"fileKey":"`+key+`"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/uploads", "owner", `{"fileName":"a.exe","fileType":"application/x-msdownload","fileSize":4}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpsEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())

	w = s.do(t, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "ready", body["status"])
	require.Equal(t, map[string]interface{}{"metadata": true}, body["deps"])

	w = s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadyReportsFailingCheck(t *testing.T) {
	g := gin.New()
	RegisterOps(g, map[string]Check{"redis": func(ctx context.Context) error { return io.ErrUnexpectedEOF }}, prometheus.NewRegistry())

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "not_ready")
}

func TestSwaggerEndpoints(t *testing.T) {
	g := gin.New()
	RegisterSwagger(g)

	req := httptest.NewRequest("GET", "/swagger/index.html", nil)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "swagger-ui")

	req2 := httptest.NewRequest("GET", "/swagger/doc.json", nil)
	w2 := httptest.NewRecorder()
	g.ServeHTTP(w2, req2)
	require.Equal(t, 200, w2.Code)
	require.True(t, json.Valid(w2.Body.Bytes()))
	require.Contains(t, w2.Body.String(), "/api/documents/{id}/snapshot")
	require.Contains(t, w2.Body.String(), "/api/documents/{id}/versions/{versionId}/rollback")
}
