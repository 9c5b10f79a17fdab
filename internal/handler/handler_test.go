package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/service"
	"github.com/smallplates/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	api    *API
	db     *gorm.DB
	bucket *storage.LocalBucket
	owner  *db.Profile
}

func setupTestDB(t *testing.T) (*testEnv, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	bucket, err := storage.NewLocalBucket(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	token := "tok"
	name := "Maria"
	owner := db.Profile{Email: "maria@example.com", FullName: &name, CollectionLinkToken: &token, CollectionEnabled: true}
	if err := gdb.Create(&owner).Error; err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}

	api := NewAPI(gdb, Options{Bucket: bucket, Tasks: service.NewInlineRunner(nil)})
	return &testEnv{api: api, db: gdb, bucket: bucket, owner: &owner}, func() {
		sqlDB.Close()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

type formFile struct {
	field, name, contentType string
	body                     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(f.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		known  bool
	}{
		{fmt.Errorf("wrapped: %w", service.ErrRecipeNotFound), http.StatusNotFound, true},
		{service.ErrCollectionDisabled, http.StatusForbidden, true},
		{service.ErrReorderWhileFiltered, http.StatusConflict, true},
		{service.ErrImageTooLarge, http.StatusRequestEntityTooLarge, true},
		{storage.ErrUnsupportedType, http.StatusBadRequest, true},
		{service.ErrAgentDisabled, http.StatusServiceUnavailable, true},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		status, known := errorStatus(tc.err)
		if status != tc.status || known != tc.known {
			t.Errorf("errorStatus(%v) = %d,%v want %d,%v", tc.err, status, known, tc.status, tc.known)
		}
	}
}
