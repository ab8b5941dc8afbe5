package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/user/cityclips/internal/auth"
	"github.com/user/cityclips/internal/blob"
	"github.com/user/cityclips/internal/config"
	"github.com/user/cityclips/internal/model"
	"github.com/user/cityclips/internal/store"
)

// fakeStore is an in-memory Store implementation for handler tests
type fakeStore struct {
	mu        sync.Mutex
	users     map[uint]*model.User
	videos    map[uint]*model.Video
	likes     map[[2]uint]bool
	nextUser  uint
	nextVideo uint

	failCreateVideo bool
	vanishOnDelete  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[uint]*model.User),
		videos: make(map[uint]*model.Video),
		likes:  make(map[[2]uint]bool),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return store.ErrDuplicateUser
		}
	}
	f.nextUser++
	user.ID = f.nextUser
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			found := *u
			return &found, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeStore) UpdateUserCity(ctx context.Context, userID uint, city string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	user.City = city
	for _, v := range f.videos {
		if v.UserID == userID {
			v.City = city
		}
	}
	return nil
}

func (f *fakeStore) GetUserStats(ctx context.Context, userID uint) (*store.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &store.UserStats{}
	for _, v := range f.videos {
		if v.UserID == userID {
			stats.VideoCount++
			for key := range f.likes {
				if key[1] == v.ID {
					stats.TotalLikes++
				}
			}
		}
	}
	return stats, nil
}

func (f *fakeStore) CreateVideo(ctx context.Context, video *model.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateVideo {
		return fmt.Errorf("simulated insert failure")
	}
	f.nextVideo++
	video.ID = f.nextVideo
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now()
	}
	f.videos[video.ID] = video
	return nil
}

func (f *fakeStore) GetVideoByID(ctx context.Context, id uint) (*model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	video, ok := f.videos[id]
	if !ok {
		return nil, store.ErrVideoNotFound
	}
	v := *video
	return &v, nil
}

func (f *fakeStore) DeleteVideo(ctx context.Context, videoID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// vanishOnDelete simulates the row disappearing after an earlier read.
	if f.vanishOnDelete {
		return store.ErrVideoNotFound
	}
	if _, ok := f.videos[videoID]; !ok {
		return store.ErrVideoNotFound
	}
	delete(f.videos, videoID)
	for key := range f.likes {
		if key[1] == videoID {
			delete(f.likes, key)
		}
	}
	return nil
}

func (f *fakeStore) CountVideos(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.videos)), nil
}

func (f *fakeStore) feedPage(viewerID uint, limit, offset int, match func(*model.Video) bool) ([]*store.FeedItem, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*model.Video
	for _, v := range f.videos {
		if match(v) {
			matched = append(matched, v)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	var items []*store.FeedItem
	for _, v := range matched[offset:end] {
		var likeCount int64
		for key := range f.likes {
			if key[1] == v.ID {
				likeCount++
			}
		}
		items = append(items, &store.FeedItem{
			ID:           v.ID,
			Filename:     v.Filename,
			OriginalName: v.OriginalName,
			Duration:     v.Duration,
			FileSize:     v.FileSize,
			City:         v.City,
			CreatedAt:    v.CreatedAt,
			Username:     f.users[v.UserID].Username,
			LikeCount:    likeCount,
			UserLiked:    f.likes[[2]uint{viewerID, v.ID}],
		})
	}
	return items, total, nil
}

func (f *fakeStore) MyVideos(ctx context.Context, viewerID uint, limit, offset int) ([]*store.FeedItem, int64, error) {
	return f.feedPage(viewerID, limit, offset, func(v *model.Video) bool {
		return v.UserID == viewerID
	})
}

func (f *fakeStore) ExploreVideos(ctx context.Context, viewerID uint, city string, limit, offset int) ([]*store.FeedItem, int64, error) {
	return f.feedPage(viewerID, limit, offset, func(v *model.Video) bool {
		return v.City == city && v.UserID != viewerID
	})
}

func (f *fakeStore) ToggleLike(ctx context.Context, userID, videoID uint) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[videoID]; !ok {
		return false, 0, store.ErrVideoNotFound
	}

	key := [2]uint{userID, videoID}
	liked := !f.likes[key]
	if liked {
		f.likes[key] = true
	} else {
		delete(f.likes, key)
	}

	var count int64
	for k := range f.likes {
		if k[1] == videoID {
			count++
		}
	}
	return liked, count, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

// testServer bundles everything a handler test needs
type testServer struct {
	srv    *Server
	store  *fakeStore
	blobs  *blob.Store
	tokens *auth.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
		Upload: config.UploadConfig{
			Dir:          t.TempDir(),
			MaxBytes:     50 * 1024 * 1024,
			MaxDuration:  10,
			PublicPrefix: "/uploads/videos",
			ReadTimeout:  time.Minute,
		},
	}

	blobs, err := blob.NewStore(cfg.Upload.Dir)
	if err != nil {
		t.Fatalf("blob.NewStore() error = %v", err)
	}

	fs := newFakeStore()
	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	return &testServer{
		srv:    NewServer(cfg, fs, blobs, tokens),
		store:  fs,
		blobs:  blobs,
		tokens: tokens,
	}
}

func (ts *testServer) addUser(t *testing.T, username, city string) (*model.User, string) {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		City:         city,
	}
	if err := ts.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", username, err)
	}
	token, err := ts.tokens.Issue(user.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return user, token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshaling payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return ts.do(t, method, path, token, body, "application/json")
}

// multipartUpload builds a multipart body with a video part and duration field
func multipartUpload(t *testing.T, filename, mimeType, content, duration string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename="%s"`, filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("creating multipart part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("writing multipart part: %v", err)
	}

	if duration != "" {
		if err := w.WriteField("duration", duration); err != nil {
			t.Fatalf("writing duration field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading blob dir: %v", err)
	}
	return len(entries)
}
