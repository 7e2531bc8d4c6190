package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/storage"
)

type fakeAuth struct {
	registerErr error
	registerReq model.RegisterRequest
	registerURL string

	loginRes    model.LoginResult
	loginErr    error
	loginClient model.ClientInfo

	loggedOut string

	validateErr error
	verifyErr   error
	verifyToken string

	user    model.UserResponse
	userErr error
}

func (f *fakeAuth) Register(_ context.Context, req model.RegisterRequest, base string) error {
	f.registerReq, f.registerURL = req, base
	return f.registerErr
}

func (f *fakeAuth) Login(_ context.Context, _ model.LoginRequest, client model.ClientInfo) (model.LoginResult, error) {
	f.loginClient = client
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) Logout(_ context.Context, token string) {
	f.loggedOut = token
}

func (f *fakeAuth) Validate(_ context.Context, _ string) (*model.Principal, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &model.Principal{UserID: 1, Login: "ivan"}, nil
}

func (f *fakeAuth) VerifyEmail(_ context.Context, token, _ string) error {
	f.verifyToken = token
	return f.verifyErr
}

func (f *fakeAuth) CurrentUser(context.Context, int64) (model.UserResponse, error) {
	return f.user, f.userErr
}

type fakeFiles struct {
	data []byte
	err  error
}

func (f *fakeFiles) OpenAppArchive(context.Context, int64) (io.ReadCloser, storage.Object, error) {
	if f.err != nil {
		return nil, storage.Object{}, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), storage.Object{Key: "T-Finance.zip", Size: int64(len(f.data))}, nil
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, userID int64) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), &model.Principal{UserID: userID, Login: "ivan", Role: model.RoleUser}))
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
