package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
)

func TestFrom(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("document: %w", pkgerrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{pkgerrors.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{pkgerrors.ErrConflict, http.StatusConflict, "conflict"},
		{New(http.StatusTeapot, "teapot", nil), http.StatusTeapot, "teapot"},
		{errors.New("boom"), http.StatusInternalServerError, "fallback"},
	}
	for _, tc := range cases {
		got := From(tc.err, "fallback")
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("From(%v) = (%d,%s), want (%d,%s)", tc.err, got.Status, got.Code, tc.status, tc.code)
		}
	}
}
