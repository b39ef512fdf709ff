package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOf_FollowsWrapChain(t *testing.T) {
	base := NotFoundf("Post with id %d not found!", 7)
	wrapped := fmt.Errorf("update post: %w", base)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, Forbidden))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestGRPCStatus_MapsKindToCode(t *testing.T) {
	cases := map[Kind]codes.Code{
		Unauthorized:      codes.Unauthenticated,
		Forbidden:         codes.PermissionDenied,
		NotFound:          codes.NotFound,
		BatchFetchFailure: codes.Unavailable,
		ValidationFailure: codes.InvalidArgument,
		Internal:          codes.Internal,
	}
	for kind, want := range cases {
		st, ok := status.FromError(&Error{Kind: kind, Message: "x"})
		require.True(t, ok, kind.String())
		assert.Equal(t, want, st.Code(), kind.String())
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(BatchFetchFailure, nil, "load users"))

	cause := errors.New("connection reset")
	err := Wrap(BatchFetchFailure, cause, "load users")
	require.Error(t, err)
	assert.Equal(t, "load users: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, map[string]any{"code": "BATCH_FETCH_FAILURE"}, e.Extensions())
}
