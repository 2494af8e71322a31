package syncerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates_MatchWrappedErrors(t *testing.T) {
	err := fmt.Errorf("adjust: %w", NotFound("adjust quantity", "item", "item-1"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
	assert.False(t, IsRejected(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestCodeOf_Uncoded(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "entity and id",
			err:  NotFound("soft delete", "item", "abc"),
			want: "NOT_FOUND: soft delete: not found (item=abc)",
		},
		{
			name: "id only",
			err:  Rejected("push", "7", "price must be positive"),
			want: "REMOTE_REJECTED: push: price must be positive (id=7)",
		},
		{
			name: "wrapped cause",
			err:  Transient("pull", errors.New("connection refused")),
			want: "TRANSIENT_IO: pull: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("op", nil))

	coded := Rejected("push", "1", "bad")
	assert.Same(t, coded, Classify("op", coded))

	assert.True(t, IsTransient(Classify("push", context.DeadlineExceeded)))
	assert.True(t, IsTransient(Classify("push", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))))
	assert.True(t, IsFatal(Classify("push", errors.New("disk I/O error"))))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Fatal("mark synced", cause)
	assert.ErrorIs(t, err, cause)
}
