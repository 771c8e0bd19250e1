package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	custom := NotChatMember.WithMessage("user 7 is not in room 3")

	assert.True(t, errors.Is(custom, NotChatMember))
	assert.False(t, errors.Is(custom, NotChatOwner))
	assert.Equal(t, "CH002: user 7 is not in room 3", custom.Error())
	assert.Equal(t, "not a member of this chat room", NotChatMember.Message, "sentinel must not be mutated")
}

func TestFrom(t *testing.T) {
	wrapped := fmt.Errorf("invite: %w", GroupChatMaxMembers)

	got := From(wrapped)
	assert.Equal(t, "CH009", got.Code)
	assert.Equal(t, KindCapacityExceeded, got.Kind)

	unknown := From(errors.New("connection reset"))
	assert.Equal(t, Internal, unknown)
	assert.Equal(t, http.StatusInternalServerError, unknown.Status)
}
