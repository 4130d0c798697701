package protocol

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Errorf(KindElementNotFound, "no element matches %q", "#search")

	assert.True(t, errors.Is(err, ErrElementNotFound))
	assert.False(t, errors.Is(err, ErrElementNotInteractable))

	wrapped := fmt.Errorf("click failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrElementNotFound))
	assert.Equal(t, KindElementNotFound, KindOf(wrapped))
}

func TestAsErrorWrapsUnknown(t *testing.T) {
	assert.Nil(t, AsError(nil))

	pe := AsError(errors.New("boom"))
	assert.Equal(t, KindSandboxError, pe.Kind)
	assert.Equal(t, "boom", pe.Message)

	orig := Errorf(KindNavigationError, "timeout")
	assert.Same(t, orig, AsError(fmt.Errorf("wrap: %w", orig)))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindElementNotFound, http.StatusNotFound},
		{KindElementNotInteractable, http.StatusConflict},
		{KindNavigationError, http.StatusBadGateway},
		{KindDriverUnavailable, http.StatusServiceUnavailable},
		{KindScriptError, http.StatusUnprocessableEntity},
		{KindSandboxError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestKnownKinds(t *testing.T) {
	assert.True(t, KindScriptError.Known())
	assert.False(t, ErrorKind("Teapot").Known())
	assert.Equal(t, "ElementNotFound", ErrElementNotFound.Error())
}
