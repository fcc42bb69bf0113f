package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"gonomen/domain/core"
)

func TestGetCode_FromSentinels(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{core.NewConfigError("population_size", "too small"), CodeConfigInvalid},
		{fmt.Errorf("%w: type 9", core.ErrUnknownFormula), CodeUnknownFormula},
		{core.ErrInvalidMessage, CodeInvalidInput},
		{core.ErrHistoryNotFound, CodeNotFound},
		{core.NewInsufficientDataError("crypto", 3, 30), CodeInsufficientData},
		{fmt.Errorf("load: %w", core.ErrDatasetUnavailable), CodeDatasetUnavailable},
		{core.ErrSeedMismatch, CodeNonDeterministic},
		{stderrors.New("boom"), CodeInternalError},
		{Conflict("job running"), CodeConflict},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, GetCode(tt.err), tt.err.Error())
	}
	assert.Equal(t, "", GetCode(nil))
}

func TestWrap_KeepsCodeAndCause(t *testing.T) {
	err := Wrap(core.ErrJobNotFound, "get evolution")
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "get evolution: resource not found: evolution job", err.Error())
	assert.Nil(t, Wrap(nil, "x"))

	recoded := WithCode(CodeConflict, err)
	assert.Equal(t, CodeConflict, GetCode(recoded))
	assert.True(t, IsAppError(fmt.Errorf("outer: %w", recoded)))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(core.ErrInvalidFormula))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("history")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("busy")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(DatabaseError("query", stderrors.New("down"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("boom")))
}

func TestAppError_MatchesSentinelOfCode(t *testing.T) {
	assert.ErrorIs(t, ConfigInvalid("bad"), core.ErrInvalidConfig)
	assert.True(t, core.IsInputValidationError(ConfigInvalid("bad")))
	assert.True(t, core.IsInputValidationError(InvalidInput("bad")))
	assert.True(t, core.IsNotFoundError(NotFound("history")))
	assert.NotErrorIs(t, Conflict("busy"), core.ErrNotFound)
	assert.NotErrorIs(t, InvalidInput("bad"), core.ErrInvalidConfig)
}
