package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCoder struct{}

func (fakeCoder) Error() string     { return "engine down" }
func (fakeCoder) ErrorCode() string { return CodeEngineUnavailable }
func (fakeCoder) HTTPStatus() int   { return http.StatusServiceUnavailable }

func TestFromClassifies(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"api error passthrough", fmt.Errorf("wrap: %w", Validation("bad %s", "x")), CodeValidation, http.StatusBadRequest},
		{"coder", fmt.Errorf("call: %w", fakeCoder{}), CodeEngineUnavailable, http.StatusServiceUnavailable},
		{"record not found", gorm.ErrRecordNotFound, CodeNotFound, http.StatusNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, CodeDuplicateContent, http.StatusConflict},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := From(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.status, got.Status)
		})
	}
	assert.Nil(t, From(nil))
}

func TestInsufficientEmbeddingsCarriesCount(t *testing.T) {
	e := InsufficientEmbeddings(4, 6)
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
	assert.Equal(t, 4, e.Details["eligible"])
}

func TestJobAlreadyActiveDetails(t *testing.T) {
	id := uuid.New()
	e := JobAlreadyActive("EXTRACT_ENTITIES", id)
	assert.Equal(t, http.StatusConflict, e.Status)
	assert.Equal(t, id.String(), e.Details["activeJobId"])
}

func TestWithDetailsCopies(t *testing.T) {
	base := NotFound("project")
	ext := base.WithDetails(map[string]any{"id": "p"})
	assert.Nil(t, base.Details)
	assert.Equal(t, "p", ext.Details["id"])
	assert.Equal(t, "project not found", ext.Error())
}

func TestIsTxConflict(t *testing.T) {
	assert.True(t, IsTxConflict(fmt.Errorf("link: %w", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, IsTxConflict(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsTxConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTxConflict(errors.New("deadlock")))
	assert.False(t, IsTxConflict(nil))
}
