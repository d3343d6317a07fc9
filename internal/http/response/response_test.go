package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

func respond(t *testing.T, err error) (int, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondAPIError(c, err)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestRespondAPIErrorCarriesDetails(t *testing.T) {
	active := uuid.New()
	status, env := respond(t, apierr.JobAlreadyActive("CLUSTER_TOPICS", active))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apierr.CodeJobAlreadyActive, env.Error.Code)
	assert.Equal(t, active.String(), env.Error.Details["activeJobId"])
}

func TestRespondAPIErrorHidesInternalCause(t *testing.T) {
	status, env := respond(t, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, apierr.CodeInternal, env.Error.Code)
	assert.Equal(t, "internal error", env.Error.Message)
	assert.Nil(t, env.Error.Details)
}

func TestRespondSuccessStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for name, tc := range map[string]struct {
		write  func(*gin.Context, any)
		status int
	}{
		"ok":       {RespondOK, http.StatusOK},
		"created":  {RespondCreated, http.StatusCreated},
		"accepted": {RespondAccepted, http.StatusAccepted},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			tc.write(c, gin.H{"jobId": "j1"})
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"jobId":"j1"}`, rec.Body.String())
		})
	}
}
