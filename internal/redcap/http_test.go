package redcap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redmig/internal/domain"
)

// apiServer captures form-encoded API calls and answers per content type.
type apiServer struct {
	*httptest.Server
	calls   []map[string]string
	answers map[string]func(w http.ResponseWriter, form map[string]string)
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	s := &apiServer{answers: make(map[string]func(http.ResponseWriter, map[string]string))}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		s.calls = append(s.calls, form)
		if answer, ok := s.answers[form["content"]]; ok {
			answer(w, form)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(s.Close)
	return s
}

func respondJSON(body string) func(http.ResponseWriter, map[string]string) {
	return func(w http.ResponseWriter, _ map[string]string) {
		_, _ = w.Write([]byte(body))
	}
}

func TestSubmitRecord(t *testing.T) {
	srv := newAPIServer(t)
	srv.answers["record"] = func(w http.ResponseWriter, form map[string]string) {
		if form["data"] != "" {
			_, _ = w.Write([]byte(`{"count": 1}`))
			return
		}
		// read-back export
		_, _ = w.Write([]byte(`[{"record_id": "P-001", "weight": "70"}]`))
	}

	client := NewHTTP(srv.URL, "secret-token")
	conf, err := client.SubmitRecord(context.Background(),
		domain.Key{RecordID: "P-001", Event: "baseline_arm_1", Instance: 2},
		map[string]string{"weight": "70"})
	require.NoError(t, err)

	assert.Equal(t, 1, conf.Count)
	assert.Equal(t, "70", conf.Fields["weight"])

	importCall := srv.calls[0]
	assert.Equal(t, "secret-token", importCall["token"])
	assert.Equal(t, "record", importCall["content"])
	assert.Equal(t, "flat", importCall["type"])
	assert.Equal(t, "overwrite", importCall["overwriteBehavior"])

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(importCall["data"]), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "P-001", rows[0]["record_id"])
	assert.Equal(t, "baseline_arm_1", rows[0]["redcap_event_name"])
	assert.Equal(t, "2", rows[0]["redcap_repeat_instance"])
	assert.Equal(t, "70", rows[0]["weight"])
}

func TestSubmitRecordWithoutReadBack(t *testing.T) {
	srv := newAPIServer(t)
	srv.answers["record"] = respondJSON(`{"count": 1}`)

	client := NewHTTP(srv.URL, "tok", WithReadBackVerification(false))
	conf, err := client.SubmitRecord(context.Background(),
		domain.Key{RecordID: "P-001", Instance: 1}, map[string]string{"weight": "70"})
	require.NoError(t, err)

	assert.Nil(t, conf.Fields)
	assert.Len(t, srv.calls, 1, "no export call expected")
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "server error retries", status: http.StatusBadGateway, wantTransient: true},
		{name: "rate limit retries", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "request timeout retries", status: http.StatusRequestTimeout, wantTransient: true},
		{name: "bad request is terminal", status: http.StatusBadRequest, wantTransient: false},
		{name: "forbidden is terminal", status: http.StatusForbidden, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			client := NewHTTP(srv.URL, "tok", WithReadBackVerification(false))
			_, err := client.SubmitRecord(context.Background(),
				domain.Key{RecordID: "P-001", Instance: 1}, nil)
			require.Error(t, err)

			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tt.wantTransient, remote.Transient)
			assert.Equal(t, tt.status, remote.StatusCode)
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	client := NewHTTP(srv.URL, "tok", WithReadBackVerification(false))
	_, err := client.SubmitRecord(context.Background(), domain.Key{RecordID: "P-001", Instance: 1}, nil)
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.True(t, remote.Transient)
}

func TestRecordExists(t *testing.T) {
	srv := newAPIServer(t)

	t.Run("data beyond the key counts", func(t *testing.T) {
		srv.answers["record"] = respondJSON(`[{"record_id": "P-001", "redcap_event_name": "baseline_arm_1", "weight": "70"}]`)
		client := NewHTTP(srv.URL, "tok")
		exists, err := client.RecordExists(context.Background(), domain.Key{RecordID: "P-001", Instance: 1})
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("empty shell does not count", func(t *testing.T) {
		srv.answers["record"] = respondJSON(`[{"record_id": "P-001", "redcap_event_name": "baseline_arm_1", "weight": ""}]`)
		client := NewHTTP(srv.URL, "tok")
		exists, err := client.RecordExists(context.Background(), domain.Key{RecordID: "P-001", Instance: 1})
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("no rows", func(t *testing.T) {
		srv.answers["record"] = respondJSON(`[]`)
		client := NewHTTP(srv.URL, "tok")
		exists, err := client.RecordExists(context.Background(), domain.Key{RecordID: "P-404", Instance: 1})
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestExportRecordSelectsInstance(t *testing.T) {
	srv := newAPIServer(t)
	srv.answers["record"] = respondJSON(`[
		{"record_id": "P-001", "redcap_repeat_instance": 1, "weight": "70"},
		{"record_id": "P-001", "redcap_repeat_instance": 2, "weight": "72"}
	]`)

	client := NewHTTP(srv.URL, "tok")
	fields, err := client.ExportRecord(context.Background(), domain.Key{RecordID: "P-001", Instance: 2})
	require.NoError(t, err)
	assert.Equal(t, "72", fields["weight"])
}

func TestProjectInfo(t *testing.T) {
	srv := newAPIServer(t)
	srv.answers["project"] = respondJSON(`{"project_id": "42", "project_title": "Cohort", "is_longitudinal": 1}`)
	srv.answers["event"] = respondJSON(`[{"unique_event_name": "baseline_arm_1"}, {"unique_event_name": "followup_arm_1"}]`)
	srv.answers["repeatingFormsEvents"] = respondJSON(`[{"form_name": "visits"}]`)

	client := NewHTTP(srv.URL, "tok")
	info, err := client.ProjectInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "42", info.ProjectID)
	assert.Equal(t, []string{"baseline_arm_1", "followup_arm_1"}, info.Events)
	assert.Equal(t, []string{"visits"}, info.RepeatingForms)
}

func TestProjectInfoWithoutRepeatingFeature(t *testing.T) {
	srv := newAPIServer(t)
	srv.answers["project"] = respondJSON(`{"project_id": "42", "is_longitudinal": 0}`)
	srv.answers["repeatingFormsEvents"] = func(w http.ResponseWriter, _ map[string]string) {
		http.Error(w, "repeating instruments not enabled", http.StatusBadRequest)
	}

	client := NewHTTP(srv.URL, "tok")
	info, err := client.ProjectInfo(context.Background())
	require.NoError(t, err)
	assert.Empty(t, info.Events)
	assert.Empty(t, info.RepeatingForms)
}
