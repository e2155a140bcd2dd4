package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient() *Client {
	return NewClient(5*time.Second, zap.NewNop().Sugar())
}

func Test_RefreshTokens_ParsesTokenList(t *testing.T) {
	var gotBody map[string]string
	var gotMethod, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tokens":[
			{"tenant":"acme-prod","accessToken":"tok-a","expiresIn":3600},
			{"tenant":"acme-uat","accessToken":"tok-b"}
		]}`))
	}))
	defer srv.Close()

	tokens, err := newTestClient().RefreshTokens(context.Background(), srv.URL, "refresh-secret")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Empty(t, gotAuth, "refresh call carries no bearer token")
	assert.Equal(t, "refresh-secret", gotBody["refreshToken"])
	require.Len(t, tokens, 2)
	assert.Equal(t, "acme-prod", tokens[0].Tenant)
	assert.Equal(t, "tok-a", tokens[0].AccessToken)
	assert.EqualValues(t, 3600, tokens[0].ExpiresIn)
	assert.Zero(t, tokens[1].ExpiresIn)
}

func Test_FilterRecords_SendsQueryWithBearer(t *testing.T) {
	var gotQuery FilterQuery
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))
		w.Write([]byte(`[{"recordId":1},{"recordId":2}]`))
	}))
	defer srv.Close()

	q := FilterQuery{
		QueryTerm:                "Result.Status == 'Valid'",
		RecordTemplateIdentifier: "AC_Location",
		Take:                     100,
		LastChangedOnFrom:        "2018-03-03T00:00:00Z",
		LastChangedOnTo:          "2028-03-04T00:00:00Z",
	}
	recs, err := newTestClient().FilterRecords(context.Background(), srv.URL, "tok", q)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, q, gotQuery)
	assert.Len(t, recs, 2)
}

func Test_UpdateRecord_NonOKMapsToStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "field validation failed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	upd := RecordUpdate{RecordID: 7, Fields: []FieldUpdate{{
		Identifier: "Location",
		Rows:       []FieldRow{{Row: 0, Values: []FieldValue{{Value: "loc-1", ValuePreview: ""}}}},
	}}}
	err := newTestClient().UpdateRecord(context.Background(), srv.URL, "tok", upd)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Contains(t, se.Detail, "field validation failed")
}

func Test_UpdateRecord_WirePayload(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	upd := RecordUpdate{RecordID: 42, Fields: []FieldUpdate{{
		Identifier: "Location",
		Rows:       []FieldRow{{Row: 0, Values: []FieldValue{{Value: "loc-1", ValuePreview: ""}}}},
	}}}
	require.NoError(t, newTestClient().UpdateRecord(context.Background(), srv.URL, "tok", upd))

	assert.EqualValues(t, 42, raw["recordId"])
	fields := raw["fields"].([]any)
	field := fields[0].(map[string]any)
	assert.Equal(t, "Location", field["identifier"])
	row := field["rows"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 0, row["row"])
	value := row["values"].([]any)[0].(map[string]any)
	assert.Equal(t, "loc-1", value["value"])
	assert.Equal(t, "", value["valuePreview"])
}

func Test_SignIn_PassesResponseThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ops@example.com", body["email"])
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer srv.Close()

	status, body, err := newTestClient().SignIn(context.Background(), srv.URL, "ops@example.com", "wrong")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"message":"invalid credentials"}`, string(body))
}
