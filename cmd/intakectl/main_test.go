package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-intake/pkg/registry"
)

const catalogJSON = `{"success":true,"products":[
	{"id":"wc-ca","category":"Working Capital","country":"CA","minAmount":10000,"maxAmount":250000,
	 "requiredDocuments":["Bank Statements","Void Cheque"]},
	{"id":"wc-us","category":"Working Capital","country":"US","minAmount":10000,"maxAmount":250000},
	{"id":"loc-ca","category":"Line of Credit","country":"CA","minAmount":5000,"maxAmount":100000,
	 "requiredDocuments":["Bank Statements"]}
]}`

const testRegistry = `{
  "version": "1.0.0",
  "activities": [
    {"id": "application.signing.check", "displayName": "Check Signing", "taskType": "check-signing-status", "timeout": "90s",
     "inputSchema": {"type": "object", "required": ["applicationId"]}}
  ]
}`

type testEnv struct {
	dir        string
	configPath string
	registry   string
	staffCalls atomic.Int32
}

// newTestEnv writes a config pointing at a fake staff API and, when
// redisAddr is set, a Redis instance.
func newTestEnv(t *testing.T, redisAddr string) *testEnv {
	t.Helper()
	env := &testEnv{dir: t.TempDir()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.staffCalls.Add(1)
		switch r.URL.Path {
		case "/api/public/lenders":
			_, _ = io.WriteString(w, catalogJSON)
		case "/api/public/applications/app-7/signature-status":
			_, _ = io.WriteString(w, `{"status":"pending","signUrl":"https://sign.example.com/app-7"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	env.registry = filepath.Join(env.dir, "activity-registry.json")
	require.NoError(t, os.WriteFile(env.registry, []byte(testRegistry), 0o600))

	cfg := fmt.Sprintf(`
staff_api:
  base_url: %s
  bearer_token: test-token
database:
  redis:
    address: %q
registry_path: %s
`, srv.URL, redisAddr, env.registry)
	env.configPath = filepath.Join(env.dir, "config.yaml")
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// ==========================
// Matching commands
// ==========================

func TestProductsCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "products", "--country", "CA", "--amount", "$50,000", "--category", "working capital", "--explain", "-o", "json")
	require.NoError(t, err)

	var got struct {
		EligibleProducts []struct {
			ID string `json:"id"`
		} `json:"eligibleProducts"`
		EligibleCount int    `json:"eligibleCount"`
		CatalogSource string `json:"catalogSource"`
		Rejections    []struct {
			ProductID string `json:"productId"`
		} `json:"rejections"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.EligibleProducts, 1)
	assert.Equal(t, "wc-ca", got.EligibleProducts[0].ID)
	assert.Equal(t, "staff_api", got.CatalogSource)
	assert.Len(t, got.Rejections, 2)
}

func TestProductsCommand_InvalidProfile(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "products", "--country", "Atlantis", "--category", "term loan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_APPLICANT_PROFILE")

	_, err = env.run(t, "products", "--country", "CA", "--amount", "lots")
	assert.ErrorContains(t, err, "--amount")
}

func TestRecommendCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "recommend", "--country", "CA", "--amount", "50000", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "topCategory:")
	assert.Contains(t, out, "hasRecommendation: true")
}

func TestDocumentsCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "documents", "--country", "CA", "--amount", "50000", "--category", "Working Capital")
	require.NoError(t, err)
	assert.Contains(t, out, "bank_statements")
	assert.Contains(t, out, "source: intersection")

	calls := env.staffCalls.Load()
	out, err = env.run(t, "documents", "--for-category", "equipment loan")
	require.NoError(t, err)
	assert.Contains(t, out, "category: equipment_financing")
	assert.Equal(t, calls, env.staffCalls.Load())

	_, err = env.run(t, "documents", "--for-category", "space tourism")
	assert.ErrorContains(t, err, "unknown category")
}

func TestCheckDocumentsCommand(t *testing.T) {
	env := newTestEnv(t, "")
	good := filepath.Join(env.dir, "statements-jan.pdf")
	require.NoError(t, os.WriteFile(good, bytes.Repeat([]byte("%PDF"), 20*1024), 0o600))
	sample := filepath.Join(env.dir, "sample-statement.pdf")
	require.NoError(t, os.WriteFile(sample, bytes.Repeat([]byte("%PDF"), 20*1024), 0o600))

	out, err := env.run(t, "check-documents", "Bank Statements="+good, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	out, err = env.run(t, "check-documents", "Bank Statements="+good, "Bank Statements="+sample, "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents refused")
	assert.Contains(t, out, `"placeholderDocuments": 1`)

	_, err = env.run(t, "check-documents", good)
	assert.ErrorContains(t, err, "expected <type>=<file>")
}

// ==========================
// Signing
// ==========================

func TestStatusCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "status", "app-7", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "pending"`)
	assert.Contains(t, out, "sign.example.com")
}

func TestSigningOverrideCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnv(t, mr.Addr())

	_, err := env.run(t, "signing", "override", "app-7", "--ttl", "1h")
	require.NoError(t, err)
	assert.True(t, mr.Exists("signing:override:app-7"))
	assert.Equal(t, time.Hour, mr.TTL("signing:override:app-7"))

	// With the override set, waiting ends without polling the staff API.
	calls := env.staffCalls.Load()
	out, err := env.run(t, "status", "app-7", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "overridden: true")
	assert.Equal(t, calls, env.staffCalls.Load())

	_, err = env.run(t, "signing", "clear", "app-7")
	require.NoError(t, err)
	assert.False(t, mr.Exists("signing:override:app-7"))
}

func TestSigningOverride_RequiresRedis(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "signing", "override", "app-7")
	assert.ErrorContains(t, err, "database.redis.address is required")
}

// ==========================
// Registry
// ==========================

func TestRegistryCommands(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "registry", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 activities")

	_, err = env.run(t, "registry", "set", "application.signing.check", "timeout", "120s")
	require.NoError(t, err)

	reg, err := registry.LoadRegistry(env.registry)
	require.NoError(t, err)
	assert.Equal(t, "120s", reg.Activities[0].Timeout)

	out, err = env.run(t, "registry", "list", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"timeout": "120s"`)
}

func TestRegistryValidate_ReportsProblems(t *testing.T) {
	env := newTestEnv(t, "")
	broken := filepath.Join(env.dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"activities":[{"id":"a","taskType":"t","timeout":"soon"}]}`), 0o600))

	_, err := env.run(t, "registry", "validate", "--path", broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout soon")
}

// ==========================
// Helpers
// ==========================

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "documents", "--for-category", "term loan", "-o", "xml")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestProfileFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   profileFlags
		wantAmt string
		wantAR  *string
		wantErr bool
	}{
		{name: "defaults", flags: profileFlags{amount: "0"}, wantAmt: "0"},
		{name: "formatted amount", flags: profileFlags{amount: "$1,250.50"}, wantAmt: "1250.5"},
		{name: "zero receivables is declared", flags: profileFlags{amount: "10", receivables: "0"}, wantAmt: "10", wantAR: strPtr("0")},
		{name: "bad receivables", flags: profileFlags{amount: "10", receivables: "some"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.flags.profile()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.RequestedAmount.Equal(decimal.RequireFromString(tt.wantAmt)))
			if tt.wantAR == nil {
				assert.Nil(t, p.AccountsReceivableBalance)
			} else {
				require.NotNil(t, p.AccountsReceivableBalance)
				assert.Equal(t, *tt.wantAR, p.AccountsReceivableBalance.String())
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestRender(t *testing.T) {
	v := map[string]interface{}{"applicationId": "app-1", "attempts": 3}

	var y bytes.Buffer
	require.NoError(t, render(&y, "yaml", v))
	assert.Equal(t, "applicationId: app-1\nattempts: 3\n", y.String())

	var j bytes.Buffer
	require.NoError(t, render(&j, "json", v))
	assert.JSONEq(t, `{"applicationId":"app-1","attempts":3}`, j.String())
}
