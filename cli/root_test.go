package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thisisjab/docquery/config"
	"github.com/thisisjab/docquery/stub"
)

func init() {
	color.NoColor = true
}

func newStub(t *testing.T, fixtures ...stub.Fixture) (*stub.Server, string) {
	t.Helper()

	s, err := stub.NewServer(stub.Config{Addr: "127.0.0.1:0", Token: "secret", Fixtures: fixtures}, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return s, srv.URL
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", ""))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "docquery", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"fetch", "first", "count", "exists", "list", "delete", "update", "insert"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"endpoint", "token", "transform", "dry-run"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestQueryFlags(t *testing.T) {
	cmd := NewRootCommand()
	fetchCmd, _, err := cmd.Find([]string{"fetch"})
	require.NoError(t, err)

	for _, name := range []string{"select", "hidden", "where", "or-where", "having", "group-by", "sort", "limit", "skip"} {
		assert.NotNil(t, fetchCmd.Flags().Lookup(name), name)
	}

	assert.Equal(t, "-1", fetchCmd.Flags().Lookup("limit").DefValue)
}

func TestFetch(t *testing.T) {
	s, url := newStub(t, stub.Fixture{
		Collection: "users",
		Action:     "fetch",
		Result:     []any{map[string]any{"name": "Donald", "age": 30}},
	})

	out, _, err := execute(t, "fetch", "users",
		"--endpoint", url, "--token", "secret",
		"--where", "age >= 18", "--or-where", "role in [admin, owner]",
		"--select", "name,age", "--sort", "-name", "--limit", "2", "--skip", "0")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Donald","age":30}]`, out)

	requests := s.Requests()
	require.Len(t, requests, 1)
	assert.JSONEq(t, `{"query":{"from":{"users":{
		"select":["name","age"],
		"where":[["age",">=",18]],
		"orWhere":[["role","in",["admin","owner"]]],
		"orderBy":"name","sort":"desc",
		"limit":2,"skip":0,
		"do":"fetch"}}}}`, string(requests[0].Body))
}

func TestList(t *testing.T) {
	s, url := newStub(t, stub.Fixture{Collection: "users", Action: "list", Result: []any{"Donald", "Daisy"}})

	out, _, err := execute(t, "list", "users", "--by", "name", "--endpoint", url, "--token", "secret")
	require.NoError(t, err)
	assert.JSONEq(t, `["Donald","Daisy"]`, out)

	requests := s.Requests()
	require.Len(t, requests, 1)
	assert.JSONEq(t, `{"query":{"from":{"users":{"do":"list","listBy":"name"}}}}`, string(requests[0].Body))
}

func TestUpdate(t *testing.T) {
	s, url := newStub(t, stub.Fixture{Collection: "users", Action: "update", Result: map[string]any{"updated": 1}})

	out, _, err := execute(t, "update", "users", "--where", "name = Donald", "--set", `{"age":31}`, "--endpoint", url, "--token", "secret")
	require.NoError(t, err)
	assert.JSONEq(t, `{"updated":1}`, out)

	requests := s.Requests()
	require.Len(t, requests, 1)
	assert.JSONEq(t, `{"query":{"from":{"users":{"where":[["name","=","Donald"]],"do":"update","set":{"age":31}}}}}`, string(requests[0].Body))

	_, _, err = execute(t, "update", "users", "--endpoint", url)
	assert.Error(t, err)
}

func TestInsert(t *testing.T) {
	s, url := newStub(t,
		stub.Fixture{Collection: "users", Action: "insert", Result: map[string]any{"id": "u1"}},
		stub.Fixture{Collection: "users", Action: "insertMany", Result: map[string]any{"inserted": 2}},
	)

	out, _, err := execute(t, "insert", "users", "--data", `{"name":"Donald"}`, "--options", `{"upsert":true}`, "--endpoint", url, "--token", "secret")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, out)

	out, _, err = execute(t, "insert", "users", "--batch", "--data", `[{"name":"Huey"},{"name":"Dewey"}]`, "--endpoint", url, "--token", "secret")
	require.NoError(t, err)
	assert.JSONEq(t, `{"inserted":2}`, out)

	_, _, err = execute(t, "insert", "users", "--batch", "--data", `{"name":"Huey"}`, "--endpoint", url, "--token", "secret")
	assert.Error(t, err)

	requests := s.Requests()
	require.Len(t, requests, 2)
	assert.JSONEq(t, `{"data":{"data":{"name":"Donald"},"options":{"upsert":true}}}`, string(requests[0].Body))
	assert.Equal(t, "/users/batch", requests[1].Path)
}

func TestRemoteErrorIsReturned(t *testing.T) {
	_, url := newStub(t, stub.Fixture{Collection: "users", Action: "delete", Error: "not allowed"})

	out, _, err := execute(t, "delete", "users", "--endpoint", url, "--token", "secret")
	assert.EqualError(t, err, "not allowed")
	assert.Empty(t, out)
}

func TestInvalidFilterSendsNothing(t *testing.T) {
	s, url := newStub(t)

	for _, args := range [][]string{
		{"fetch", "users", "--where", "age >"},
		{"fetch", "users", "--where", "age > eighteen"},
		{"fetch", "users", "--sort", "name sideways"},
		{"count", "users", "--having", "total between 1"},
	} {
		_, _, err := execute(t, append(args, "--endpoint", url)...)
		assert.Error(t, err, args)
	}

	assert.Empty(t, s.Requests())
}

func TestDryRun(t *testing.T) {
	out, errOut, err := execute(t, "count", "posts", "--where", "published = true", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, errOut, "POST http://localhost")
	assert.JSONEq(t, `{"query":{"from":{"posts":{"where":[["published","=",true]],"do":"count"}}}}`, out)

	out, errOut, err = execute(t, "insert", "users", "--data", `{"name":"Donald"}`, "--dry-run", "--endpoint", "http://db.local/api")
	require.NoError(t, err)

	assert.Contains(t, errOut, "PUT http://db.local/api/users")
	assert.JSONEq(t, `{"data":{"data":{"name":"Donald"},"options":{}}}`, out)
}

func TestEnvFileAndConfig(t *testing.T) {
	_, url := newStub(t, stub.Fixture{Collection: "users", Action: "count", Result: 3})

	dir := t.TempDir()

	// Remember the current values so the cleanup restores them.
	t.Setenv(config.EnvEndpoint, "")
	t.Setenv(config.EnvToken, "")
	require.NoError(t, os.Unsetenv(config.EnvEndpoint))
	require.NoError(t, os.Unsetenv(config.EnvToken))

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DOCQUERY_ENDPOINT="+url+"\nDOCQUERY_TOKEN=secret\n"), 0o600))

	cfgFile := filepath.Join(dir, "docquery.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("endpoint: http://unused.invalid\ntoken: wrong\nlogger:\n  level: error\n  type: text\n"), 0o600))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"count", "users", "--env-file", envFile, "--config", cfgFile})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.JSONEq(t, `3`, out.String())
}

func TestMissingEnvFile(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"count", "users", "--env-file", filepath.Join(t.TempDir(), "missing.env"), "--dry-run"})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, assert.AnError)
	assert.Equal(t, "error: "+assert.AnError.Error()+"\n", buf.String())
}
