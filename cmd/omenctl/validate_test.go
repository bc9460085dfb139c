package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validObservationJSON = `{
  "header": {"packet_id":"pkt_1","packet_kind":"Observation","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_1_aspirational","correlation_id":"corr_1"},
  "observation_type": "sensor",
  "data": "reading: 42"
}`

const invalidObservationJSON = `{
  "header": {"packet_id":"pkt_1","packet_kind":"Observation","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_1_aspirational","correlation_id":"corr_1"},
  "observation_type": "",
  "data": ""
}`

func TestValidatePacketPass(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "obs.json", validObservationJSON)

	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"packet", path}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "PASS")
}

func TestValidatePacketFail(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "obs.json", invalidObservationJSON)

	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"packet", path}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "FAIL")
	assert.Contains(t, stdout.String(), "data")
}

func TestValidatePacketMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"packet", "/no/such/file.json"}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "reading")
}

func TestValidateEpisodeVerifyFirstDecisionPasses(t *testing.T) {
	dir := t.TempDir()

	observation := `{"header":{"packet_id":"pkt_obs1","packet_kind":"Observation","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_1_aspirational","correlation_id":"corr_test_1"},` +
		`"observation_type":"sensor","data":"reading: 42"}`

	decision := `{"header":{"packet_id":"pkt_dec1","packet_kind":"Decision","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_4_executive","correlation_id":"corr_test_1"},` +
		`"mcp":{"intent":{"summary":"s","scope":"scope"},` +
		`"stakes":{"impact":"MEDIUM","irreversibility":"LOW","uncertainty":"HIGH","adversariality":"LOW","stakes_level":"MEDIUM"},` +
		`"quality":{"tier":"PAR","satisficing_mode":false,"definition_of_done":{"text":"done","checks":["c1"]},"verification_requirement":"VERIFY_ONE"},` +
		`"budgets":{"token_budget":1000,"tool_call_budget":10,"time_budget_seconds":60,"risk_budget":{"envelope":"default","max_loss":1}},` +
		`"epistemics":{"status":"HYPOTHESIZED","confidence":0.5,"freshness_class":"STRATEGIC"},` +
		`"evidence":{"evidence_absent_reason":"not yet observed"},` +
		`"routing":{"task_class":"LOOKUP","tools_state":"tools_ok"}},` +
		`"decision_outcome":"VERIFY_FIRST","decision_summary":"verify first","constraints_satisfied":{"constitutional_check":true,"budget_check":true,"tier_check":true}}`

	belief := `{"header":{"packet_id":"pkt_bel1","packet_kind":"BeliefUpdate","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_3_self_model","correlation_id":"corr_test_1"},` +
		`"update_type":"initial_model","belief_changes":[{"domain":"d","key":"k","new_value":1,"prior_value":0}]}`

	lines := observation + "\n" + belief + "\n" + decision + "\n"
	path := writeFile(t, dir, "episode.jsonl", lines)

	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"episode", path, "--no-timestamp-checks"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "PASS")
}

func TestValidateEpisodeRejectsSubparAct(t *testing.T) {
	dir := t.TempDir()

	observation := `{"header":{"packet_id":"pkt_obs1","packet_kind":"Observation","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_1_aspirational","correlation_id":"corr_test_2"},` +
		`"observation_type":"sensor","data":"reading: 42"}`

	belief := `{"header":{"packet_id":"pkt_bel1","packet_kind":"BeliefUpdate","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_3_self_model","correlation_id":"corr_test_2"},` +
		`"update_type":"initial_model","belief_changes":[{"domain":"d","key":"k","new_value":1,"prior_value":0}]}`

	decision := `{"header":{"packet_id":"pkt_dec1","packet_kind":"Decision","created_at":"2026-01-01T00:00:00Z","source_layer":"layer_4_executive","correlation_id":"corr_test_2"},` +
		`"mcp":{"intent":{"summary":"s","scope":"scope"},` +
		`"stakes":{"impact":"HIGH","irreversibility":"LOW","uncertainty":"HIGH","adversariality":"LOW","stakes_level":"HIGH"},` +
		`"quality":{"tier":"SUBPAR","satisficing_mode":false,"definition_of_done":{"text":"done","checks":["c1"]},"verification_requirement":"OPTIONAL"},` +
		`"budgets":{"token_budget":1000,"tool_call_budget":10,"time_budget_seconds":60,"risk_budget":{"envelope":"default","max_loss":1}},` +
		`"epistemics":{"status":"OBSERVED","confidence":0.9,"freshness_class":"STRATEGIC"},` +
		`"evidence":{"evidence_absent_reason":"not yet observed"},` +
		`"routing":{"task_class":"LOOKUP","tools_state":"tools_ok"}},` +
		`"decision_outcome":"ACT","decision_summary":"act anyway","constraints_satisfied":{"constitutional_check":true,"budget_check":true,"tier_check":true}}`

	lines := observation + "\n" + belief + "\n" + decision + "\n"
	path := writeFile(t, dir, "episode.jsonl", lines)

	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"episode", path, "--no-timestamp-checks"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "FAIL")
}

func TestValidateEpisodeEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.jsonl", "")

	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"episode", path}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "no packets found")
}

func TestValidateUnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runValidateCmd([]string{"bogus"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "unrecognized validate subcommand")
}
