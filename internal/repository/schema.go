package repository

// schema returns the DDL for the spans/files/account tables, rendered for
// one dialect. Column types are deliberately portable (TEXT/BIGINT/
// DOUBLE) rather than backend-native, since the four targets disagree on
// JSON/array storage far more than on scalar types; JSON columns are
// always just TEXT holding an encoded document, decoded in Go.
func schema(_ string) string {
	const autoIncrement = "TEXT PRIMARY KEY"

	return `
CREATE TABLE IF NOT EXISTS spans (
  trace_id TEXT NOT NULL,
  span_id TEXT NOT NULL,
  parent_span_id TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL,
  session_id TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  start_us BIGINT NOT NULL,
  end_us BIGINT NOT NULL,
  status TEXT NOT NULL,
  observation TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  framework TEXT NOT NULL DEFAULT '',
  provider TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  tokens_input BIGINT NOT NULL DEFAULT 0,
  tokens_output BIGINT NOT NULL DEFAULT 0,
  tokens_total BIGINT NOT NULL DEFAULT 0,
  tokens_cached BIGINT NOT NULL DEFAULT 0,
  tokens_reasoning BIGINT NOT NULL DEFAULT 0,
  cost_micros TEXT NOT NULL DEFAULT '0',
  exception_type TEXT NOT NULL DEFAULT '',
  exception_message TEXT NOT NULL DEFAULT '',
  exception_stacktrace TEXT NOT NULL DEFAULT '',
  messages_json TEXT NOT NULL DEFAULT '[]',
  tool_defs_json TEXT NOT NULL DEFAULT '[]',
  tool_names_json TEXT NOT NULL DEFAULT '[]',
  tags_json TEXT NOT NULL DEFAULT '{}',
  input_preview TEXT NOT NULL DEFAULT '',
  output_preview TEXT NOT NULL DEFAULT '',
  ingested_at BIGINT NOT NULL,
  PRIMARY KEY (trace_id, span_id)
);

CREATE TABLE IF NOT EXISTS files (
  project_id TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  media_type TEXT NOT NULL DEFAULT '',
  size_bytes BIGINT NOT NULL DEFAULT 0,
  storage_path TEXT NOT NULL DEFAULT '',
  ref_count BIGINT NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (project_id, content_hash)
);

CREATE TABLE IF NOT EXISTS metrics (
  project_id TEXT NOT NULL,
  metric_name TEXT NOT NULL,
  kind TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL,
  attributes_json TEXT NOT NULL DEFAULT '{}',
  timestamp_us BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
  id ` + autoIncrement + `,
  email TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  auth_method TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS organizations (
  id ` + autoIncrement + `,
  name TEXT NOT NULL,
  slug TEXT UNIQUE NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS memberships (
  id ` + autoIncrement + `,
  user_id TEXT NOT NULL,
  organization_id TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
  id ` + autoIncrement + `,
  project_id TEXT NOT NULL,
  prefix TEXT UNIQUE NOT NULL,
  secret_hash TEXT NOT NULL,
  scope TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  last_used_at BIGINT,
  revoked_at BIGINT
);

CREATE TABLE IF NOT EXISTS favorites (
  id ` + autoIncrement + `,
  user_id TEXT NOT NULL,
  project_id TEXT NOT NULL,
  resource_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
}
