package auditstore

// schemaSQL mirrors the subset of the Bitrix24 business-process tables the
// service reads. It is valid for both PostgreSQL and SQLite and is used to
// bootstrap local SQLite stores and test fixtures. Production PostgreSQL
// replicas already carry these tables.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS b_bp_workflow_template (
	id   BIGINT PRIMARY KEY,
	name VARCHAR(255)
);

CREATE TABLE IF NOT EXISTS b_bp_workflow_instance (
	id                   VARCHAR(32) PRIMARY KEY,
	workflow_template_id BIGINT,
	document_id          VARCHAR(255),
	started              TIMESTAMP,
	started_by           BIGINT,
	modified             TIMESTAMP,
	status               INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS ix_bp_wi_started ON b_bp_workflow_instance (started, id);

CREATE TABLE IF NOT EXISTS b_bp_tracking (
	id               BIGINT PRIMARY KEY,
	workflow_id      VARCHAR(32) NOT NULL,
	type             INTEGER NOT NULL DEFAULT 0,
	modified         TIMESTAMP,
	action_name      VARCHAR(128),
	action_title     VARCHAR(255),
	execution_status INTEGER,
	execution_result INTEGER,
	note             TEXT,
	user_id          BIGINT
);

CREATE INDEX IF NOT EXISTS ix_bp_tracking_wf ON b_bp_tracking (workflow_id, modified);

CREATE TABLE IF NOT EXISTS b_bp_task (
	id          BIGINT PRIMARY KEY,
	workflow_id VARCHAR(32) NOT NULL,
	activity    VARCHAR(128),
	name        VARCHAR(255),
	status      INTEGER,
	modified    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS b_bp_task_user (
	task_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL
);
`

// SchemaSQL returns the DDL for the audit tables.
func SchemaSQL() string {
	return schemaSQL
}
