package postgresql

// migrations returns the ordered schema migrations for the automation
// engine's tables. last_assigned_index starts at -1 so the first rotation
// advance lands on candidate 0.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				entity_kind VARCHAR(64) NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'draft',
				run_once BOOLEAN NOT NULL DEFAULT FALSE,
				run_order INTEGER NOT NULL DEFAULT 0,
				triggers JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				total_executions INTEGER NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_dispatch
				ON workflows (entity_kind, run_order)
				WHERE status = 'active' AND deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows (id),
				trigger_kind VARCHAR(32) NOT NULL,
				triggered_by VARCHAR(64),
				entity_kind VARCHAR(64) NOT NULL,
				entity_id VARCHAR(64) NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'running',
				actions_executed INTEGER NOT NULL DEFAULT 0,
				results JSONB NOT NULL DEFAULT '[]',
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow
				ON executions (workflow_id, started_at DESC);

			CREATE INDEX IF NOT EXISTS idx_executions_run_once
				ON executions (workflow_id, entity_kind, entity_id)
				WHERE status = 'completed';

			CREATE TABLE IF NOT EXISTS assignment_rules (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				entity_kind VARCHAR(64) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				priority INTEGER NOT NULL DEFAULT 0,
				method VARCHAR(32) NOT NULL,
				user_id VARCHAR(64),
				user_ids JSONB NOT NULL DEFAULT '[]',
				team_id VARCHAR(64),
				territory_field VARCHAR(128),
				territory_map JSONB NOT NULL DEFAULT '{}',
				last_assigned_index INTEGER NOT NULL DEFAULT -1
			);

			CREATE INDEX IF NOT EXISTS idx_assignment_rules_kind
				ON assignment_rules (entity_kind, priority)
				WHERE active;
		`,
	}
}
